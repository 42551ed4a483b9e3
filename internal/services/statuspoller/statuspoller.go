package statuspoller

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"packtrack/internal/broker/messages"
	"packtrack/internal/integrations/courier"
	"packtrack/internal/models"
	"packtrack/internal/storage/pgstore"
	"github.com/pkg/errors"
)

type Repository interface {
	GetActivePackages(ctx context.Context) ([]*models.Package, error)
	InsertPackageStatus(ctx context.Context, packageID int64, in pgstore.StatusInsert) (bool, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	AllowCourier(ctx context.Context, courier string, limit int64, window time.Duration) (bool, int64, error)
}

// Poller walks the active package set every interval, asks each package's
// courier backend for its latest observations and appends whatever is new
// to the history ledger. Packages are checked one at a time; courier APIs
// have per-account quotas and this workload is tiny.
type Poller struct {
	repo     Repository
	router   courier.Client
	producer Producer
	rl       RateLimiter

	pollInterval       time.Duration
	rateLimitPerMinute int64

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalChecked        atomic.Int64
	totalAppended       atomic.Int64
	totalTransitions    atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

// New builds a poller. producer and rl may be nil; transition events and
// rate limiting are then skipped.
func New(repo Repository, router courier.Client, producer Producer, rl RateLimiter) *Poller {
	return &Poller{
		repo: repo, router: router, producer: producer, rl: rl,
		pollInterval:       10 * time.Minute,
		rateLimitPerMinute: 30,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (p *Poller) WithSettings(pollInterval time.Duration, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

// Trigger forces an immediate poll cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt        time.Time  `json:"startedAt"`
	LastCycleAt      *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt    *time.Time `json:"lastTriggerAt,omitempty"`
	TotalChecked     int64      `json:"totalChecked"`
	TotalAppended    int64      `json:"totalAppended"`
	TotalTransitions int64      `json:"totalTransitions"`
	TotalErrors      int64      `json:"totalErrors"`
	LastError        string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:        time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalChecked:     p.totalChecked.Load(),
		TotalAppended:    p.totalAppended.Load(),
		TotalTransitions: p.totalTransitions.Load(),
		TotalErrors:      p.totalErrors.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	pkgs, err := p.repo.GetActivePackages(ctx)
	if err != nil {
		p.recordError(err)
		slog.Error("load active packages", "error", err.Error())
		return
	}

	for _, pkg := range pkgs {
		if ctx.Err() != nil {
			return
		}
		p.totalChecked.Add(1)
		if err := p.checkOne(ctx, pkg); err != nil {
			p.recordError(err)
			slog.Error("check package",
				"package_id", pkg.ID,
				"tracking_number", pkg.TrackingNumber,
				"courier", pkg.Courier,
				"error", err.Error())
		}
	}
}

func (p *Poller) checkOne(ctx context.Context, pkg *models.Package) error {
	if p.rl != nil && p.rateLimitPerMinute > 0 {
		allowed, n, err := p.rl.AllowCourier(ctx, pkg.Courier, p.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			return err
		}
		if !allowed {
			slog.Warn("rate limit exceeded", "courier", pkg.Courier, "count", n)
			time.Sleep(500 * time.Millisecond)
		}
	}

	obs, err := p.router.CheckStatus(ctx, pkg)
	if err != nil {
		return err
	}
	if len(obs) == 0 {
		return nil
	}

	// Observations arrive oldest first; the last one is the current state.
	var appended int64
	for _, o := range obs {
		if !o.Status.Valid() {
			slog.Error("dropping observation with invalid status",
				"package_id", pkg.ID,
				"courier", pkg.Courier,
				"status", string(o.Status))
			p.totalErrors.Add(1)
			continue
		}
		ins, err := p.repo.InsertPackageStatus(ctx, pkg.ID, pgstore.StatusInsert{
			Status:               o.Status,
			EstimatedArrivalDate: o.EstimatedArrivalDate,
			LastKnownLocation:    o.LastKnownLocation,
			Description:          o.Description,
			CheckedAt:            o.CheckedAt,
		})
		if err != nil {
			return errors.Wrap(err, "append status")
		}
		if ins {
			appended++
		}
	}
	p.totalAppended.Add(appended)

	current := obs[len(obs)-1]
	if current.Status.Valid() && current.Status != pkg.Status {
		p.totalTransitions.Add(1)
		slog.Info("package status changed",
			"package_id", pkg.ID,
			"tracking_number", pkg.TrackingNumber,
			"courier", pkg.Courier,
			"old_status", string(pkg.Status),
			"new_status", string(current.Status))
		if err := p.publishTransition(ctx, pkg, current); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poller) publishTransition(ctx context.Context, pkg *models.Package, current courier.Observation) error {
	if p.producer == nil {
		return nil
	}

	checkedAt := time.Now().UTC()
	if current.CheckedAt != nil {
		checkedAt = current.CheckedAt.UTC()
	}
	msg := messages.PackageStatusChanged{
		PackageID:            pkg.ID,
		TrackingNumber:       pkg.TrackingNumber,
		Courier:              pkg.Courier,
		OldStatus:            string(pkg.Status),
		NewStatus:            string(current.Status),
		LastKnownLocation:    current.LastKnownLocation,
		EstimatedArrivalDate: current.EstimatedArrivalDate,
		CheckedAt:            checkedAt,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal status changed")
	}

	key := []byte(strconv.FormatInt(pkg.ID, 10))
	if err := p.producer.Publish(ctx, messages.TopicStatusChanged, key, b); err != nil {
		return errors.Wrap(err, "publish status changed")
	}
	return nil
}

func (p *Poller) recordError(err error) {
	p.totalErrors.Add(1)
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}
