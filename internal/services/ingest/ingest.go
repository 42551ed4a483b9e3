package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"packtrack/internal/extract"
	"packtrack/internal/models"
	"github.com/pkg/errors"
)

// Message is one email as seen by the ingestion worker. UID is the
// mailbox-assigned identifier used as the resume cursor.
type Message struct {
	UID     uint32
	Subject string
	From    string
	Date    time.Time
	Body    string
}

// MailSource is whatever delivers mail, typically an IMAP mailbox.
// FetchSince returns messages with UID strictly greater than the cursor,
// in ascending UID order.
type MailSource interface {
	FetchSince(ctx context.Context, uid uint32) ([]Message, error)
}

type Repository interface {
	LastSeenUID(ctx context.Context) (uint32, error)
	SetLastSeenUID(ctx context.Context, uid uint32) error
	InsertPackage(ctx context.Context, p *models.NewPackage) (bool, error)
}

// Worker scans new mail for courier tracking numbers and registers each
// confirmed number as a package.
type Worker struct {
	repo   Repository
	source MailSource

	pollInterval time.Duration
	triggerCh    chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalMessages       atomic.Int64
	totalConfirmed      atomic.Int64
	totalInserted       atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, source MailSource) *Worker {
	return &Worker{
		repo: repo, source: source,
		pollInterval:      5 * time.Minute,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (w *Worker) WithSettings(pollInterval time.Duration) *Worker {
	if pollInterval > 0 {
		w.pollInterval = pollInterval
	}
	return w
}

// Trigger forces an immediate scan (best-effort, non-blocking).
func (w *Worker) Trigger() {
	w.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalMessages  int64      `json:"totalMessages"`
	TotalConfirmed int64      `json:"totalConfirmed"`
	TotalInserted  int64      `json:"totalInserted"`
	TotalErrors    int64      `json:"totalErrors"`
	LastError      string     `json:"lastError,omitempty"`
}

func (w *Worker) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, w.startedAtUnixNano).UTC(),
		TotalMessages:  w.totalMessages.Load(),
		TotalConfirmed: w.totalConfirmed.Load(),
		TotalInserted:  w.totalInserted.Load(),
		TotalErrors:    w.totalErrors.Load(),
	}
	if n := w.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := w.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	w.lastErrorMu.Lock()
	st.LastError = w.lastError
	w.lastErrorMu.Unlock()
	return st
}

func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.runOnce(ctx)
		case <-w.triggerCh:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	w.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())

	cursor, err := w.repo.LastSeenUID(ctx)
	if err != nil {
		w.recordError(err)
		slog.Error("read mail cursor", "error", err.Error())
		return
	}

	msgs, err := w.source.FetchSince(ctx, cursor)
	if err != nil {
		w.recordError(err)
		slog.Error("fetch mail", "cursor", cursor, "error", err.Error())
		return
	}
	if len(msgs) == 0 {
		return
	}

	// The cursor advances past every fetched message, failed ones included.
	// A message that cannot be processed today will not process better
	// tomorrow, and stalling the cursor would re-scan it forever.
	maxUID := cursor
	for _, m := range msgs {
		w.totalMessages.Add(1)
		if m.UID > maxUID {
			maxUID = m.UID
		}
		if err := w.processMessage(ctx, m); err != nil {
			w.recordError(err)
			slog.Error("process mail", "uid", m.UID, "error", err.Error())
		}
	}

	if maxUID > cursor {
		if err := w.repo.SetLastSeenUID(ctx, maxUID); err != nil {
			w.recordError(err)
			slog.Error("advance mail cursor", "uid", maxUID, "error", err.Error())
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, m Message) error {
	confirmed := extract.ExtractTrackingNumbers(m.Subject + "\n" + m.Body)
	for _, c := range confirmed {
		w.totalConfirmed.Add(1)

		subject, from := m.Subject, m.From
		inserted, err := w.repo.InsertPackage(ctx, &models.NewPackage{
			TrackingNumber:     c.TrackingNumber,
			Courier:            c.Courier,
			Service:            c.Service,
			TrackingURL:        c.TrackingURL,
			SourceEmailUID:     m.UID,
			SourceEmailSubject: &subject,
			SourceEmailFrom:    &from,
			SourceEmailDate:    m.Date,
		})
		if err != nil {
			return errors.Wrapf(err, "insert package %s", c.TrackingNumber)
		}
		if inserted {
			w.totalInserted.Add(1)
			slog.Info("new package from mail",
				"tracking_number", c.TrackingNumber,
				"courier", c.Courier,
				"uid", m.UID,
				"from", m.From)
		} else {
			slog.Debug("tracking number already known",
				"tracking_number", c.TrackingNumber,
				"uid", m.UID)
		}
	}
	return nil
}

func (w *Worker) recordError(err error) {
	w.totalErrors.Add(1)
	w.lastErrorMu.Lock()
	w.lastError = err.Error()
	w.lastErrorMu.Unlock()
}
