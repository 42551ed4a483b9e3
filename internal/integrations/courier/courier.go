package courier

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"packtrack/internal/models"
)

// Observation is one courier-reported status event destined for one append
// to the history ledger.
type Observation struct {
	Status models.Status

	EstimatedArrivalDate *string
	LastKnownLocation    *string
	Description          *string

	// CheckedAt is the provider's own event time when it reports one;
	// nil means "observed now" and is filled at insert time.
	CheckedAt *time.Time
}

// Client is the seam every carrier integration implements.
//
// "Not found" or "no data yet" is not an error: it returns an empty slice.
// An error means the check itself failed (transport, credentials, malformed
// response) and the package should be retried next cycle.
type Client interface {
	CheckStatus(ctx context.Context, pkg *models.Package) ([]Observation, error)
}

// Router dispatches a package to the client registered for its courier
// code. It is populated once at startup and not mutated afterwards.
type Router struct {
	clients map[string]Client
}

func NewRouter() *Router {
	return &Router{clients: make(map[string]Client)}
}

func (r *Router) Register(courierCode string, c Client) {
	r.clients[courierCode] = c
}

// Registered returns the courier codes with a client, sorted.
func (r *Router) Registered() []string {
	codes := make([]string, 0, len(r.clients))
	for code := range r.clients {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// CheckStatus implements Client. An unregistered courier is not a failure:
// the package simply gets no update this cycle.
func (r *Router) CheckStatus(ctx context.Context, pkg *models.Package) ([]Observation, error) {
	c, ok := r.clients[pkg.Courier]
	if !ok {
		slog.Debug("no courier client registered",
			"courier", pkg.Courier,
			"tracking_number", pkg.TrackingNumber)
		return nil, nil
	}
	return c.CheckStatus(ctx, pkg)
}
