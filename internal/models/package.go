package models

import (
	"fmt"
	"time"
)

// Status is the canonical package state. Courier-specific vocabularies are
// mapped into this set at the backend boundary; anything else is rejected.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
)

// ParseStatus converts a stored or wire literal into a Status.
// Unknown literals are an error, never silently coerced.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusWaiting, StatusInTransit, StatusDelivered:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown package status %q", s)
	}
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

func (s Status) String() string { return string(s) }

type Package struct {
	ID             int64
	TrackingNumber string
	Courier        string
	Service        string
	Status         Status
}

// NewPackage is the row created when the extraction pipeline confirms a
// tracking number in an email.
type NewPackage struct {
	TrackingNumber string
	Courier        string
	Service        string
	TrackingURL    string

	SourceEmailUID     uint32
	SourceEmailSubject *string
	SourceEmailFrom    *string
	SourceEmailDate    time.Time
}

// StatusHistoryEntry is one row of the append-only history ledger. The
// insertion order (ID) is the only total ordering; CheckedAt values from
// courier feeds may go backward.
type StatusHistoryEntry struct {
	ID        int64
	PackageID int64
	Status    Status

	EstimatedArrivalDate *string
	LastKnownLocation    *string
	Description          *string

	CheckedAt time.Time
	CreatedAt time.Time
}

// PackageWithStatus is the read-side shape for listings.
type PackageWithStatus struct {
	ID                int64      `json:"id"`
	TrackingNumber    string     `json:"trackingNumber"`
	Courier           string     `json:"courier"`
	Service           string     `json:"service"`
	Status            string     `json:"status"`
	LastKnownLocation *string    `json:"lastKnownLocation,omitempty"`
	TrackingURL       string     `json:"trackingUrl,omitempty"`
	SourceEmailFrom   *string    `json:"sourceEmailFrom,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}
