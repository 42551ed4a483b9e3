package messages

import "time"

// TopicStatusChanged carries one event per detected status transition.
const TopicStatusChanged = "package.status.changed"

type PackageStatusChanged struct {
	PackageID      int64  `json:"package_id"`
	TrackingNumber string `json:"tracking_number"`
	Courier        string `json:"courier"`

	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`

	LastKnownLocation    *string `json:"last_known_location,omitempty"`
	EstimatedArrivalDate *string `json:"estimated_arrival_date,omitempty"`

	CheckedAt time.Time `json:"checked_at"`
}
