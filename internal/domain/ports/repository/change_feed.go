package repository

import "context"

// Change types delivered by a ChangeFeed.
const (
	ChangeInsert  = "INSERT"
	ChangeUpdate  = "UPDATE"
	ChangeDelete  = "DELETE"
	ChangeRefresh = "REFRESH" // raised locally, e.g. after a successful capture
)

// ChangeEvent says that a row owned by UserID changed. It carries no row
// data: subscribers re-read what they need.
type ChangeEvent struct {
	Table  string `json:"table"`
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// Subscription delivers change events for one user until Close is called.
type Subscription interface {
	Events() <-chan ChangeEvent
	Close()
}

// ChangeFeed provides change notifications for payment_records and
// user_package_entitlements rows, scoped by user id.
type ChangeFeed interface {
	Subscribe(ctx context.Context, userID string) (Subscription, error)
}
