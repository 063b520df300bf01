package model

import "time"

// UserPackageEntitlement is the active package grant recorded for a user.
// It is written by the trusted backend when a payment record completes;
// this service only reads it.
type UserPackageEntitlement struct {
	UserID      string
	PackageType string
	IsActive    bool
	ActivatedAt time.Time
}
