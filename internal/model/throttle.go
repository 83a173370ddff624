package model

import "context"

// LoginThrottle limits failed login attempts per email and origin address.
type LoginThrottle interface {
	// Check returns ErrTooManyAttempts once the failure budget is spent.
	Check(ctx context.Context, email, ip string) error
	RecordFailure(ctx context.Context, email, ip string)
	Reset(ctx context.Context, email, ip string)
}
