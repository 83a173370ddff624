package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore is the ledger of issued refresh tokens.
type RefreshTokenStore interface {
	Record(ctx context.Context, token RefreshToken) error
	FindActive(ctx context.Context, tokenHash []byte, jti string) (RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID) (bool, error)
	RevokeAllByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Transactor runs fn inside a single store transaction. Stores called with
// the context passed to fn take part in that transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RefreshToken is a ledger entry for one issued refresh token.
type RefreshToken struct {
	ID         uuid.UUID
	TokenHash  []byte
	JTI        string
	UserID     uuid.UUID
	ExpiresAt  time.Time
	Revoked    bool
	DeviceInfo *string
	IPAddress  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Usable reports whether the entry can still be exchanged at now.
func (t RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
