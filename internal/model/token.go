package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenTypeBearer is reported to clients alongside issued tokens.
const TokenTypeBearer = "bearer"

// TokenCodec creates and verifies signed, expiring tokens.
type TokenCodec interface {
	Issue(kind TokenKind, subject uuid.UUID, claims TokenClaims, ttl time.Duration) (IssuedToken, error)
	Verify(token string, expected TokenKind) (TokenClaims, error)
}

// TokenClaims is the verified content of a token. Email, Role and names are
// only carried by access tokens and are informational: authorization decisions
// use the live user record.
type TokenClaims struct {
	Subject   uuid.UUID
	ID        string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
	Email     string
	Role      Role
	FirstName string
	LastName  string
}

// AccessClaims builds the denormalized access-token claims for u.
func AccessClaims(u User) TokenClaims {
	return TokenClaims{
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// IssuedToken is a freshly signed token.
type IssuedToken struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is returned to clients after login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
