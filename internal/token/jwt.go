package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/schoolms/schoolms-server/internal/model"
)

// Claims represents JWT claims with token type and the denormalized
// access-token profile fields.
type Claims struct {
	jwt.RegisteredClaims
	Type      string `json:"type"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Config holds token signing parameters.
type Config struct {
	Secret    string
	Algorithm string
	Issuer    string
}

// Codec implements model.TokenCodec backed by symmetric HMAC.
type Codec struct {
	secretKey []byte
	method    *jwt.SigningMethodHMAC
	issuer    string
	now       func() time.Time
}

var _ model.TokenCodec = (*Codec)(nil)

// NewCodec creates a new token codec. Only HMAC algorithms are accepted.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is empty")
	}

	var method *jwt.SigningMethodHMAC
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	return &Codec{
		secretKey: []byte(cfg.Secret),
		method:    method,
		issuer:    cfg.Issuer,
		now:       time.Now,
	}, nil
}

// WithClock returns a copy of the codec that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Issue signs a new token of the given kind for subject.
func (c *Codec) Issue(kind model.TokenKind, subject uuid.UUID, claims model.TokenClaims, ttl time.Duration) (model.IssuedToken, error) {
	if kind != model.TokenKindAccess && kind != model.TokenKindRefresh {
		return model.IssuedToken{}, fmt.Errorf("unknown token kind %q", kind)
	}
	if subject == uuid.Nil {
		return model.IssuedToken{}, errors.New("token subject is empty")
	}

	jti, err := uuid.NewRandom()
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("failed to generate token id: %w", err)
	}

	now := c.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))

	tc := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Issuer:    c.issuer,
			ID:        jti.String(),
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
		Type: string(kind),
	}
	if kind == model.TokenKindAccess {
		tc.Email = claims.Email
		tc.Role = string(claims.Role)
		tc.FirstName = claims.FirstName
		tc.LastName = claims.LastName
	}

	signed, err := jwt.NewWithClaims(c.method, tc).SignedString(c.secretKey)
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return model.IssuedToken{
		Token:     signed,
		JTI:       tc.ID,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Verify checks the signature, expiry and kind of tokenString and returns
// its claims. No claims are returned alongside an error.
func (c *Codec) Verify(tokenString string, expected model.TokenKind) (model.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	tc := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, tc, func(t *jwt.Token) (interface{}, error) {
		return c.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.TokenClaims{}, model.ErrTokenExpired
		}
		return model.TokenClaims{}, fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
	}
	if !token.Valid {
		return model.TokenClaims{}, model.ErrTokenMalformed
	}

	subject, err := uuid.Parse(tc.Subject)
	if err != nil || subject == uuid.Nil {
		return model.TokenClaims{}, fmt.Errorf("%w: invalid subject", model.ErrTokenMalformed)
	}
	if tc.ID == "" {
		return model.TokenClaims{}, fmt.Errorf("%w: missing token id", model.ErrTokenMalformed)
	}
	if tc.IssuedAt == nil {
		return model.TokenClaims{}, fmt.Errorf("%w: missing issued at", model.ErrTokenMalformed)
	}

	kind := model.TokenKind(tc.Type)
	switch kind {
	case model.TokenKindAccess, model.TokenKindRefresh:
	default:
		return model.TokenClaims{}, fmt.Errorf("%w: unknown token type %q", model.ErrTokenMalformed, tc.Type)
	}
	if kind != expected {
		return model.TokenClaims{}, fmt.Errorf("%w: got %s, want %s", model.ErrTokenKindMismatch, kind, expected)
	}

	return model.TokenClaims{
		Subject:   subject,
		ID:        tc.ID,
		Kind:      kind,
		IssuedAt:  tc.IssuedAt.Time,
		ExpiresAt: tc.ExpiresAt.Time,
		Email:     tc.Email,
		Role:      model.Role(tc.Role),
		FirstName: tc.FirstName,
		LastName:  tc.LastName,
	}, nil
}
