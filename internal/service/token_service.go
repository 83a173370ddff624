package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/schoolms/schoolms-server/internal/logger"
	"github.com/schoolms/schoolms-server/internal/model"
)

// TokenService issues token pairs and maintains the refresh token ledger.
// It composes the TokenCodec and RefreshTokenStore. Callers run its
// mutating methods inside a transaction.
type TokenService struct {
	codec      model.TokenCodec
	store      model.RefreshTokenStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	logger     *logger.Logger
}

func NewTokenService(
	codec model.TokenCodec,
	store model.RefreshTokenStore,
	accessTTL, refreshTTL time.Duration,
	logger *logger.Logger,
) *TokenService {
	return &TokenService{
		codec:      codec,
		store:      store,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		logger:     logger,
	}
}

// IssuePair signs a new access/refresh pair for user and records the
// refresh token in the ledger.
func (s *TokenService) IssuePair(ctx context.Context, user model.User, deviceInfo, ipAddress *string) (model.TokenPair, error) {
	access, err := s.codec.Issue(model.TokenKindAccess, user.ID, model.AccessClaims(user), s.accessTTL)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue access: %w", err)
	}

	refresh, err := s.codec.Issue(model.TokenKindRefresh, user.ID, model.TokenClaims{}, s.refreshTTL)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}

	rt := model.RefreshToken{
		ID:         uuid.New(),
		TokenHash:  hashRefresh(refresh.Token),
		JTI:        refresh.JTI,
		UserID:     user.ID,
		ExpiresAt:  refresh.ExpiresAt,
		DeviceInfo: deviceInfo,
		IPAddress:  ipAddress,
	}
	if err := s.store.Record(ctx, rt); err != nil {
		return model.TokenPair{}, fmt.Errorf("persist refresh: %w", err)
	}

	s.logger.Debug("Token service: issued token pair",
		"user_id", user.ID,
		"jti", refresh.JTI)

	return model.TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    model.TokenTypeBearer,
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

// Find verifies presented as a refresh token and returns its live ledger
// entry, locked for the enclosing transaction. Verification failures are
// returned as token errors; unknown, revoked and expired entries as
// ErrRefreshTokenNotFound.
func (s *TokenService) Find(ctx context.Context, presented string) (model.RefreshToken, error) {
	claims, err := s.codec.Verify(presented, model.TokenKindRefresh)
	if err != nil {
		return model.RefreshToken{}, err
	}

	rt, err := s.store.FindActive(ctx, hashRefresh(presented), claims.ID)
	if err != nil {
		return model.RefreshToken{}, err
	}
	if rt.UserID != claims.Subject {
		s.logger.Warn("Token service: ledger owner does not match token subject",
			"jti", claims.ID)
		return model.RefreshToken{}, model.ErrRefreshTokenNotFound
	}
	// stores other than Postgres may not filter on revoked and expires_at
	if !rt.Usable(s.now()) {
		return model.RefreshToken{}, model.ErrRefreshTokenNotFound
	}

	return rt, nil
}

// Revoke marks rt revoked. It fails with ErrRefreshTokenNotFound when a
// concurrent caller revoked it first.
func (s *TokenService) Revoke(ctx context.Context, rt model.RefreshToken) error {
	ok, err := s.store.Revoke(ctx, rt.ID)
	if err != nil {
		return fmt.Errorf("revoke refresh: %w", err)
	}
	if !ok {
		return model.ErrRefreshTokenNotFound
	}
	return nil
}

func (s *TokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.store.RevokeAllByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return n, nil
}

func hashRefresh(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}
