package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/schoolms/schoolms-server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

type RefreshTokenRepository struct {
	db *Connection
}

func NewRefreshTokenRepository(db *Connection) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Record(ctx context.Context, token model.RefreshToken) error {
	const query = `
        INSERT INTO refresh_tokens (
            id, token_hash, jti, user_id, expires_at, revoked, device_info, ip_address, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,FALSE,$6,$7,NOW(),NOW())
    `

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	_, err := r.db.querier(ctx).Exec(ctx, query,
		token.ID, token.TokenHash, token.JTI, token.UserID, token.ExpiresAt, token.DeviceInfo, token.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to record refresh token: %w", err)
	}
	return nil
}

// FindActive returns the unrevoked, unexpired entry matching tokenHash and
// jti and locks it for the rest of the enclosing transaction.
func (r *RefreshTokenRepository) FindActive(ctx context.Context, tokenHash []byte, jti string) (model.RefreshToken, error) {
	const query = `
        SELECT id, token_hash, jti, user_id, expires_at, revoked, device_info, ip_address, created_at, updated_at
        FROM refresh_tokens
        WHERE token_hash = $1 AND jti = $2 AND revoked = FALSE AND expires_at > NOW()
        FOR UPDATE
    `
	var rt model.RefreshToken
	err := r.db.querier(ctx).QueryRow(ctx, query, tokenHash, jti).Scan(
		&rt.ID, &rt.TokenHash, &rt.JTI, &rt.UserID, &rt.ExpiresAt, &rt.Revoked,
		&rt.DeviceInfo, &rt.IPAddress, &rt.CreatedAt, &rt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RefreshToken{}, model.ErrRefreshTokenNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return rt, nil
}

// Revoke marks the entry revoked and reports whether this call changed it.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `
        UPDATE refresh_tokens SET revoked = TRUE, updated_at = NOW()
        WHERE id = $1 AND revoked = FALSE
    `
	tag, err := r.db.querier(ctx).Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RefreshTokenRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const query = `
        UPDATE refresh_tokens SET revoked = TRUE, updated_at = NOW()
        WHERE user_id = $1 AND revoked = FALSE
    `
	tag, err := r.db.querier(ctx).Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens by user: %w", err)
	}
	return tag.RowsAffected(), nil
}
