package service

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/schoolms/schoolms-server/internal/mocks"
	"github.com/schoolms/schoolms-server/internal/model"
	"github.com/schoolms/schoolms-server/internal/testutil"
)

func TestTokenService_IssuePair(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New(), Email: "a@x.com", Role: model.RolePrincipal, FirstName: "Ada"}
	expiresAt := time.Now().Add(7 * 24 * time.Hour)
	device := "firefox"

	codec := servermocks.NewTokenCodec(t)
	store := servermocks.NewRefreshTokenStore(t)

	codec.On("Issue", model.TokenKindAccess, user.ID, model.AccessClaims(user), 30*time.Minute).
		Return(model.IssuedToken{Token: "access", JTI: "jti-a"}, nil).Once()
	codec.On("Issue", model.TokenKindRefresh, user.ID, model.TokenClaims{}, 7*24*time.Hour).
		Return(model.IssuedToken{Token: "refresh", JTI: "jti-r", ExpiresAt: expiresAt}, nil).Once()

	h := sha256.Sum256([]byte("refresh"))
	store.On("Record", ctx, mock.MatchedBy(func(rt model.RefreshToken) bool {
		return rt.ID != uuid.Nil &&
			rt.JTI == "jti-r" &&
			rt.UserID == user.ID &&
			rt.ExpiresAt.Equal(expiresAt) &&
			assert.ObjectsAreEqual(h[:], rt.TokenHash) &&
			rt.DeviceInfo != nil && *rt.DeviceInfo == device &&
			rt.IPAddress == nil
	})).Return(nil).Once()

	svc := NewTokenService(codec, store, 30*time.Minute, 7*24*time.Hour, testutil.MakeNoopLogger())

	pair, err := svc.IssuePair(ctx, user, &device, nil)
	require.NoError(t, err)
	assert.Equal(t, model.TokenPair{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
		ExpiresIn:    1800,
	}, pair)
}

func TestTokenService_IssuePair_CodecError(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New()}

	codec := servermocks.NewTokenCodec(t)
	store := servermocks.NewRefreshTokenStore(t)

	codec.On("Issue", model.TokenKindAccess, user.ID, mock.Anything, mock.Anything).
		Return(model.IssuedToken{}, assert.AnError).Once()

	svc := NewTokenService(codec, store, time.Minute, time.Hour, testutil.MakeNoopLogger())

	_, err := svc.IssuePair(ctx, user, nil, nil)
	require.ErrorIs(t, err, assert.AnError)
}

func TestTokenService_IssuePair_StoreError(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New()}

	codec := servermocks.NewTokenCodec(t)
	store := servermocks.NewRefreshTokenStore(t)

	codec.On("Issue", mock.Anything, user.ID, mock.Anything, mock.Anything).
		Return(model.IssuedToken{Token: "t", JTI: "j"}, nil).Twice()
	store.On("Record", ctx, mock.Anything).Return(assert.AnError).Once()

	svc := NewTokenService(codec, store, time.Minute, time.Hour, testutil.MakeNoopLogger())

	_, err := svc.IssuePair(ctx, user, nil, nil)
	require.ErrorIs(t, err, assert.AnError)
}

func TestTokenService_Find(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	presented := "refresh-old"
	h := sha256.Sum256([]byte(presented))
	later := time.Now().Add(time.Hour)

	tests := []struct {
		name      string
		verifyErr error
		entry     model.RefreshToken
		findErr   error
		wantErr   error
	}{
		{
			name:  "active entry",
			entry: model.RefreshToken{ID: uuid.New(), UserID: userID, JTI: "jti", ExpiresAt: later},
		},
		{
			name:      "expired token",
			verifyErr: model.ErrTokenExpired,
			wantErr:   model.ErrTokenExpired,
		},
		{
			name:    "revoked or unknown",
			findErr: model.ErrRefreshTokenNotFound,
			wantErr: model.ErrRefreshTokenNotFound,
		},
		{
			name:    "owner mismatch",
			entry:   model.RefreshToken{ID: uuid.New(), UserID: uuid.New(), JTI: "jti", ExpiresAt: later},
			wantErr: model.ErrRefreshTokenNotFound,
		},
		{
			name:    "ledger entry already revoked",
			entry:   model.RefreshToken{ID: uuid.New(), UserID: userID, JTI: "jti", ExpiresAt: later, Revoked: true},
			wantErr: model.ErrRefreshTokenNotFound,
		},
		{
			name:    "ledger entry past expiry",
			entry:   model.RefreshToken{ID: uuid.New(), UserID: userID, JTI: "jti", ExpiresAt: time.Now().Add(-time.Second)},
			wantErr: model.ErrRefreshTokenNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			codec := servermocks.NewTokenCodec(t)
			store := servermocks.NewRefreshTokenStore(t)

			if tt.verifyErr != nil {
				codec.On("Verify", presented, model.TokenKindRefresh).Return(model.TokenClaims{}, tt.verifyErr).Once()
			} else {
				codec.On("Verify", presented, model.TokenKindRefresh).
					Return(model.TokenClaims{Subject: userID, ID: "jti", Kind: model.TokenKindRefresh}, nil).Once()
				store.On("FindActive", ctx, h[:], "jti").Return(tt.entry, tt.findErr).Once()
			}

			svc := NewTokenService(codec, store, time.Minute, time.Hour, testutil.MakeNoopLogger())

			got, err := svc.Find(ctx, presented)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, model.RefreshToken{}, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.entry, got)
		})
	}
}

func TestTokenService_Revoke(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	store := servermocks.NewRefreshTokenStore(t)
	store.On("Revoke", ctx, id).Return(true, nil).Once()
	store.On("Revoke", ctx, id).Return(false, nil).Once()

	svc := NewTokenService(servermocks.NewTokenCodec(t), store, time.Minute, time.Hour, testutil.MakeNoopLogger())

	require.NoError(t, svc.Revoke(ctx, model.RefreshToken{ID: id}))
	require.ErrorIs(t, svc.Revoke(ctx, model.RefreshToken{ID: id}), model.ErrRefreshTokenNotFound)
}

func TestTokenService_RevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	store := servermocks.NewRefreshTokenStore(t)
	store.On("RevokeAllByUser", ctx, userID).Return(int64(3), nil).Once()

	svc := NewTokenService(servermocks.NewTokenCodec(t), store, time.Minute, time.Hour, testutil.MakeNoopLogger())

	n, err := svc.RevokeAllForUser(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
