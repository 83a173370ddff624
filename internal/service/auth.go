package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/schoolms/schoolms-server/internal/logger"
	"github.com/schoolms/schoolms-server/internal/metrics"
	"github.com/schoolms/schoolms-server/internal/model"
)

// AuthOptions tunes session behaviour.
type AuthOptions struct {
	// RevokeSessionsOnPasswordChange revokes every outstanding refresh
	// token of a user whose password changes.
	RevokeSessionsOnPasswordChange bool
}

// Auth is the session manager: it registers users and drives login,
// refresh, logout and password change.
type Auth struct {
	users    model.UserStore
	tokens   *TokenService
	tx       model.Transactor
	hasher   model.PasswordHasher
	throttle model.LoginThrottle
	metrics  model.AuthMetrics
	opts     AuthOptions
	logger   *logger.Logger
	now      func() time.Time
}

func NewAuth(
	users model.UserStore,
	tokens *TokenService,
	tx model.Transactor,
	hasher model.PasswordHasher,
	throttle model.LoginThrottle,
	recorder model.AuthMetrics,
	opts AuthOptions,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		users:    users,
		tokens:   tokens,
		tx:       tx,
		hasher:   hasher,
		throttle: throttle,
		metrics:  recorder,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

func (a *Auth) Register(ctx context.Context, params model.RegisterParams) (model.UserProfile, error) {
	email := model.NormalizeEmail(params.Email)

	a.logger.Debug("Auth service: starting user registration",
		"email", email)

	role := model.RoleTeacher
	if params.Role != "" {
		r, err := model.ParseRole(params.Role)
		if err != nil {
			return model.UserProfile{}, err
		}
		role = r
	}

	exists, err := a.users.ExistsByEmailOrContact(ctx, email, params.ContactNumber)
	if err != nil {
		a.logger.Error("Auth service: failed to check existing user",
			"email", email,
			"error", err.Error())
		return model.UserProfile{}, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		a.logger.Info("Auth service: user already exists",
			"email", email)
		return model.UserProfile{}, model.ErrDuplicateUser
	}

	if !a.hasher.MeetsPolicy(params.Password) {
		return model.UserProfile{}, model.ErrWeakPassword
	}

	hash, err := a.hasher.Hash(params.Password)
	if err != nil {
		a.logger.Error("Auth service: failed to hash password",
			"email", email,
			"error", err.Error())
		return model.UserProfile{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := a.now()
	user, err := a.users.Create(ctx, model.User{
		ID:            uuid.New(),
		Email:         email,
		PasswordHash:  hash,
		FirstName:     params.FirstName,
		LastName:      params.LastName,
		ContactNumber: params.ContactNumber,
		Role:          role,
		Status:        model.UserStatusActive,
		SchoolID:      params.SchoolID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		if errors.Is(err, model.ErrDuplicateUser) {
			return model.UserProfile{}, err
		}
		a.logger.Error("Auth service: failed to create user",
			"email", email,
			"error", err.Error())
		return model.UserProfile{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.logger.Info("Auth service: user registered",
		"user_id", user.ID,
		"role", user.Role)

	return user.Profile(), nil
}

// Login verifies credentials and opens a session. Unknown emails, wrong
// passwords and accounts that cannot authenticate all fail with
// ErrInvalidCredentials.
func (a *Auth) Login(ctx context.Context, params model.LoginParams) (model.LoginResult, error) {
	email := model.NormalizeEmail(params.Email)

	if err := a.throttle.Check(ctx, email, params.IPAddress); err != nil {
		a.metrics.LoginAttempt(metrics.OutcomeThrottled)
		a.logger.Info("Auth service: login throttled",
			"email", email)
		return model.LoginResult{}, err
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		a.metrics.LoginAttempt(metrics.OutcomeError)
		a.logger.Error("Auth service: failed to get user by email",
			"email", email,
			"error", err.Error())
		return model.LoginResult{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	// unknown emails still pay for a hash comparison
	hash := user.PasswordHash
	if err != nil {
		hash = ""
	}
	matched := a.hasher.Verify(params.Password, hash)
	if err != nil || !matched || !user.CanAuthenticate() {
		a.throttle.RecordFailure(ctx, email, params.IPAddress)
		a.metrics.LoginAttempt(metrics.OutcomeFailure)
		a.logger.Info("Auth service: login rejected",
			"email", email)
		return model.LoginResult{}, model.ErrInvalidCredentials
	}

	now := a.now()
	var pair model.TokenPair
	err = a.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		pair, err = a.tokens.IssuePair(ctx, user, optional(params.DeviceInfo), optional(params.IPAddress))
		if err != nil {
			return err
		}
		return a.users.TouchLastLogin(ctx, user.ID, now)
	})
	if err != nil {
		a.metrics.LoginAttempt(metrics.OutcomeError)
		a.logger.Error("Auth service: failed to create session",
			"user_id", user.ID,
			"error", err.Error())
		return model.LoginResult{}, fmt.Errorf("failed to create session: %w", err)
	}

	a.throttle.Reset(ctx, email, params.IPAddress)
	a.metrics.LoginAttempt(metrics.OutcomeSuccess)

	user.LastLogin = &now
	user.UpdatedAt = now

	a.logger.Info("Auth service: user logged in",
		"user_id", user.ID)

	return model.LoginResult{User: user.Profile(), Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new pair and revokes the
// presented one. Each refresh token succeeds at most once.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	var pair model.TokenPair
	err := a.tx.RunInTx(ctx, func(ctx context.Context) error {
		rt, err := a.tokens.Find(ctx, refreshToken)
		if err != nil {
			return err
		}

		user, err := a.users.GetByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.ErrUserInactive
			}
			return fmt.Errorf("failed to get user by id: %w", err)
		}
		if !user.CanAuthenticate() {
			return model.ErrUserInactive
		}

		if err := a.tokens.Revoke(ctx, rt); err != nil {
			return err
		}

		pair, err = a.tokens.IssuePair(ctx, user, rt.DeviceInfo, rt.IPAddress)
		return err
	})
	if err != nil {
		switch {
		case model.IsTokenError(err), errors.Is(err, model.ErrRefreshTokenNotFound), errors.Is(err, model.ErrUserInactive):
			a.metrics.RefreshAttempt(metrics.OutcomeFailure)
			a.logger.Info("Auth service: refresh rejected",
				"reason", err.Error())
			return model.TokenPair{}, err
		default:
			a.metrics.RefreshAttempt(metrics.OutcomeError)
			a.logger.Error("Auth service: failed to refresh session",
				"error", err.Error())
			return model.TokenPair{}, fmt.Errorf("failed to refresh session: %w", err)
		}
	}

	a.metrics.RefreshAttempt(metrics.OutcomeSuccess)
	return pair, nil
}

// Logout revokes the ledger entry of refreshToken. It reports false, not an
// error, for invalid, unknown or already revoked tokens.
func (a *Auth) Logout(ctx context.Context, refreshToken string) (bool, error) {
	var revoked bool
	err := a.tx.RunInTx(ctx, func(ctx context.Context) error {
		rt, err := a.tokens.Find(ctx, refreshToken)
		if err != nil {
			return err
		}
		if err := a.tokens.Revoke(ctx, rt); err != nil {
			return err
		}
		revoked = true
		return nil
	})
	if err != nil {
		if model.IsTokenError(err) || errors.Is(err, model.ErrRefreshTokenNotFound) {
			a.metrics.LogoutAttempt(metrics.OutcomeFailure)
			return false, nil
		}
		a.metrics.LogoutAttempt(metrics.OutcomeError)
		a.logger.Error("Auth service: failed to logout",
			"error", err.Error())
		return false, fmt.Errorf("failed to logout: %w", err)
	}

	a.metrics.LogoutAttempt(metrics.OutcomeSuccess)
	return revoked, nil
}

// ChangePassword replaces the password of user after verifying the
// current one.
func (a *Auth) ChangePassword(ctx context.Context, user model.User, currentPassword, newPassword string) error {
	if !a.hasher.Verify(currentPassword, user.PasswordHash) {
		a.logger.Info("Auth service: password change rejected",
			"user_id", user.ID)
		return model.ErrInvalidCredentials
	}
	if !a.hasher.MeetsPolicy(newPassword) {
		return model.ErrWeakPassword
	}

	hash, err := a.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := a.now()
	err = a.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := a.users.UpdatePassword(ctx, user.ID, hash, now); err != nil {
			return err
		}
		if !a.opts.RevokeSessionsOnPasswordChange {
			return nil
		}
		n, err := a.tokens.RevokeAllForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		a.logger.Info("Auth service: revoked sessions after password change",
			"user_id", user.ID,
			"count", n)
		return nil
	})
	if err != nil {
		a.logger.Error("Auth service: failed to change password",
			"user_id", user.ID,
			"error", err.Error())
		return fmt.Errorf("failed to change password: %w", err)
	}

	a.logger.Info("Auth service: password changed",
		"user_id", user.ID)
	return nil
}

// Profile returns the profile of a user that has not been deleted.
func (a *Auth) Profile(ctx context.Context, id uuid.UUID) (model.UserProfile, error) {
	user, err := a.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.UserProfile{}, err
		}
		return model.UserProfile{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	if user.IsDeleted {
		return model.UserProfile{}, model.ErrNotFound
	}
	return user.Profile(), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
