package service

import (
	"bytes"
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schoolms/schoolms-server/internal/model"
)

type memTxKey struct{}

// memDB is an in-memory UserStore, RefreshTokenStore and Transactor.
// Transactions hold a global lock and restore a snapshot on error.
type memDB struct {
	mu     sync.Mutex
	users  map[uuid.UUID]model.User
	tokens map[uuid.UUID]model.RefreshToken

	failRecord error
	failTouch  error
}

func newMemDB() *memDB {
	return &memDB{
		users:  make(map[uuid.UUID]model.User),
		tokens: make(map[uuid.UUID]model.RefreshToken),
	}
}

func (m *memDB) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memDB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	users := maps.Clone(m.users)
	tokens := maps.Clone(m.tokens)
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.users = users
		m.tokens = tokens
		return err
	}
	return nil
}

func (m *memDB) GetByEmail(ctx context.Context, email string) (model.User, error) {
	defer m.lock(ctx)()
	for _, u := range m.users {
		if u.Email == model.NormalizeEmail(email) {
			return u, nil
		}
	}
	return model.User{}, model.ErrNotFound
}

func (m *memDB) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	defer m.lock(ctx)()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (m *memDB) ExistsByEmailOrContact(ctx context.Context, email, contactNumber string) (bool, error) {
	defer m.lock(ctx)()
	for _, u := range m.users {
		if u.Email == model.NormalizeEmail(email) || (contactNumber != "" && u.ContactNumber == contactNumber) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memDB) Create(ctx context.Context, user model.User) (model.User, error) {
	defer m.lock(ctx)()
	for _, u := range m.users {
		if u.Email == user.Email {
			return model.User{}, model.ErrDuplicateUser
		}
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memDB) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, updatedAt time.Time) error {
	defer m.lock(ctx)()
	u, ok := m.users[id]
	if !ok {
		return model.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = updatedAt
	m.users[id] = u
	return nil
}

func (m *memDB) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	defer m.lock(ctx)()
	if m.failTouch != nil {
		return m.failTouch
	}
	u, ok := m.users[id]
	if !ok {
		return model.ErrNotFound
	}
	u.LastLogin = &at
	u.UpdatedAt = at
	m.users[id] = u
	return nil
}

func (m *memDB) Record(ctx context.Context, token model.RefreshToken) error {
	defer m.lock(ctx)()
	if m.failRecord != nil {
		return m.failRecord
	}
	m.tokens[token.ID] = token
	return nil
}

func (m *memDB) FindActive(ctx context.Context, tokenHash []byte, jti string) (model.RefreshToken, error) {
	defer m.lock(ctx)()
	for _, t := range m.tokens {
		if bytes.Equal(t.TokenHash, tokenHash) && t.JTI == jti && t.Usable(time.Now()) {
			return t, nil
		}
	}
	return model.RefreshToken{}, model.ErrRefreshTokenNotFound
}

func (m *memDB) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	defer m.lock(ctx)()
	t, ok := m.tokens[id]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	m.tokens[id] = t
	return true, nil
}

func (m *memDB) RevokeAllByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer m.lock(ctx)()
	var n int64
	for id, t := range m.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			m.tokens[id] = t
			n++
		}
	}
	return n, nil
}

func (m *memDB) setStatus(id uuid.UUID, status model.UserStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.Status = status
	m.users[id] = u
}

func (m *memDB) user(id uuid.UUID) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memDB) activeTokens(userID uuid.UUID) []model.RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RefreshToken
	for _, t := range m.tokens {
		if t.UserID == userID && !t.Revoked {
			out = append(out, t)
		}
	}
	return out
}
