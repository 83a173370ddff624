//go:build integration

package postgres_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/schoolms/schoolms-server/internal/model"
	repo "github.com/schoolms/schoolms-server/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "schoolms_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/schoolms_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func connect(t *testing.T) *repo.Connection {
	t.Helper()
	conn, err := repo.NewConnection(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newUser(email, contact string) model.User {
	now := time.Now().UTC()
	return model.User{
		ID:            uuid.New(),
		Email:         email,
		PasswordHash:  "$2a$04$hash",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		ContactNumber: contact,
		Role:          model.RoleTeacher,
		Status:        model.UserStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func hashOf(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	ur := repo.NewUserRepository(connect(t))

	u := newUser("Teacher@Example.com", "+100")
	saved, err := ur.Create(ctx, u)
	require.NoError(t, err)
	require.Equal(t, u.ID, saved.ID)
	require.Equal(t, "teacher@example.com", saved.Email)
	require.Nil(t, saved.LastLogin)

	byEmail, err := ur.GetByEmail(ctx, "TEACHER@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
	require.Equal(t, model.RoleTeacher, byEmail.Role)

	byID, err := ur.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "+100", byID.ContactNumber)

	_, err = ur.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, model.ErrNotFound)

	exists, err := ur.ExistsByEmailOrContact(ctx, "teacher@example.com", "")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = ur.ExistsByEmailOrContact(ctx, "other@example.com", "+100")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = ur.ExistsByEmailOrContact(ctx, "other@example.com", "")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = ur.Create(ctx, newUser("teacher@example.com", ""))
	require.ErrorIs(t, err, model.ErrDuplicateUser)
	_, err = ur.Create(ctx, newUser("second@example.com", "+100"))
	require.ErrorIs(t, err, model.ErrDuplicateUser)

	// users without a contact number never collide with each other
	_, err = ur.Create(ctx, newUser("third@example.com", ""))
	require.NoError(t, err)
	_, err = ur.Create(ctx, newUser("fourth@example.com", ""))
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, ur.TouchLastLogin(ctx, u.ID, at))
	require.NoError(t, ur.UpdatePassword(ctx, u.ID, "$2a$04$other", at))

	byID, err = ur.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, byID.LastLogin)
	require.True(t, at.Equal(*byID.LastLogin))
	require.Equal(t, "$2a$04$other", byID.PasswordHash)

	require.ErrorIs(t, ur.TouchLastLogin(ctx, uuid.New(), at), model.ErrNotFound)
}

func TestRefreshTokenRepository(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)
	ur := repo.NewUserRepository(conn)
	rr := repo.NewRefreshTokenRepository(conn)

	u, err := ur.Create(ctx, newUser("ledger@example.com", ""))
	require.NoError(t, err)

	device := "curl/8.0"
	ip := "10.0.0.1"
	entry := model.RefreshToken{
		ID:         uuid.New(),
		TokenHash:  hashOf("token-1"),
		JTI:        uuid.NewString(),
		UserID:     u.ID,
		ExpiresAt:  time.Now().Add(time.Hour),
		DeviceInfo: &device,
		IPAddress:  &ip,
	}
	require.NoError(t, rr.Record(ctx, entry))
	require.Error(t, rr.Record(ctx, entry), "duplicate id")

	got, err := rr.FindActive(ctx, entry.TokenHash, entry.JTI)
	require.NoError(t, err)
	require.Equal(t, entry.ID, got.ID)
	require.Equal(t, device, *got.DeviceInfo)
	require.Equal(t, ip, *got.IPAddress)

	_, err = rr.FindActive(ctx, hashOf("token-2"), entry.JTI)
	require.ErrorIs(t, err, model.ErrRefreshTokenNotFound)

	revoked, err := rr.Revoke(ctx, entry.ID)
	require.NoError(t, err)
	require.True(t, revoked)

	revoked, err = rr.Revoke(ctx, entry.ID)
	require.NoError(t, err)
	require.False(t, revoked, "revoke is idempotent")

	_, err = rr.FindActive(ctx, entry.TokenHash, entry.JTI)
	require.ErrorIs(t, err, model.ErrRefreshTokenNotFound)

	expired := model.RefreshToken{
		TokenHash: hashOf("token-expired"),
		JTI:       uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, rr.Record(ctx, expired))
	_, err = rr.FindActive(ctx, expired.TokenHash, expired.JTI)
	require.ErrorIs(t, err, model.ErrRefreshTokenNotFound)

	for i := 0; i < 3; i++ {
		require.NoError(t, rr.Record(ctx, model.RefreshToken{
			TokenHash: hashOf(fmt.Sprintf("bulk-%d", i)),
			JTI:       uuid.NewString(),
			UserID:    u.ID,
			ExpiresAt: time.Now().Add(time.Hour),
		}))
	}
	n, err := rr.RevokeAllByUser(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
}

func TestConnection_RunInTx_Rollback(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)
	ur := repo.NewUserRepository(conn)
	rr := repo.NewRefreshTokenRepository(conn)

	u, err := ur.Create(ctx, newUser("rollback@example.com", ""))
	require.NoError(t, err)

	entry := model.RefreshToken{
		TokenHash: hashOf("rollback"),
		JTI:       uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	boom := errors.New("boom")
	err = conn.RunInTx(ctx, func(ctx context.Context) error {
		if err := ur.TouchLastLogin(ctx, u.ID, time.Now()); err != nil {
			return err
		}
		if err := rr.Record(ctx, entry); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = rr.FindActive(ctx, entry.TokenHash, entry.JTI)
	require.ErrorIs(t, err, model.ErrRefreshTokenNotFound)
	got, err := ur.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.LastLogin)
}

func TestConnection_RunInTx_CanceledContext(t *testing.T) {
	conn := connect(t)
	ur := repo.NewUserRepository(conn)
	rr := repo.NewRefreshTokenRepository(conn)

	u, err := ur.Create(context.Background(), newUser("cancel@example.com", ""))
	require.NoError(t, err)

	entry := model.RefreshToken{
		TokenHash: hashOf("cancel"),
		JTI:       uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	ctx, cancel := context.WithCancel(context.Background())
	err = conn.RunInTx(ctx, func(txCtx context.Context) error {
		if err := rr.Record(txCtx, entry); err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.Error(t, err)

	_, err = rr.FindActive(context.Background(), entry.TokenHash, entry.JTI)
	require.ErrorIs(t, err, model.ErrRefreshTokenNotFound)
}

func TestRefreshTokenRepository_ConcurrentRotation(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)
	ur := repo.NewUserRepository(conn)
	rr := repo.NewRefreshTokenRepository(conn)

	u, err := ur.Create(ctx, newUser("race@example.com", ""))
	require.NoError(t, err)

	entry := model.RefreshToken{
		TokenHash: hashOf("race"),
		JTI:       uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, rr.Record(ctx, entry))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := conn.RunInTx(ctx, func(ctx context.Context) error {
				found, err := rr.FindActive(ctx, entry.TokenHash, entry.JTI)
				if err != nil {
					return err
				}
				ok, err := rr.Revoke(ctx, found.ID)
				if err != nil {
					return err
				}
				if !ok {
					return model.ErrRefreshTokenNotFound
				}
				return nil
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			if !errors.Is(err, model.ErrRefreshTokenNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, success)
}
