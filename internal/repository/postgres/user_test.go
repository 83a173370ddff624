package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolms/schoolms-server/internal/model"
)

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

func TestUserColumns_HideNullContact(t *testing.T) {
	assert.Contains(t, userColumns, "COALESCE(contact_number, '')")
}

func TestScanUser(t *testing.T) {
	id := uuid.New()
	school := uuid.New()
	created := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

	row := rowFunc(func(dest ...any) error {
		require.Len(t, dest, 14)
		*dest[0].(*uuid.UUID) = id
		*dest[1].(*string) = "teacher@school.test"
		*dest[2].(*string) = "hash"
		*dest[3].(*string) = "Ada"
		*dest[4].(*string) = "Lovelace"
		*dest[5].(*string) = ""
		*dest[6].(*model.Role) = model.RoleTeacher
		*dest[7].(*model.UserStatus) = model.UserStatusActive
		*dest[8].(*bool) = false
		*dest[9].(*bool) = true
		*dest[10].(**uuid.UUID) = &school
		*dest[11].(*time.Time) = created
		*dest[12].(*time.Time) = created
		return nil
	})

	user, err := scanUser(row)

	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "teacher@school.test", user.Email)
	assert.Equal(t, model.RoleTeacher, user.Role)
	assert.True(t, user.IsVerified)
	require.NotNil(t, user.SchoolID)
	assert.Equal(t, school, *user.SchoolID)
	assert.Nil(t, user.LastLogin)
}

func TestScanUser_PropagatesScanError(t *testing.T) {
	scanErr := errors.New("column mismatch")

	_, err := scanUser(rowFunc(func(...any) error { return scanErr }))

	assert.ErrorIs(t, err, scanErr)
}
