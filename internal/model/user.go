package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	ExistsByEmailOrContact(ctx context.Context, email, contactNumber string) (bool, error)
	Create(ctx context.Context, user User) (User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, updatedAt time.Time) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Role enumerates user roles. The set is closed.
type Role string

const (
	// RoleDistrictAdmin administers every school of a district.
	RoleDistrictAdmin Role = "district_admin"
	// RolePrincipal administers a single school.
	RolePrincipal Role = "principal"
	// RoleTeacher manages classes, marks and attendance.
	RoleTeacher Role = "teacher"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDistrictAdmin, RolePrincipal, RoleTeacher:
		return true
	default:
		return false
	}
}

// ParseRole converts a raw role name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// UserStatus is the account status of a user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// User represents a stored user with authentication material.
type User struct {
	ID            uuid.UUID
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	ContactNumber string
	Role          Role
	Status        UserStatus
	IsDeleted     bool
	IsVerified    bool
	SchoolID      *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLogin     *time.Time
}

// CanAuthenticate reports whether the account may log in or use tokens.
func (u User) CanAuthenticate() bool {
	return u.Status == UserStatusActive && !u.IsDeleted
}

// Profile returns the user without authentication material.
func (u User) Profile() UserProfile {
	return UserProfile{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		ContactNumber: u.ContactNumber,
		Role:          u.Role,
		Status:        u.Status,
		SchoolID:      u.SchoolID,
		IsVerified:    u.IsVerified,
		CreatedAt:     u.CreatedAt,
		LastLogin:     u.LastLogin,
	}
}

// UserProfile is the sanitized view of a user returned to clients.
type UserProfile struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	ContactNumber string     `json:"contact_number"`
	Role          Role       `json:"role"`
	Status        UserStatus `json:"status"`
	SchoolID      *uuid.UUID `json:"school_id,omitempty"`
	IsVerified    bool       `json:"is_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// NormalizeEmail returns the canonical form used for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
