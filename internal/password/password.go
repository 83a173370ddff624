// Package password hashes and verifies user passwords.
package password

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// maxBytes is the longest input bcrypt hashes without truncation.
const maxBytes = 72

// Policy is the minimum strength a new password must meet.
type Policy struct {
	MinLength         int
	RequireComplexity bool
}

// Hasher hashes passwords with bcrypt.
type Hasher struct {
	policy Policy
	cost   int
	decoy  []byte
}

// NewHasher creates a Hasher. A cost outside bcrypt's range is rejected.
func NewHasher(policy Policy, cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if policy.MinLength < 1 {
		policy.MinLength = 1
	}
	decoy, err := bcrypt.GenerateFromPassword([]byte("schoolms-decoy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare decoy hash: %w", err)
	}
	return &Hasher{policy: policy, cost: cost, decoy: decoy}, nil
}

// Hash returns a salted bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. A malformed hash never
// matches. An empty hash, as passed for unknown accounts, is compared against
// a decoy of the same cost and never matches, so lookups of missing users
// take as long as wrong passwords.
func (h *Hasher) Verify(plaintext, hash string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(h.decoy, []byte(plaintext))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// MeetsPolicy reports whether password satisfies the configured policy.
func (h *Hasher) MeetsPolicy(password string) bool {
	if len([]rune(password)) < h.policy.MinLength || len(password) > maxBytes {
		return false
	}
	if !h.policy.RequireComplexity {
		return true
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}
