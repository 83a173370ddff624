package model

// PasswordHasher hashes and verifies passwords and checks strength policy.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(plaintext, hash string) bool
	MeetsPolicy(password string) bool
}
