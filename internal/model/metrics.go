package model

// AuthMetrics records session lifecycle outcomes.
type AuthMetrics interface {
	LoginAttempt(outcome string)
	RefreshAttempt(outcome string)
	LogoutAttempt(outcome string)
}
