package model

import "github.com/google/uuid"

// RegisterParams describes a new account.
type RegisterParams struct {
	Email         string
	Password      string
	FirstName     string
	LastName      string
	ContactNumber string
	Role          string
	SchoolID      *uuid.UUID
}

// LoginParams carries credentials and the origin of the request.
type LoginParams struct {
	Email      string
	Password   string
	DeviceInfo string
	IPAddress  string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User   UserProfile `json:"user"`
	Tokens TokenPair   `json:"tokens"`
}
