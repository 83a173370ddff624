package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/schoolms/schoolms-server/internal/logger"
	"github.com/schoolms/schoolms-server/internal/model"
	"github.com/schoolms/schoolms-server/pkg/response"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// AuthService defines registration and session operations.
type AuthService interface {
	Register(ctx context.Context, params model.RegisterParams) (model.UserProfile, error)
	Login(ctx context.Context, params model.LoginParams) (model.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) (bool, error)
	ChangePassword(ctx context.Context, user model.User, currentPassword, newPassword string) error
	Profile(ctx context.Context, id uuid.UUID) (model.UserProfile, error)
}

type registerRequest struct {
	Email         string     `json:"email" validate:"required,email,max=255"`
	Password      string     `json:"password" validate:"required"`
	FirstName     string     `json:"first_name" validate:"required,max=100"`
	LastName      string     `json:"last_name" validate:"required,max=100"`
	ContactNumber string     `json:"contact_number" validate:"omitempty,max=32"`
	Role          string     `json:"role" validate:"omitempty,oneof=district_admin principal teacher"`
	SchoolID      *uuid.UUID `json:"school_id"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

type verifyResponse struct {
	Valid bool              `json:"valid"`
	User  model.UserProfile `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Auth handles HTTP endpoints for authentication.
type Auth struct {
	authService    AuthService
	contextManager model.ContextManager
	validate       *validator.Validate
	logger         *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(authService AuthService, contextManager model.ContextManager, logger *logger.Logger) *Auth {
	return &Auth{
		authService:    authService,
		contextManager: contextManager,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		logger:         logger,
	}
}

// Register creates an account and returns its profile.
func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	profile, err := h.authService.Register(r.Context(), model.RegisterParams{
		Email:         req.Email,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		ContactNumber: req.ContactNumber,
		Role:          req.Role,
		SchoolID:      req.SchoolID,
	})
	if err != nil {
		h.fail(w, "register", err)
		return
	}

	response.WriteSuccess(w, http.StatusCreated, profile)
}

// Login exchanges credentials for a token pair.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.authService.Login(r.Context(), model.LoginParams{
		Email:      req.Email,
		Password:   req.Password,
		DeviceInfo: r.UserAgent(),
		IPAddress:  clientIP(r),
	})
	if err != nil {
		h.fail(w, "login", err)
		return
	}

	response.WriteSuccess(w, http.StatusOK, result)
}

// Refresh rotates a refresh token.
func (h *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		// an inactive owner invalidates the refresh token itself
		if errors.Is(err, model.ErrUserInactive) {
			err = model.ErrRefreshTokenNotFound
		}
		h.fail(w, "refresh", err)
		return
	}

	response.WriteSuccess(w, http.StatusOK, pair)
}

// Logout revokes a refresh token. Unknown or already revoked tokens still
// answer 200 with success false.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	ok, err := h.authService.Logout(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, "logout", err)
		return
	}

	response.WriteSuccess(w, http.StatusOK, logoutResponse{Success: ok})
}

// Me returns the profile of the authenticated user.
func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.contextManager.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	response.WriteSuccess(w, http.StatusOK, user.Profile())
}

// VerifyToken confirms that the presented access token is valid.
func (h *Auth) VerifyToken(w http.ResponseWriter, r *http.Request) {
	user, ok := h.contextManager.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	response.WriteSuccess(w, http.StatusOK, verifyResponse{Valid: true, User: user.Profile()})
}

// ChangePassword replaces the password of the authenticated user.
func (h *Auth) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := h.contextManager.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authService.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, "change password", err)
		return
	}

	response.WriteSuccess(w, http.StatusOK, messageResponse{Message: "password changed"})
}

// GetUser returns the profile of any user by id.
func (h *Auth) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	profile, err := h.authService.Profile(r.Context(), id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}

	response.WriteSuccess(w, http.StatusOK, profile)
}

func (h *Auth) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		response.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			response.WriteError(w, http.StatusBadRequest, "invalid field: "+verrs[0].Field())
			return false
		}
		response.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	return true
}

func (h *Auth) fail(w http.ResponseWriter, op string, err error) {
	code, _ := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("Auth handler: request failed",
			"op", op,
			"error", err.Error())
	} else {
		h.logger.Debug("Auth handler: request rejected",
			"op", op,
			"error", err.Error())
	}
	writeError(w, err)
}

// clientIP returns the host part of RemoteAddr. Behind a trusted proxy the
// router's RealIP middleware has already replaced it with the forwarded
// client address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
