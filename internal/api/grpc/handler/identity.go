package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/schoolms/schoolms-server/internal/logger"
	"github.com/schoolms/schoolms-server/internal/model"
)

// Gate authenticates access tokens and checks roles.
type Gate interface {
	Authenticate(ctx context.Context, accessToken string) (model.User, error)
	Authorize(user model.User, allowed ...model.Role) error
}

// Identity lets sibling services run the authorization gate remotely.
type Identity struct {
	gate   Gate
	logger *logger.Logger
}

// NewIdentity creates a new Identity handler.
func NewIdentity(gate Gate, logger *logger.Logger) *Identity {
	return &Identity{gate: gate, logger: logger}
}

// VerifyAccessToken expects {access_token, roles[]} and returns the
// sanitized profile of the token's user. An empty roles list admits any role.
func (h *Identity) VerifyAccessToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()

	token := fields["access_token"].GetStringValue()
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "access_token is required")
	}

	var roles []model.Role
	for _, v := range fields["roles"].GetListValue().GetValues() {
		role, err := model.ParseRole(v.GetStringValue())
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		roles = append(roles, role)
	}

	user, err := h.gate.Authenticate(ctx, token)
	if err != nil {
		return nil, h.handleError(err)
	}

	if len(roles) > 0 {
		if err := h.gate.Authorize(user, roles...); err != nil {
			return nil, h.handleError(err)
		}
	}

	out, err := profileStruct(user.Profile())
	if err != nil {
		h.logger.Error("Identity handler: failed to encode profile",
			"user_id", user.ID,
			"error", err.Error())
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return out, nil
}

func (h *Identity) handleError(err error) error {
	st := handleError(err)
	if status.Code(st) == codes.Internal {
		h.logger.Error("Identity handler: gate failed",
			"error", err.Error())
	}
	return st
}

func profileStruct(p model.UserProfile) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"id":             p.ID.String(),
		"email":          p.Email,
		"first_name":     p.FirstName,
		"last_name":      p.LastName,
		"contact_number": p.ContactNumber,
		"role":           string(p.Role),
		"status":         string(p.Status),
		"is_verified":    p.IsVerified,
		"created_at":     p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.SchoolID != nil {
		m["school_id"] = p.SchoolID.String()
	}
	if p.LastLogin != nil {
		m["last_login"] = p.LastLogin.UTC().Format(time.RFC3339)
	}
	return structpb.NewStruct(m)
}
