package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"collective-rides/application/ports"
	"collective-rides/domain/authorization"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	"collective-rides/pkg/auth"
	"collective-rides/pkg/common"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/utils"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

// authContext converts the identity set by the auth middleware. Without one the
// context is anonymous and the services reject it.
func authContext(r *http.Request) authorization.AuthContext {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return authorization.AuthContext{}
	}
	return authorization.NewAuthContext(identity.UserID, identity.Email, authorization.SystemRole(identity.SystemRole)).
		WithVerifiedEmail(identity.EmailVerified)
}

// decodeBody parses and validates a required JSON body
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := common.ParseJSONBody(w, r, v, maxBodyBytes); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.NewValidationError("request body is required")
		}
		return pkgerrors.NewValidationError("invalid request body: " + err.Error())
	}
	return validate(v)
}

// decodeOptionalBody is decodeBody for endpoints where the body may be omitted
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := common.ParseJSONBody(w, r, v, maxBodyBytes); err != nil && !errors.Is(err, io.EOF) {
		return pkgerrors.NewValidationError("invalid request body: " + err.Error())
	}
	return validate(v)
}

func validate(v interface{}) error {
	if err := utils.ValidateStruct(v); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

func clubIDParam(r *http.Request) (valueobjects.ClubID, error) {
	id, err := valueobjects.ParseClubID(chi.URLParam(r, "clubID"))
	if err != nil {
		return "", pkgerrors.NewValidationError("invalid club ID: " + err.Error())
	}
	return id, nil
}

func invitationIDParam(r *http.Request) (valueobjects.InvitationID, error) {
	id, err := valueobjects.ParseInvitationID(chi.URLParam(r, "invitationID"))
	if err != nil {
		return "", pkgerrors.NewValidationError("invalid invitation ID: " + err.Error())
	}
	return id, nil
}

func userIDParam(r *http.Request) (string, error) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		return "", pkgerrors.NewValidationError("user ID is required")
	}
	return userID, nil
}

// respondPage writes one page with cursor metadata
func respondPage[T any, R any](w http.ResponseWriter, r *http.Request, page ports.Page[T], limit int, convert func(T) R) {
	items := make([]R, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, convert(item))
	}
	common.RespondWithMeta(w, r, http.StatusOK, items, &common.MetaInfo{
		Pagination: common.BuildCursorMeta(page, limit),
	})
}

func formatTime(t time.Time) string {
	return utils.FormatTimestamp(t)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return utils.FormatTimestamp(*t)
}

// ClubResponse is the API representation of a club
type ClubResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	City        string `json:"city,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toClubResponse(c *entities.Club) ClubResponse {
	return ClubResponse{
		ID:          c.ID().String(),
		Name:        c.Name(),
		Description: c.Description(),
		City:        c.City(),
		LogoURL:     c.LogoURL(),
		Status:      string(c.Status()),
		CreatedAt:   formatTime(c.CreatedAt()),
		UpdatedAt:   formatTime(c.UpdatedAt()),
	}
}

// MembershipResponse is the API representation of a membership
type MembershipResponse struct {
	ID          string `json:"id"`
	ClubID      string `json:"clubId"`
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	JoinedAt    string `json:"joinedAt"`
	UpdatedAt   string `json:"updatedAt"`
	JoinMessage string `json:"joinMessage,omitempty"`
	InvitedBy   string `json:"invitedBy,omitempty"`
	ProcessedBy string `json:"processedBy,omitempty"`
	ProcessedAt string `json:"processedAt,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func toMembershipResponse(m *entities.Membership) MembershipResponse {
	return MembershipResponse{
		ID:          m.ID().String(),
		ClubID:      m.ClubID().String(),
		UserID:      m.UserID(),
		Role:        string(m.Role()),
		Status:      string(m.Status()),
		JoinedAt:    formatTime(m.JoinedAt()),
		UpdatedAt:   formatTime(m.UpdatedAt()),
		JoinMessage: m.JoinMessage(),
		InvitedBy:   m.InvitedBy(),
		ProcessedBy: m.ProcessedBy(),
		ProcessedAt: formatOptionalTime(m.ProcessedAt()),
		Reason:      m.Reason(),
	}
}

// InvitationResponse is the API representation of an invitation. The token is never returned.
type InvitationResponse struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	ClubID         string `json:"clubId"`
	Email          string `json:"email,omitempty"`
	UserID         string `json:"userId,omitempty"`
	Role           string `json:"role"`
	Status         string `json:"status"`
	InvitedBy      string `json:"invitedBy"`
	InvitedAt      string `json:"invitedAt"`
	ExpiresAt      string `json:"expiresAt"`
	ProcessedAt    string `json:"processedAt,omitempty"`
	Message        string `json:"message,omitempty"`
	DeliveryMethod string `json:"deliveryMethod,omitempty"`
}

func toInvitationResponse(i *entities.Invitation) InvitationResponse {
	return InvitationResponse{
		ID:             i.ID().String(),
		Type:           string(i.Type()),
		ClubID:         i.ClubID().String(),
		Email:          i.Email(),
		UserID:         i.UserID(),
		Role:           string(i.Role()),
		Status:         string(i.Status()),
		InvitedBy:      i.InvitedBy(),
		InvitedAt:      formatTime(i.InvitedAt()),
		ExpiresAt:      formatTime(i.ExpiresAt()),
		ProcessedAt:    formatOptionalTime(i.ProcessedAt()),
		Message:        i.Message(),
		DeliveryMethod: string(i.DeliveryMethod()),
	}
}
