package handlers

import (
	"context"
	"net/http"

	"collective-rides/application/ports"
	"collective-rides/application/services"
	"collective-rides/domain/authorization"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	"collective-rides/pkg/common"
	pkgerrors "collective-rides/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MembershipHandler handles membership-related HTTP requests
type MembershipHandler struct {
	memberships *services.MembershipService
	errors      *pkgerrors.ErrorHandler
	logger      *zap.Logger
}

// NewMembershipHandler creates a new membership handler
func NewMembershipHandler(memberships *services.MembershipService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *MembershipHandler {
	return &MembershipHandler{
		memberships: memberships,
		errors:      errs,
		logger:      logger,
	}
}

type memberListQuery struct {
	Role   string `validate:"omitempty,oneof=member admin owner"`
	Status string `validate:"omitempty,oneof=pending active suspended removed"`
}

type memberAction func(ctx context.Context, auth authorization.AuthContext, clubID valueobjects.ClubID, userID string, input services.MemberActionInput) (*entities.Membership, error)

// JoinClub handles POST /clubs/{clubID}/members
func (h *MembershipHandler) JoinClub(w http.ResponseWriter, r *http.Request) {
	clubID, err := clubIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req services.JoinClubInput
	if err := decodeOptionalBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	membership, err := h.memberships.JoinClub(r.Context(), authContext(r), clubID, req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusCreated, toMembershipResponse(membership))
}

// LeaveClub handles DELETE /clubs/{clubID}/members/me
func (h *MembershipHandler) LeaveClub(w http.ResponseWriter, r *http.Request) {
	clubID, err := clubIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	membership, err := h.memberships.LeaveClub(r.Context(), authContext(r), clubID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, toMembershipResponse(membership))
}

// ListClubMembers handles GET /clubs/{clubID}/members
func (h *MembershipHandler) ListClubMembers(w http.ResponseWriter, r *http.Request) {
	clubID, err := clubIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	query := memberListQuery{
		Role:   r.URL.Query().Get("role"),
		Status: r.URL.Query().Get("status"),
	}
	if err := validate(query); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	params := common.ExtractCursorParams(r)

	page, err := h.memberships.ListClubMembers(r.Context(), authContext(r), clubID, ports.MemberListOptions{
		ListOptions: params.ListOptions(),
		Role:        entities.MembershipRole(query.Role),
		Status:      entities.MembershipStatus(query.Status),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondPage(w, r, page, params.Limit, toMembershipResponse)
}

// GetMember handles GET /clubs/{clubID}/members/{userID}
func (h *MembershipHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	clubID, err := clubIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	userID, err := userIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	membership, err := h.memberships.GetMembership(r.Context(), authContext(r), clubID, userID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, toMembershipResponse(membership))
}

// UpdateMemberRole handles PUT /clubs/{clubID}/members/{userID}/role
func (h *MembershipHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	clubID, err := clubIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	userID, err := userIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req services.UpdateMemberRoleInput
	if err := decodeBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	membership, err := h.memberships.UpdateMemberRole(r.Context(), authContext(r), clubID, userID, req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, toMembershipResponse(membership))
}

// RemoveMember handles DELETE /clubs/{clubID}/members/{userID}
func (h *MembershipHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, h.memberships.RemoveMember)
}

// MemberAction handles POST /clubs/{clubID}/members/{userID}/{action}
func (h *MembershipHandler) MemberAction(w http.ResponseWriter, r *http.Request) {
	var action memberAction
	switch chi.URLParam(r, "action") {
	case "approve":
		action = h.memberships.ApproveMembership
	case "reject":
		action = h.memberships.RejectMembership
	case "suspend":
		action = h.memberships.SuspendMember
	case "reinstate":
		action = h.memberships.ReinstateMember
	default:
		h.errors.Handle(w, r, pkgerrors.NewNotFoundError("member action"))
		return
	}
	h.runAction(w, r, action)
}

func (h *MembershipHandler) runAction(w http.ResponseWriter, r *http.Request, action memberAction) {
	clubID, err := clubIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	userID, err := userIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req services.MemberActionInput
	if err := decodeOptionalBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	membership, err := action(r.Context(), authContext(r), clubID, userID, req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, toMembershipResponse(membership))
}

// ListMyMemberships handles GET /users/me/memberships
func (h *MembershipHandler) ListMyMemberships(w http.ResponseWriter, r *http.Request) {
	query := memberListQuery{Status: r.URL.Query().Get("status")}
	if err := validate(query); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	params := common.ExtractCursorParams(r)

	page, err := h.memberships.GetUserMemberships(r.Context(), authContext(r), ports.UserMembershipListOptions{
		ListOptions: params.ListOptions(),
		Status:      entities.MembershipStatus(query.Status),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondPage(w, r, page, params.Limit, toMembershipResponse)
}
