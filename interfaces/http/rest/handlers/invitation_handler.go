package handlers

import (
	"net/http"

	"collective-rides/application/ports"
	"collective-rides/application/services"
	"collective-rides/domain/core/entities"
	"collective-rides/pkg/common"
	pkgerrors "collective-rides/pkg/errors"

	"go.uber.org/zap"
)

// InvitationHandler handles invitation-related HTTP requests
type InvitationHandler struct {
	invitations *services.InvitationService
	errors      *pkgerrors.ErrorHandler
	logger      *zap.Logger
}

// NewInvitationHandler creates a new invitation handler
func NewInvitationHandler(invitations *services.InvitationService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *InvitationHandler {
	return &InvitationHandler{
		invitations: invitations,
		errors:      errs,
		logger:      logger,
	}
}

type invitationListQuery struct {
	Status string `validate:"omitempty,oneof=pending accepted declined expired cancelled"`
	By     string `validate:"omitempty,oneof=user email"`
}

// CreateInvitation handles POST /clubs/{clubID}/invitations
func (h *InvitationHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	clubID, err := clubIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req services.CreateInvitationInput
	if err := decodeBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	invitation, err := h.invitations.CreateInvitation(r.Context(), authContext(r), clubID, req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusCreated, toInvitationResponse(invitation))
}

// ListClubInvitations handles GET /clubs/{clubID}/invitations
func (h *InvitationHandler) ListClubInvitations(w http.ResponseWriter, r *http.Request) {
	clubID, err := clubIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	query := invitationListQuery{Status: r.URL.Query().Get("status")}
	if err := validate(query); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	params := common.ExtractCursorParams(r)

	page, err := h.invitations.ListClubInvitations(r.Context(), authContext(r), clubID, ports.InvitationListOptions{
		ListOptions: params.ListOptions(),
		Status:      entities.InvitationStatus(query.Status),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondPage(w, r, page, params.Limit, toInvitationResponse)
}

// ListMyInvitations handles GET /users/me/invitations. by=email lists invitations
// addressed to the caller's email instead of their user ID.
func (h *InvitationHandler) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	query := invitationListQuery{
		Status: r.URL.Query().Get("status"),
		By:     r.URL.Query().Get("by"),
	}
	if err := validate(query); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	params := common.ExtractCursorParams(r)

	page, err := h.invitations.ListMyInvitations(r.Context(), authContext(r), query.By == "email", ports.InvitationListOptions{
		ListOptions: params.ListOptions(),
		Status:      entities.InvitationStatus(query.Status),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondPage(w, r, page, params.Limit, toInvitationResponse)
}

// ProcessInvitation handles PUT /invitations/{invitationID}
func (h *InvitationHandler) ProcessInvitation(w http.ResponseWriter, r *http.Request) {
	invitationID, err := invitationIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req services.ProcessInvitationInput
	if err := decodeBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	invitation, err := h.invitations.ProcessInvitation(r.Context(), authContext(r), invitationID, req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, toInvitationResponse(invitation))
}

// CancelInvitation handles DELETE /invitations/{invitationID}
func (h *InvitationHandler) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	invitationID, err := invitationIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	invitation, err := h.invitations.CancelInvitation(r.Context(), authContext(r), invitationID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, toInvitationResponse(invitation))
}
