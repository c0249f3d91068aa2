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

// ClubHandler handles club-related HTTP requests
type ClubHandler struct {
	clubs  *services.ClubService
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewClubHandler creates a new club handler
func NewClubHandler(clubs *services.ClubService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ClubHandler {
	return &ClubHandler{
		clubs:  clubs,
		errors: errs,
		logger: logger,
	}
}

type clubListQuery struct {
	Status string `validate:"omitempty,oneof=active suspended archived"`
}

// CreateClub handles POST /clubs
func (h *ClubHandler) CreateClub(w http.ResponseWriter, r *http.Request) {
	var req services.CreateClubInput
	if err := decodeBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	club, err := h.clubs.CreateClub(r.Context(), authContext(r), req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusCreated, toClubResponse(club))
}

// ListClubs handles GET /clubs
func (h *ClubHandler) ListClubs(w http.ResponseWriter, r *http.Request) {
	query := clubListQuery{Status: r.URL.Query().Get("status")}
	if err := validate(query); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	params := common.ExtractCursorParams(r)

	page, err := h.clubs.ListClubs(r.Context(), ports.ClubListOptions{
		ListOptions: params.ListOptions(),
		Status:      entities.ClubStatus(query.Status),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondPage(w, r, page, params.Limit, toClubResponse)
}

// GetClub handles GET /clubs/{clubID}
func (h *ClubHandler) GetClub(w http.ResponseWriter, r *http.Request) {
	clubID, err := clubIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	club, err := h.clubs.GetClub(r.Context(), clubID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, toClubResponse(club))
}

// UpdateClub handles PUT /clubs/{clubID}
func (h *ClubHandler) UpdateClub(w http.ResponseWriter, r *http.Request) {
	clubID, err := clubIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req services.UpdateClubInput
	if err := decodeBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	club, err := h.clubs.UpdateClub(r.Context(), authContext(r), clubID, req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, toClubResponse(club))
}

// ChangeClubStatus handles POST /clubs/{clubID}/status
func (h *ClubHandler) ChangeClubStatus(w http.ResponseWriter, r *http.Request) {
	clubID, err := clubIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req services.ChangeClubStatusInput
	if err := decodeBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	club, err := h.clubs.ChangeClubStatus(r.Context(), authContext(r), clubID, req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.logger.Info("Club status changed via API",
		zap.String("clubID", clubID.String()),
		zap.String("status", string(club.Status())),
	)
	common.RespondJSON(w, r, http.StatusOK, toClubResponse(club))
}
