package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/daybook/daybook/internal/api/request"
	"github.com/daybook/daybook/internal/api/response"
	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/service"
)

// TimeBlockHandler handles time block operations.
type TimeBlockHandler struct {
	svc *service.TimeBlockService
}

// NewTimeBlockHandler creates a new TimeBlockHandler.
func NewTimeBlockHandler(svc *service.TimeBlockService) *TimeBlockHandler {
	return &TimeBlockHandler{svc: svc}
}

// GetTimeBlock handles GET /time-blocks/{id}.
func (h *TimeBlockHandler) GetTimeBlock(w http.ResponseWriter, r *http.Request) {
	block, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, block)
}

// DeleteTimeBlock handles DELETE /time-blocks/{id}.
func (h *TimeBlockHandler) DeleteTimeBlock(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}

	response.NoContent(w)
}

// CompleteTimeBlock handles POST /time-blocks/{id}/complete.
func (h *TimeBlockHandler) CompleteTimeBlock(w http.ResponseWriter, r *http.Request) {
	block, err := h.svc.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, block)
}

// RescheduleTimeBlock handles POST /time-blocks/{id}/reschedule.
func (h *TimeBlockHandler) RescheduleTimeBlock(w http.ResponseWriter, r *http.Request) {
	var req request.RescheduleRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, request.InvalidBody(err))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		response.Error(w, domain.NewValidationError(errors))
		return
	}

	block, err := h.svc.Reschedule(r.Context(), chi.URLParam(r, "id"), req.Date)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, block)
}
