package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/daybook/daybook/internal/api/middleware"
	"github.com/daybook/daybook/internal/api/request"
	"github.com/daybook/daybook/internal/api/response"
	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/service"
)

// RecurrenceHandler handles recurrence operations.
type RecurrenceHandler struct {
	svc *service.RecurrenceService
}

// NewRecurrenceHandler creates a new RecurrenceHandler.
func NewRecurrenceHandler(svc *service.RecurrenceService) *RecurrenceHandler {
	return &RecurrenceHandler{svc: svc}
}

// CreateRecurrence handles POST /recurrences.
func (h *RecurrenceHandler) CreateRecurrence(w http.ResponseWriter, r *http.Request) {
	var req request.CreateRecurrenceRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, request.InvalidBody(err))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		response.Error(w, domain.NewValidationError(errors))
		return
	}

	rec, err := h.svc.Create(r.Context(), service.CreateRecurrenceInput{
		TemplateID:      req.TemplateID,
		Rule:            req.Rule,
		TimeType:        req.TimeType,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Timezone:        req.Timezone,
		ExpiryBehavior:  req.ExpiryBehavior,
		AdoptInstanceID: req.AdoptInstanceID,
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Created(w, rec)
}

// GetRecurrence handles GET /recurrences/{id}.
func (h *RecurrenceHandler) GetRecurrence(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, rec)
}

// ListRecurrences handles GET /recurrences.
func (h *RecurrenceHandler) ListRecurrences(w http.ResponseWriter, r *http.Request) {
	input := service.ListRecurrencesInput{ActiveOnly: r.URL.Query().Get("active") == "true"}
	if tpl := r.URL.Query().Get("template_id"); tpl != "" {
		input.TemplateID = &tpl
	}

	recs, err := h.svc.List(r.Context(), input)
	if err != nil {
		response.Error(w, err)
		return
	}

	if recs == nil {
		recs = []*domain.Recurrence{}
	}

	response.List(w, recs)
}

// EditRecurrence handles PATCH /recurrences/{id}.
func (h *RecurrenceHandler) EditRecurrence(w http.ResponseWriter, r *http.Request) {
	var req request.EditRecurrenceRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, request.InvalidBody(err))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		response.Error(w, domain.NewValidationError(errors))
		return
	}

	input := service.EditRecurrenceInput{
		Rule:                  req.Rule,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		ClearEndDate:          req.ClearEndDate,
		TimeType:              req.TimeType,
		Timezone:              req.Timezone,
		ExpiryBehavior:        req.ExpiryBehavior,
		Active:                req.Active,
		LocalNow:              req.LocalNow,
		DeleteFutureInstances: req.DeleteFutureInstances,
	}
	if input.LocalNow == nil {
		input.LocalNow = middleware.GetLocalNow(r.Context())
	}
	if req.Template != nil {
		fields := instanceFields(*req.Template)
		input.Template = &fields
	}

	res, err := h.svc.Edit(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, res)
}

// DeleteRecurrence handles DELETE /recurrences/{id}.
func (h *RecurrenceHandler) DeleteRecurrence(w http.ResponseWriter, r *http.Request) {
	retracted, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), service.DeleteRecurrenceInput{
		LocalNow: middleware.GetLocalNow(r.Context()),
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, map[string][]string{"retracted": retracted})
}

// PreviewRecurrence handles GET /recurrences/{id}/preview?from=&to=.
func (h *RecurrenceHandler) PreviewRecurrence(w http.ResponseWriter, r *http.Request) {
	from, to, err := request.ParseDateRange(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	dates, err := h.svc.Preview(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.List(w, dates)
}

// BatchUpdateInstances handles POST /recurrences/{id}/instances:batch.
func (h *RecurrenceHandler) BatchUpdateInstances(w http.ResponseWriter, r *http.Request) {
	var req request.BatchUpdateRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, request.InvalidBody(err))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		response.Error(w, domain.NewValidationError(errors))
		return
	}

	updated, err := h.svc.BatchUpdate(r.Context(), chi.URLParam(r, "id"), service.BatchUpdateInput{
		Fields:   instanceFields(req.InstanceFieldsRequest),
		FromDate: req.FromDate,
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, map[string][]string{"updated": updated})
}

func instanceFields(req request.InstanceFieldsRequest) service.InstanceFields {
	return service.InstanceFields{
		Title:           req.Title,
		Description:     req.Description,
		AreaID:          req.AreaID,
		Priority:        req.Priority,
		EstimateMinutes: req.EstimateMinutes,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Checklist:       req.Checklist,
	}
}
