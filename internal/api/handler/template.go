package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/daybook/daybook/internal/api/request"
	"github.com/daybook/daybook/internal/api/response"
	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/service"
)

// TemplateHandler handles template operations.
type TemplateHandler struct {
	svc *service.TemplateService
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(svc *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

// CreateTemplate handles POST /templates.
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req request.CreateTemplateRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, request.InvalidBody(err))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		response.Error(w, domain.NewValidationError(errors))
		return
	}

	tpl, err := h.svc.Create(r.Context(), service.CreateTemplateInput{
		Kind:            req.Kind,
		Title:           req.Title,
		Description:     req.Description,
		AreaID:          req.AreaID,
		Priority:        req.Priority,
		EstimateMinutes: req.EstimateMinutes,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Checklist:       req.Checklist,
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Created(w, tpl)
}

// GetTemplate handles GET /templates/{id}.
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, tpl)
}

// ListTemplates handles GET /templates.
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := h.svc.List(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}

	if tpls == nil {
		tpls = []*domain.Template{}
	}

	response.List(w, tpls)
}
