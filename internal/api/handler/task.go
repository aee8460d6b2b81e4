package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/daybook/daybook/internal/api/request"
	"github.com/daybook/daybook/internal/api/response"
	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/service"
)

// TaskHandler handles task operations.
type TaskHandler struct {
	svc *service.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req request.CreateTaskRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, request.InvalidBody(err))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		response.Error(w, domain.NewValidationError(errors))
		return
	}

	task, err := h.svc.Create(r.Context(), service.CreateTaskInput{
		Title:           req.Title,
		Description:     req.Description,
		AreaID:          req.AreaID,
		Priority:        req.Priority,
		EstimateMinutes: req.EstimateMinutes,
		Date:            req.Date,
		Checklist:       req.Checklist,
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Created(w, task)
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, task)
}

// UpdateTask handles PATCH /tasks/{id}.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateTaskRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, request.InvalidBody(err))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		response.Error(w, domain.NewValidationError(errors))
		return
	}

	task, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), service.UpdateTaskInput{
		Title:           req.Title,
		Description:     req.Description,
		AreaID:          req.AreaID,
		Priority:        req.Priority,
		EstimateMinutes: req.EstimateMinutes,
		Checklist:       req.Checklist,
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, task)
}

// DeleteTask handles DELETE /tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}

	response.NoContent(w)
}

// CompleteTask handles POST /tasks/{id}/complete.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

// ReopenTask handles POST /tasks/{id}/reopen.
func (h *TaskHandler) ReopenTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Reopen)
}

// ArchiveTask handles POST /tasks/{id}/archive.
func (h *TaskHandler) ArchiveTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Archive)
}

// RescheduleTask handles POST /tasks/{id}/reschedule.
func (h *TaskHandler) RescheduleTask(w http.ResponseWriter, r *http.Request) {
	var req request.RescheduleRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, request.InvalidBody(err))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		response.Error(w, domain.NewValidationError(errors))
		return
	}

	task, err := h.svc.Reschedule(r.Context(), chi.URLParam(r, "id"), req.Date)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, task)
}

func (h *TaskHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*domain.Task, error)) {
	task, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, task)
}
