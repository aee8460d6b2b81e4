package handler

import (
	"net/http"

	"github.com/daybook/daybook/internal/api/request"
	"github.com/daybook/daybook/internal/api/response"
	"github.com/daybook/daybook/internal/service"
)

// SystemHandler handles system-level operations.
type SystemHandler struct {
	agenda *service.AgendaService
	outbox *service.OutboxService
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(agenda *service.AgendaService, outbox *service.OutboxService) *SystemHandler {
	return &SystemHandler{agenda: agenda, outbox: outbox}
}

// Health handles GET /v1/health.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

// Reconcile handles POST /v1/reconcile?date=.
func (h *SystemHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	date, err := request.ParseDate(r, "date")
	if err != nil {
		response.Error(w, err)
		return
	}

	ids, err := h.agenda.Reconcile(r.Context(), date)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]interface{}{"date": date, "instance_ids": ids})
}

// Agenda handles GET /v1/agenda?from=&to=.
func (h *SystemHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	from, to, err := request.ParseDateRange(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	agenda, err := h.agenda.Range(r.Context(), from, to)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, agenda)
}

// ListOutbox handles GET /v1/outbox?after=&limit=.
func (h *SystemHandler) ListOutbox(w http.ResponseWriter, r *http.Request) {
	after, limit := request.ParseOutboxCursor(r)

	events, err := h.outbox.List(r.Context(), after, limit)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.List(w, events)
}
