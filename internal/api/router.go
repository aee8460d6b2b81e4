package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/daybook/daybook/internal/api/handler"
	"github.com/daybook/daybook/internal/api/middleware"
	"github.com/daybook/daybook/internal/service"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(svcs *service.Services, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware chain
	r.Use(middleware.Recovery(log))
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.LocalNow)

	// Initialize handlers
	systemHandler := handler.NewSystemHandler(svcs.Agenda, svcs.Outbox)
	templateHandler := handler.NewTemplateHandler(svcs.Templates)
	recurrenceHandler := handler.NewRecurrenceHandler(svcs.Recurrences)
	taskHandler := handler.NewTaskHandler(svcs.Tasks)
	timeBlockHandler := handler.NewTimeBlockHandler(svcs.TimeBlocks)

	r.Route("/v1", func(r chi.Router) {
		// System
		r.Get("/health", systemHandler.Health)
		r.Post("/reconcile", systemHandler.Reconcile)
		r.Get("/agenda", systemHandler.Agenda)
		r.Get("/outbox", systemHandler.ListOutbox)

		// Templates
		r.Get("/templates", templateHandler.ListTemplates)
		r.Post("/templates", templateHandler.CreateTemplate)
		r.Get("/templates/{id}", templateHandler.GetTemplate)

		// Recurrences
		r.Get("/recurrences", recurrenceHandler.ListRecurrences)
		r.Post("/recurrences", recurrenceHandler.CreateRecurrence)
		r.Get("/recurrences/{id}", recurrenceHandler.GetRecurrence)
		r.Patch("/recurrences/{id}", recurrenceHandler.EditRecurrence)
		r.Delete("/recurrences/{id}", recurrenceHandler.DeleteRecurrence)
		r.Get("/recurrences/{id}/preview", recurrenceHandler.PreviewRecurrence)
		r.Post("/recurrences/{id}/instances:batch", recurrenceHandler.BatchUpdateInstances)

		// Tasks
		r.Post("/tasks", taskHandler.CreateTask)
		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Patch("/tasks/{id}", taskHandler.UpdateTask)
		r.Delete("/tasks/{id}", taskHandler.DeleteTask)
		r.Post("/tasks/{id}/complete", taskHandler.CompleteTask)
		r.Post("/tasks/{id}/reopen", taskHandler.ReopenTask)
		r.Post("/tasks/{id}/archive", taskHandler.ArchiveTask)
		r.Post("/tasks/{id}/reschedule", taskHandler.RescheduleTask)

		// Time blocks
		r.Get("/time-blocks/{id}", timeBlockHandler.GetTimeBlock)
		r.Delete("/time-blocks/{id}", timeBlockHandler.DeleteTimeBlock)
		r.Post("/time-blocks/{id}/complete", timeBlockHandler.CompleteTimeBlock)
		r.Post("/time-blocks/{id}/reschedule", timeBlockHandler.RescheduleTimeBlock)
	})

	return r
}
