// Package recurrence materializes recurrence rules into dated tasks and time
// blocks and keeps the materialized instances in line with rule edits.
//
// The link ledger is the source of truth for "this occurrence has been
// handled". The Reconciler only ever creates instances for occurrences
// without a link and never overrides what the user did to a linked instance.
// The Propagator retracts planned instances that an edit pushed out of the
// rule, never completed ones.
package recurrence

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/daybook/daybook/internal/clock"
	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/events"
	"github.com/daybook/daybook/internal/telemetry"
	"github.com/daybook/daybook/internal/txn"
	"github.com/daybook/daybook/pkg/idgen"
)

// RuleEvaluator answers questions about rule expressions. rule.Evaluator is
// the production implementation.
type RuleEvaluator interface {
	Validate(expr string) error
	Until(expr string) (domain.Date, bool, error)
	OccursOn(expr string, anchor, target domain.Date) (bool, error)
}

// Deps are the collaborators shared by the Reconciler and the Propagator.
type Deps struct {
	Coordinator *txn.Coordinator
	Rules       RuleEvaluator
	Clock       clock.Clock
	IDs         idgen.Generator
	Outbox      events.Outbox
	Logger      *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.IDs == nil {
		d.IDs = idgen.UUID{}
	}
	if d.Outbox == nil {
		d.Outbox = events.Discard{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

type instruments struct {
	tracer       trace.Tracer
	materialized metric.Int64Counter
	retracted    metric.Int64Counter
	orphaned     metric.Int64Counter
	failures     metric.Int64Counter
}

func newInstruments() instruments {
	meter := telemetry.Meter("github.com/daybook/daybook/internal/recurrence")
	in := instruments{tracer: telemetry.Tracer("github.com/daybook/daybook/internal/recurrence")}
	// Errors only report invalid names; the instruments are usable regardless.
	in.materialized, _ = meter.Int64Counter("daybook.recurrence.materialized",
		metric.WithDescription("Instances created by the reconciler"))
	in.retracted, _ = meter.Int64Counter("daybook.recurrence.retracted",
		metric.WithDescription("Instances retracted after rule edits"))
	in.orphaned, _ = meter.Int64Counter("daybook.recurrence.orphaned",
		metric.WithDescription("Linked instances found detached by the user"))
	in.failures, _ = meter.Int64Counter("daybook.recurrence.failures",
		metric.WithDescription("Per-rule reconciliation failures"))
	return in
}
