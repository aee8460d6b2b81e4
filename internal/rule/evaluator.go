// Package rule evaluates RRULE expressions against calendar dates.
//
// Everything that knows RRULE syntax lives here; the rest of Daybook only
// asks whether a date is an occurrence or for a bounded list of occurrences.
// Expressions may carry an "RRULE:" prefix. Any DTSTART inside the expression
// is ignored in favour of the recurrence's anchor date.
package rule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/daybook/daybook/internal/domain"
)

const (
	// DefaultMaxOccurrences caps Enumerate.
	DefaultMaxOccurrences = 1000

	// DefaultMaxIterations caps the candidates OccursOn will generate
	// before giving up on reaching the target date.
	DefaultMaxIterations = 100000
)

var (
	// ErrInvalidRule is returned for expressions that cannot be parsed or
	// that use an unsupported frequency.
	ErrInvalidRule = errors.New("invalid recurrence rule")

	// ErrLimitExceeded is returned when OccursOn hits MaxIterations without
	// passing the target date.
	ErrLimitExceeded = errors.New("recurrence enumeration limit exceeded")
)

// Options bounds the work a single evaluation may do.
type Options struct {
	MaxOccurrences int
	MaxIterations  int
}

// Evaluator evaluates rule expressions. It is stateless and safe for
// concurrent use.
type Evaluator struct {
	maxOccurrences int
	maxIterations  int
}

// NewEvaluator creates an Evaluator; zero options take the defaults.
func NewEvaluator(opts Options) *Evaluator {
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = DefaultMaxOccurrences
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Evaluator{
		maxOccurrences: opts.MaxOccurrences,
		maxIterations:  opts.MaxIterations,
	}
}

// Validate checks that expr is a supported rule.
func (e *Evaluator) Validate(expr string) error {
	opt, err := parseOptions(expr)
	if err != nil {
		return err
	}
	opt.Dtstart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := rrule.NewRRule(*opt); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// Until returns the terminal date encoded in expr by UNTIL, if any.
func (e *Evaluator) Until(expr string) (domain.Date, bool, error) {
	opt, err := parseOptions(expr)
	if err != nil {
		return domain.Date{}, false, err
	}
	if opt.Until.IsZero() {
		return domain.Date{}, false, nil
	}
	return domain.DateOf(opt.Until.UTC()), true, nil
}

// OccursOn reports whether target is an occurrence of expr anchored at
// anchor. It stops at the first generated date past target.
func (e *Evaluator) OccursOn(expr string, anchor, target domain.Date) (bool, error) {
	if target.Before(anchor) {
		return false, nil
	}
	r, until, err := build(expr, anchor)
	if err != nil {
		return false, err
	}
	if until != nil && target.After(*until) {
		return false, nil
	}

	next := r.Iterator()
	for i := 0; i < e.maxIterations; i++ {
		t, ok := next()
		if !ok {
			return false, nil
		}
		switch d := domain.DateOf(t); d.Compare(target) {
		case 0:
			return true, nil
		case 1:
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: no decision for %s after %d candidates", ErrLimitExceeded, target, e.maxIterations)
}

// Enumerate lists the distinct occurrence dates of expr from anchor up to
// and including upTo, capped at MaxOccurrences dates.
func (e *Evaluator) Enumerate(expr string, anchor, upTo domain.Date) ([]domain.Date, error) {
	if upTo.Before(anchor) {
		return nil, nil
	}
	r, _, err := build(expr, anchor)
	if err != nil {
		return nil, err
	}

	var dates []domain.Date
	next := r.Iterator()
	for i := 0; i < e.maxIterations && len(dates) < e.maxOccurrences; i++ {
		t, ok := next()
		if !ok {
			break
		}
		d := domain.DateOf(t)
		if d.After(upTo) {
			break
		}
		if n := len(dates); n > 0 && dates[n-1] == d {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func build(expr string, anchor domain.Date) (*rrule.RRule, *domain.Date, error) {
	opt, err := parseOptions(expr)
	if err != nil {
		return nil, nil, err
	}
	// Occurrences are dates: generate them at midnight UTC.
	opt.Dtstart = anchor.Time()
	var until *domain.Date
	if !opt.Until.IsZero() {
		d := domain.DateOf(opt.Until.UTC())
		until = &d
		opt.Until = endOfDay(opt.Until.UTC())
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return r, until, nil
}

func parseOptions(expr string) (*rrule.ROption, error) {
	s := strings.TrimSpace(expr)
	if len(s) >= 6 && strings.EqualFold(s[:6], "RRULE:") {
		s = s[6:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidRule)
	}
	if !strings.Contains(strings.ToUpper(s), "FREQ=") {
		return nil, fmt.Errorf("%w: FREQ is required", ErrInvalidRule)
	}

	opt, err := rrule.StrToROption(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	switch opt.Freq {
	case rrule.HOURLY, rrule.MINUTELY, rrule.SECONDLY:
		return nil, fmt.Errorf("%w: sub-daily frequencies are not supported", ErrInvalidRule)
	}
	if opt.Interval < 0 || opt.Count < 0 {
		return nil, fmt.Errorf("%w: INTERVAL and COUNT must be positive", ErrInvalidRule)
	}
	return opt, nil
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}
