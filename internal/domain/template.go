package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDayLayout is the format of template start and end times.
const TimeOfDayLayout = "15:04"

// ChecklistItem is one sub-item of a task.
type ChecklistItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// CloneChecklist returns a copy of items. A nil slice stays nil.
func CloneChecklist(items []ChecklistItem) []ChecklistItem {
	if items == nil {
		return nil
	}
	out := make([]ChecklistItem, len(items))
	copy(out, items)
	return out
}

// MergeChecklist reconciles the checklist of an existing instance with new
// content. Incoming items are matched to existing ones by ID, then by
// case-insensitive title; a matched item keeps its existing ID and Done flag.
// Unmatched incoming items get an ID from newID and start undone. Existing
// items absent from incoming are dropped unless they are done.
func MergeChecklist(existing, incoming []ChecklistItem, newID func() string) []ChecklistItem {
	used := make([]bool, len(existing))
	byID := make(map[string]int, len(existing))
	byTitle := make(map[string]int, len(existing))
	for i, item := range existing {
		if item.ID != "" {
			byID[item.ID] = i
		}
		key := checklistKey(item.Title)
		if _, ok := byTitle[key]; !ok {
			byTitle[key] = i
		}
	}

	merged := make([]ChecklistItem, 0, len(incoming))
	for _, in := range incoming {
		idx, ok := -1, false
		if in.ID != "" {
			idx, ok = byID[in.ID]
		}
		if !ok {
			idx, ok = byTitle[checklistKey(in.Title)]
		}
		if ok && !used[idx] {
			used[idx] = true
			merged = append(merged, ChecklistItem{
				ID:    existing[idx].ID,
				Title: in.Title,
				Done:  existing[idx].Done,
			})
			continue
		}
		merged = append(merged, ChecklistItem{ID: newID(), Title: in.Title})
	}

	for i, item := range existing {
		if !used[i] && item.Done {
			merged = append(merged, item)
		}
	}
	return merged
}

func checklistKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Template holds the fields copied into every instance a recurrence
// materializes.
type Template struct {
	ID              string          `json:"id"`
	Kind            InstanceKind    `json:"kind"`
	Title           string          `json:"title"`
	Description     *string         `json:"description,omitempty"`
	AreaID          *string         `json:"area_id,omitempty"`
	Priority        int             `json:"priority"`
	EstimateMinutes *int            `json:"estimate_minutes,omitempty"`
	StartTime       *string         `json:"start_time,omitempty"`
	EndTime         *string         `json:"end_time,omitempty"`
	Checklist       []ChecklistItem `json:"checklist"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	c := *t
	c.Checklist = CloneChecklist(t.Checklist)
	return &c
}

// Validate returns the list of problems with the template, if any.
func (t *Template) Validate() []string {
	var errs []string
	if strings.TrimSpace(t.Title) == "" {
		errs = append(errs, "title is required")
	}
	if !t.Kind.IsValid() {
		errs = append(errs, "kind must be 'task' or 'time_block'")
	}
	if !ValidPriority(t.Priority) {
		errs = append(errs, "priority must be between 0 and 3")
	}
	if t.EstimateMinutes != nil && *t.EstimateMinutes < 0 {
		errs = append(errs, "estimate_minutes cannot be negative")
	}
	if t.Kind == KindTimeBlock {
		if t.StartTime == nil || t.EndTime == nil {
			errs = append(errs, "time_block templates require start_time and end_time")
		} else {
			if _, err := ParseTimeOfDay(*t.StartTime); err != nil {
				errs = append(errs, "start_time: "+err.Error())
			}
			if _, err := ParseTimeOfDay(*t.EndTime); err != nil {
				errs = append(errs, "end_time: "+err.Error())
			}
		}
	}
	return errs
}

// Span returns the start and end instants of a block on date. End times at or
// before the start roll over to the next day.
func (t *Template) Span(date Date, loc *time.Location) (time.Time, time.Time, error) {
	if t.StartTime == nil || t.EndTime == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("template %s has no start/end time", t.ID)
	}
	start, err := ParseTimeOfDay(*t.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseTimeOfDay(*t.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	startAt := atTimeOfDay(date, start, loc)
	endAt := atTimeOfDay(date, end, loc)
	if !endAt.After(startAt) {
		endAt = endAt.AddDate(0, 0, 1)
	}
	return startAt, endAt, nil
}

func atTimeOfDay(date Date, offset time.Duration, loc *time.Location) time.Time {
	hour := int(offset / time.Hour)
	minute := int(offset % time.Hour / time.Minute)
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc)
}

// ParseTimeOfDay parses an HH:MM string into an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse(TimeOfDayLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// RenderTemplateText substitutes occurrence variables in s.
//
//	{{date}} 2025-01-05   {{weekday}} Sunday   {{day}} 5
//	{{month}} January     {{year}} 2025
func RenderTemplateText(s string, date Date) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	r := strings.NewReplacer(
		"{{date}}", date.String(),
		"{{weekday}}", date.Weekday().String(),
		"{{day}}", strconv.Itoa(date.Day()),
		"{{month}}", date.Month().String(),
		"{{year}}", strconv.Itoa(date.Year()),
	)
	return r.Replace(s)
}
