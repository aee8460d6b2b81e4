package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

func TestMergeChecklist_PreservesDoneFlags(t *testing.T) {
	existing := []ChecklistItem{
		{ID: "a", Title: "Stretch", Done: true},
		{ID: "b", Title: "Run 5k", Done: false},
		{ID: "c", Title: "Old item", Done: false},
		{ID: "d", Title: "Finished old item", Done: true},
	}
	incoming := []ChecklistItem{
		{Title: "stretch "},
		{ID: "b", Title: "Run 10k"},
		{Title: "Cool down"},
	}

	got := MergeChecklist(existing, incoming, sequentialIDs())

	assert.Equal(t, []ChecklistItem{
		{ID: "a", Title: "stretch ", Done: true},
		{ID: "b", Title: "Run 10k", Done: false},
		{ID: "new-1", Title: "Cool down", Done: false},
		{ID: "d", Title: "Finished old item", Done: true},
	}, got)
}

func TestMergeChecklist_IncomingDoneIsIgnored(t *testing.T) {
	got := MergeChecklist(nil, []ChecklistItem{{Title: "Pack", Done: true}}, sequentialIDs())
	require.Len(t, got, 1)
	assert.False(t, got[0].Done, "new items start undone")
}

func TestRenderTemplateText(t *testing.T) {
	date := MustParseDate("2025-01-05")
	got := RenderTemplateText("Review {{weekday}} {{date}} ({{day}} {{month}} {{year}})", date)
	assert.Equal(t, "Review Sunday 2025-01-05 (5 January 2025)", got)
	assert.Equal(t, "plain", RenderTemplateText("plain", date))
}

func TestTemplate_Validate(t *testing.T) {
	start, end := "09:00", "25:00"
	tmpl := &Template{Kind: KindTimeBlock, Title: "Focus", StartTime: &start, EndTime: &end}
	assert.Len(t, tmpl.Validate(), 1)

	tmpl = &Template{Kind: "event", Priority: 9}
	assert.Len(t, tmpl.Validate(), 3)
}

func TestTemplate_SpanRollsOverMidnight(t *testing.T) {
	start, end := "22:30", "01:00"
	tmpl := &Template{Kind: KindTimeBlock, Title: "Night shift", StartTime: &start, EndTime: &end}

	startAt, endAt, err := tmpl.Span(MustParseDate("2025-01-05"), time.UTC)
	require.NoError(t, err)
	assert.True(t, startAt.Equal(time.Date(2025, 1, 5, 22, 30, 0, 0, time.UTC)), "start = %v", startAt)
	assert.True(t, endAt.Equal(time.Date(2025, 1, 6, 1, 0, 0, 0, time.UTC)), "end = %v", endAt)
}

func TestRecurrence_EffectiveOn(t *testing.T) {
	end := MustParseDate("2025-01-10")
	rec := &Recurrence{StartDate: MustParseDate("2025-01-01"), EndDate: &end, Active: true}

	tests := []struct {
		date string
		want bool
	}{
		{"2024-12-31", false},
		{"2025-01-01", true},
		{"2025-01-10", true},
		{"2025-01-11", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rec.EffectiveOn(MustParseDate(tt.date)), tt.date)
	}

	rec.Active = false
	assert.False(t, rec.EffectiveOn(MustParseDate("2025-01-05")), "inactive recurrence is never effective")
}
