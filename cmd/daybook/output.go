package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/daybook/daybook/internal/domain"
)

func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// printReconcile prints the instance ids materialized or found per date
func printReconcile(w io.Writer, from, to domain.Date, result map[domain.Date][]string, jsonOutput bool) {
	if jsonOutput {
		byDate := make(map[string][]string, len(result))
		for d, ids := range result {
			byDate[d.String()] = ids
		}
		printJSON(w, map[string]interface{}{
			"from":  from,
			"to":    to,
			"dates": byDate,
		})
		return
	}

	dates := make([]domain.Date, 0, len(result))
	for d := range result {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, domain.Date.Compare)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "DATE\tCOUNT\tINSTANCES\n")
	fmt.Fprintf(tw, "----\t-----\t---------\n")
	total := 0
	for _, d := range dates {
		ids := result[d]
		total += len(ids)
		fmt.Fprintf(tw, "%s\t%d\t%s\n", d, len(ids), truncate(strings.Join(ids, ","), 60))
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d instances from %s to %s\n", total, from, to)
}

// printOccurrences prints rule occurrence dates
func printOccurrences(w io.Writer, dates []domain.Date, jsonOutput bool) {
	if jsonOutput {
		if dates == nil {
			dates = []domain.Date{}
		}
		printJSON(w, dates)
		return
	}

	if len(dates) == 0 {
		fmt.Fprintln(w, "No occurrences")
		return
	}

	for _, d := range dates {
		fmt.Fprintf(w, "%s  %s\n", d, d.Weekday().String()[:3])
	}
}

// printMigrate prints the outcome of a migration run
func printMigrate(w io.Writer, applied, version int, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, map[string]int{"applied": applied, "version": version})
		return
	}

	if applied == 0 {
		fmt.Fprintf(w, "Schema is up to date (version %d)\n", version)
		return
	}
	fmt.Fprintf(w, "Applied %d migration(s), schema version %d\n", applied, version)
}

// printError prints an error message
func printError(w io.Writer, err error, jsonOutput bool) {
	var de *domain.DomainError
	isDomain := errors.As(err, &de)

	if jsonOutput {
		body := map[string]interface{}{"message": err.Error()}
		if isDomain {
			body["code"] = de.Code
			if len(de.Context) > 0 {
				body["context"] = de.Context
			}
		}
		printJSON(w, map[string]interface{}{"error": body})
		return
	}

	if isDomain {
		if details, ok := de.Context["details"].([]string); ok && len(details) > 0 {
			fmt.Fprintf(w, "Error: %s: %s\n", de.Message, strings.Join(details, "; "))
			return
		}
	}
	fmt.Fprintf(w, "Error: %s\n", err.Error())
}

// truncate shortens s to max runes, ending with "..." when cut
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
