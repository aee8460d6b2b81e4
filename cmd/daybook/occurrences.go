package main

import (
	"github.com/spf13/cobra"

	"github.com/daybook/daybook/internal/domain"
)

var occurrencesCmd = &cobra.Command{
	Use:   "occurrences",
	Short: "List the dates a rule produces",
	Long: `List the occurrence dates of an RRULE expression anchored at --start,
up to --until. Nothing is written; use it to check a rule before creating it.
The list is capped at [recurrence] max_occurrences.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		expr, _ := cmd.Flags().GetString("rule")
		start, _ := cmd.Flags().GetString("start")
		until, _ := cmd.Flags().GetString("until")
		return runOccurrences(cmd, expr, start, until)
	},
}

func init() {
	rootCmd.AddCommand(occurrencesCmd)

	occurrencesCmd.Flags().String("rule", "", "RRULE expression, e.g. FREQ=WEEKLY;BYDAY=MO (required)")
	occurrencesCmd.Flags().String("start", "", "Anchor date (YYYY-MM-DD, required)")
	occurrencesCmd.Flags().String("until", "", "Last date to list (YYYY-MM-DD, default start + 30 days)")
}

func runOccurrences(cmd *cobra.Command, expr, startStr, untilStr string) error {
	if expr == "" {
		return domain.NewFieldValidationError("rule", "is required")
	}
	if startStr == "" {
		return domain.NewFieldValidationError("start", "is required")
	}
	start, err := parseDateFlag("start", startStr, domain.Date{})
	if err != nil {
		return err
	}
	until, err := parseDateFlag("until", untilStr, start.AddDays(30))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dates, err := newEvaluator(cfg).Enumerate(expr, start, until)
	if err != nil {
		return domain.NewFieldValidationError("rule", err.Error())
	}

	printOccurrences(cmd.OutOrStdout(), dates, jsonOutput)
	return nil
}
