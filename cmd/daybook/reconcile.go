package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/daybook/daybook/internal/domain"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Materialize recurring instances for a date range",
	Long: `Materialize the occurrences of every active recurrence for each date
between --from and --to (inclusive, at most 366 days). Safe to re-run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		return runReconcile(cmd, from, to)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().String("from", "", "First date (YYYY-MM-DD, default today)")
	reconcileCmd.Flags().String("to", "", "Last date (YYYY-MM-DD, default --from)")
}

func runReconcile(cmd *cobra.Command, fromStr, toStr string) error {
	from, err := parseDateFlag("from", fromStr, domain.DateOf(time.Now()))
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", toStr, from)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	result, err := a.services.Agenda.ReconcileRange(ctx, from, to)
	if err != nil {
		return err
	}

	printReconcile(cmd.OutOrStdout(), from, to, result, jsonOutput)
	return nil
}

// parseDateFlag parses a YYYY-MM-DD flag value, returning def when empty.
func parseDateFlag(name, value string, def domain.Date) (domain.Date, error) {
	if value == "" {
		return def, nil
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		return domain.Date{}, domain.NewFieldValidationError(name, "must be a date in "+domain.DateLayout+" format")
	}
	return d, nil
}
