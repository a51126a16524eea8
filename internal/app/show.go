package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent report runs.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show runs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	runs, err := store.ListRecentRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no runs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tGenerated (UTC)\tKind\tCoverage\tTotal\tReported\tMissing")

	for _, run := range runs {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			run.ID,
			run.GeneratedAt.UTC().Format(time.RFC3339),
			run.Kind,
			sanitizeInline(run.Coverage),
			run.TickersTotal,
			run.TickersReported,
			strings.Join(run.Missing, ","),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
