package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"mover-report/internal/storage"
)

// Export renders a symbol's mover history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Symbol == "" {
		return errors.New("--symbol is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	movers, err := store.ListMoverHistory(ctx, opts.Symbol, from, to)
	if err != nil {
		return err
	}
	if len(movers) == 0 {
		a.Logger.Info().Str("symbol", opts.Symbol).Msg("no mover history for export window")
		return nil
	}

	downsampled := downsampleMovers(movers, opts.MaxPoints)
	a.Logger.Info().Int("total", len(movers)).Int("exported", len(downsampled)).Msg("exporting mover history")

	if opts.CSVPath != "" {
		if err := writeMoversCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeMoversPNG(opts.PNGPath, opts.Symbol, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleMovers(movers []storage.MoverRow, max int) []storage.MoverRow {
	if max <= 0 || len(movers) <= max {
		return movers
	}

	result := make([]storage.MoverRow, 0, max)
	step := float64(len(movers)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(movers) {
			idx = len(movers) - 1
		}
		result = append(result, movers[idx])
	}
	return result
}

func writeMoversCSV(path string, movers []storage.MoverRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"recorded_at", "symbol", "window", "pct_change", "qualifies", "override", "reason"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, m := range movers {
		pct := ""
		if m.PctChange != nil {
			pct = m.PctChange.String()
		}
		reason := ""
		if m.Reason != nil {
			reason = *m.Reason
		}
		record := []string{
			m.CreatedAt.Format(time.RFC3339),
			m.Symbol,
			m.WindowLabel,
			pct,
			boolString(m.Qualifies),
			boolString(m.Override),
			reason,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeMoversPNG(path, symbol string, movers []storage.MoverRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(movers))
	pct := make([]float64, 0, len(movers))
	for _, m := range movers {
		if m.PctChange == nil {
			continue
		}
		x = append(x, m.CreatedAt)
		pct = append(pct, m.PctChange.InexactFloat64())
	}
	if len(x) < 2 {
		return errors.New("not enough data points to chart")
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Change (%)",
			ValueFormatter: pctFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    symbol,
				XValues: x,
				YValues: pct,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
