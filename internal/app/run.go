package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mover-report/internal/alerting"
	"mover-report/internal/market"
	"mover-report/internal/report"
	"mover-report/internal/storage"
)

// runOnce executes the full report pipeline a single time: load the
// universe, evaluate every ticker, write the artifacts, persist the run,
// and alert on extreme movers.
func (a *App) runOnce(ctx context.Context, kind market.ReportKind, loc *time.Location, store *storage.Store, notifier alerting.Notifier) error {
	records, err := a.newUniverseLoader().Load(ctx)
	if err != nil {
		return err
	}

	svc, err := a.newService(a.newNewsSource(ctx))
	if err != nil {
		return err
	}

	rep, err := svc.BuildReport(ctx, kind, time.Now().In(loc), records)
	if err != nil {
		return err
	}

	writer := report.Writer{
		Dir:          a.Config.Output.Dir,
		MarkdownFile: a.Config.Output.MarkdownFile,
		JSONFile:     a.Config.Output.JSONFile,
	}
	mdPath, jsonPath, err := writer.Write(rep)
	if err != nil {
		return err
	}
	a.Logger.Info().Str("markdown", mdPath).Str("json", jsonPath).Msg("report written")

	if store != nil {
		if err := a.persistRun(ctx, store, rep); err != nil {
			a.Logger.Error().Err(err).Msg("persisting run failed")
		}
	}

	if notifier != nil {
		a.alertExtremeMovers(ctx, notifier, rep)
	}
	return nil
}

func (a *App) persistRun(ctx context.Context, store *storage.Store, rep *report.Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal run payload: %w", err)
	}

	run, err := store.InsertRun(ctx, storage.ReportRun{
		Kind:            string(rep.Kind),
		GeneratedAt:     rep.GeneratedAt,
		Coverage:        rep.Coverage,
		TickersTotal:    rep.TickersTotal,
		TickersReported: rep.TickersReported,
		Missing:         rep.Missing,
		Payload:         payload,
	})
	if err != nil {
		return err
	}

	movers := make([]storage.MoverRow, 0, len(rep.Results))
	for _, res := range rep.Results {
		row := storage.MoverRow{
			Symbol:     res.Symbol,
			IsPosition: res.IsPosition,
			Qualifies:  res.Qualifies,
			Override:   res.Override,
		}
		if w, ok := headlineWindow(res); ok {
			row.WindowLabel = string(w.Label)
			row.PctChange = w.HeadlinePct()
			if w.Reason != "" {
				reason := w.Reason
				row.Reason = &reason
			}
		}
		movers = append(movers, row)
	}
	if err := store.InsertMovers(ctx, run.ID, movers); err != nil {
		return err
	}

	a.Logger.Debug().Int64("run_id", run.ID).Int("movers", len(movers)).Msg("run persisted")
	return nil
}

// headlineWindow picks the first window carrying the result's headline
// metric.
func headlineWindow(res report.TickerResult) (report.WindowResult, bool) {
	for _, w := range res.Windows {
		if w.HeadlinePct() != nil {
			return w, true
		}
	}
	if len(res.Windows) > 0 {
		return res.Windows[0], true
	}
	return report.WindowResult{}, false
}

func (a *App) alertExtremeMovers(ctx context.Context, notifier alerting.Notifier, rep *report.Report) {
	threshold := a.thresholdOptions().OverrideThresholdPct
	for _, res := range rep.Results {
		if !res.Override {
			continue
		}
		w, ok := headlineWindow(res)
		if !ok || w.HeadlinePct() == nil {
			continue
		}
		note := alerting.Notification{
			Symbol:       res.Symbol,
			ReportKind:   string(rep.Kind),
			GeneratedAt:  rep.GeneratedAt,
			WindowLabel:  string(w.Label),
			PctChange:    *w.HeadlinePct(),
			ThresholdPct: threshold,
			Reason:       w.Reason,
		}
		if err := notifier.Notify(ctx, note); err != nil {
			a.Logger.Error().Err(err).Str("symbol", res.Symbol).Msg("alert delivery failed")
		}
	}
}
