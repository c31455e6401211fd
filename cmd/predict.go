package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/predict"
	"github.com/sector-pulse/pulse-cli/internal/sentiment"
	"github.com/sector-pulse/pulse-cli/internal/workflow"
)

const predictionWorkflow = "daily_prediction"

var (
	predictDate    string
	predictSummary string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Derive and log the directional prediction for a date",
	Long:  "Aggregates the date's non-duplicate sentiment into a directional call and writes it through the lock-aware prediction log. Every attempt is audited, including ones the lock rejects.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		date := predictDate
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}
		if _, err := model.ParseDay(date); err != nil {
			return err
		}

		calendar, err := predict.NewMarketCalendar(cfg.Predict.MarketOpenUTC, cfg.Predict.MarketCloseUTC)
		if err != nil {
			return err
		}
		rule := predict.Rule{
			NetThreshold:           cfg.Predict.NetThreshold,
			HighConfidenceEvents:   cfg.Predict.HighConfidenceEvents,
			MediumConfidenceEvents: cfg.Predict.MediumConfidenceEvents,
		}

		tracker := workflow.NewTracker(st, cfg.Predict.ExpectedDailyRuns, nil)
		run, err := tracker.Start(ctx, predictionWorkflow)
		if err != nil {
			return err
		}

		breakdown, err := sentiment.NewAggregator(st).ForDay(ctx, date)
		if err != nil {
			completeRun(ctx, tracker, run, model.RunStatusFailed, err.Error())
			return err
		}

		logger := predict.NewLogger(st, nil, calendar, rule)
		res, err := logger.Save(ctx, date, breakdown, predictSummary, run.ID)
		if err != nil {
			completeRun(ctx, tracker, run, model.RunStatusFailed, err.Error())
			return err
		}

		notes := fmt.Sprintf("%s: %s/%s", res.Status, res.Prediction.Prediction, res.Prediction.Confidence)
		completeRun(ctx, tracker, run, model.RunStatusCompleted, notes)

		zap.L().Info("prediction logged",
			zap.String("date", date),
			zap.String("status", string(res.Status)),
			zap.String("prediction", string(res.Prediction.Prediction)),
			zap.String("confidence", string(res.Prediction.Confidence)),
			zap.Float64("net_sentiment", breakdown.Net()),
			zap.Int("events", breakdown.Total),
			zap.Bool("locked", res.Prediction.IsLocked),
		)
		return nil
	},
}

func completeRun(ctx context.Context, tracker *workflow.Tracker, run *model.WorkflowRun, status model.RunStatus, notes string) {
	if err := tracker.Complete(ctx, run, status, notes); err != nil {
		zap.L().Warn("failed to close workflow run",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
}

func init() {
	predictCmd.Flags().StringVar(&predictDate, "date", "", "prediction date YYYY-MM-DD (default today)")
	predictCmd.Flags().StringVar(&predictSummary, "summary", "", "optional top-events summary to store with the prediction")
	rootCmd.AddCommand(predictCmd)
}
