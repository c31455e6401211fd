package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/outcome"
)

var (
	correlateDate string
	correlateDays int
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Grade a date's prediction against realized outcomes",
	Long:  "Joins the date's prediction with its market outcomes, updates per-symbol accuracy and the rolling sentiment/price correlation, then rolls the date up into the daily correlation summary.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		date := correlateDate
		if date == "" {
			date = time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
		}
		if _, err := model.ParseDay(date); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		calc := outcome.NewCalculator(st, cfg.Outcome.CorrelationDays, cfg.Outcome.PrimarySymbol, nil)

		updated, err := calc.UpdateDate(ctx, date)
		if err != nil {
			return err
		}
		dc, err := calc.RollUp(ctx, date)
		if err != nil {
			return err
		}

		if dc == nil {
			zap.L().Info("correlation skipped",
				zap.String("date", date),
				zap.Int("symbols_graded", updated),
			)
			return nil
		}

		verdict := "ambiguous"
		if dc.Correct != nil {
			verdict = "wrong"
			if *dc.Correct {
				verdict = "correct"
			}
		}
		zap.L().Info("correlation updated",
			zap.String("date", date),
			zap.Int("symbols_graded", updated),
			zap.String("dominant_sentiment", string(dc.DominantSentiment)),
			zap.String("market_outcome", string(dc.MarketOutcome)),
			zap.String("verdict", verdict),
		)
		return nil
	},
}

// -- correlate summary --

var correlateSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show prediction accuracy over the trailing window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		days := correlateDays
		if days <= 0 {
			days = cfg.Outcome.CorrelationDays
		}

		sum, err := outcome.NewCalculator(st, days, cfg.Outcome.PrimarySymbol, nil).Summary(ctx, days)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Window:\t%d days\n", days)
		_, _ = fmt.Fprintf(w, "Graded days:\t%d\n", sum.Total)
		_, _ = fmt.Fprintf(w, "Correct:\t%d\n", sum.Correct)
		_, _ = fmt.Fprintf(w, "Wrong:\t%d\n", sum.Wrong)
		_, _ = fmt.Fprintf(w, "Ambiguous:\t%d\n", sum.Ambiguous)
		_, _ = fmt.Fprintf(w, "Accuracy:\t%.1f%%\n", sum.Accuracy*100)
		_ = w.Flush()
		return nil
	},
}

func init() {
	correlateCmd.Flags().StringVar(&correlateDate, "date", "", "date to grade YYYY-MM-DD (default yesterday)")
	correlateSummaryCmd.Flags().IntVar(&correlateDays, "days", 0, "trailing window in days (default from config)")

	correlateCmd.AddCommand(correlateSummaryCmd)
	rootCmd.AddCommand(correlateCmd)
}
