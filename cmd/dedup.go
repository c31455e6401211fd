package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/dedup"
	"github.com/sector-pulse/pulse-cli/pkg/anthropic"
)

var (
	dedupEndDate string
	dedupDays    int
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Run duplicate detection passes over stored events",
}

// -- dedup lexical --

var dedupLexicalCmd = &cobra.Command{
	Use:   "lexical",
	Short: "Run the retroactive lexical dedup sweep",
	Long:  "Re-partitions each trailing day by title similarity, flags losers, and recomputes the cached daily sentiment for every swept date.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		end := dedupEndDate
		if end == "" {
			end = time.Now().UTC().Format("2006-01-02")
		}
		days := dedupDays
		if days <= 0 {
			days = cfg.Dedup.RetroactiveDays
		}

		lexical := dedup.NewLexical(st, dedup.Similarity{
			Threshold:              cfg.Dedup.SimilarityThreshold,
			SharedCompanyThreshold: cfg.Dedup.SharedCompanyThreshold,
		})

		res, err := lexical.Retroactive(ctx, end, days)
		if err != nil {
			return err
		}

		zap.L().Info("lexical sweep complete",
			zap.String("end", end),
			zap.Int("days", res.Days),
			zap.Int("duplicates", res.Duplicates),
			zap.Int("recomputed", res.Recomputed),
		)
		return nil
	},
}

// -- dedup semantic --

var dedupSemanticCmd = &cobra.Command{
	Use:   "semantic",
	Short: "Run the model-backed semantic dedup pass",
	Long:  "Sends each day's unscored, non-duplicate headlines to Claude for clustering. Days the model cannot cluster are skipped, never failed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Anthropic.Key == "" {
			return eris.New("anthropic API key is required (PULSE_ANTHROPIC_KEY)")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		days := dedupDays
		if days <= 0 {
			days = cfg.Dedup.RetroactiveDays
		}
		since := time.Now().UTC().AddDate(0, 0, -days)

		clusterer := dedup.NewClaudeClusterer(
			anthropic.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model,
			int64(cfg.Anthropic.MaxTokens),
			cfg.Anthropic.RequestsPerMin,
		)

		res, err := dedup.NewSemantic(st, clusterer).Run(ctx, since)
		if err != nil {
			return err
		}

		zap.L().Info("semantic pass complete",
			zap.Int("days_checked", res.DaysChecked),
			zap.Int("days_skipped", res.DaysSkipped),
			zap.Int("marked", res.Marked),
		)
		return nil
	},
}

func init() {
	dedupCmd.PersistentFlags().StringVar(&dedupEndDate, "date", "", "end date YYYY-MM-DD (default today)")
	dedupCmd.PersistentFlags().IntVar(&dedupDays, "days", 0, "trailing days to sweep (default from config)")

	dedupCmd.AddCommand(dedupLexicalCmd)
	dedupCmd.AddCommand(dedupSemanticCmd)
	rootCmd.AddCommand(dedupCmd)
}
