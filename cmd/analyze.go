package main

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/sentiment"
)

var analyzeFilePath string

// analysisResult is one scorer verdict for a stored event.
type analysisResult struct {
	ID                int64           `json:"id"`
	SignificanceScore float64         `json:"significance_score"`
	Sentiment         model.Sentiment `json:"sentiment"`
	Analysis          string          `json:"analysis,omitempty"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Attach external scorer results to stored events",
	Long:  "Reads significance/sentiment verdicts from the external scorer (JSONL, one per event id), applies them, and recomputes the cached daily sentiment for every affected date.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		results, err := readAnalysisFeed(analyzeFilePath)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			zap.L().Info("no analysis results in feed", zap.String("file", analyzeFilePath))
			return nil
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		updated := map[int64]struct{}{}
		for _, r := range results {
			if err := st.UpdateEventAnalysis(ctx, r.ID, r.SignificanceScore, r.Sentiment, r.Analysis); err != nil {
				return err
			}
			updated[r.ID] = struct{}{}
		}

		// Scored events change the sentiment aggregates of their dates.
		since := time.Now().UTC().AddDate(0, 0, -cfg.Dedup.RetroactiveDays)
		events, err := st.ListEventsSince(ctx, since)
		if err != nil {
			return err
		}
		days := map[string]struct{}{}
		for i := range events {
			if _, ok := updated[events[i].ID]; ok {
				days[events[i].Day()] = struct{}{}
			}
		}

		agg := sentiment.NewAggregator(st)
		for day := range days {
			if _, err := agg.Recompute(ctx, day); err != nil {
				return err
			}
		}

		zap.L().Info("analysis applied",
			zap.String("file", analyzeFilePath),
			zap.Int("events", len(results)),
			zap.Int("days_recomputed", len(days)),
		)
		return nil
	},
}

// readAnalysisFeed parses a JSONL scorer feed. "-" reads stdin.
func readAnalysisFeed(path string) ([]analysisResult, error) {
	f := os.Stdin
	if path != "-" {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "analyze: open feed")
		}
		defer f.Close() //nolint:errcheck
	}

	var results []analysisResult
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var r analysisResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, eris.Wrapf(err, "analyze: parse line %d", line)
		}
		if r.ID <= 0 {
			return nil, eris.Errorf("analyze: line %d: event id is required", line)
		}
		switch r.Sentiment {
		case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral, model.SentimentMixed:
		default:
			return nil, eris.Errorf("analyze: line %d: unknown sentiment %q", line, r.Sentiment)
		}
		results = append(results, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "analyze: read feed")
	}
	return results, nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFilePath, "file", "-", "path to JSONL scorer feed (default stdin)")
	rootCmd.AddCommand(analyzeCmd)
}
