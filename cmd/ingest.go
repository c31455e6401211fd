package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/dedup"
	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/sentiment"
)

var ingestFilePath string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest collected events from a JSONL feed",
	Long:  "Reads one event per line, skips exact (source, source_id) duplicates, then runs the lexical dedup pass and refreshes daily sentiment for every affected date.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		events, err := readEventFeed(ingestFilePath)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			zap.L().Info("no events in feed", zap.String("file", ingestFilePath))
			return nil
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.SaveEvents(ctx, events)
		if err != nil {
			return eris.Wrap(err, "ingest: save events")
		}

		lexical := dedup.NewLexical(st, dedup.Similarity{
			Threshold:              cfg.Dedup.SimilarityThreshold,
			SharedCompanyThreshold: cfg.Dedup.SharedCompanyThreshold,
		})
		agg := sentiment.NewAggregator(st)

		marked := 0
		for _, day := range affectedDays(events) {
			n, err := lexical.MarkDay(ctx, day)
			if err != nil {
				return err
			}
			marked += n
			if _, err := agg.Recompute(ctx, day); err != nil {
				return err
			}
		}

		zap.L().Info("ingest complete",
			zap.String("file", ingestFilePath),
			zap.Int("saved", stats.Saved),
			zap.Int("exact_duplicates", stats.Duplicates),
			zap.Int("lexical_duplicates", marked),
		)
		return nil
	},
}

// readEventFeed parses a JSONL event feed. "-" reads stdin.
func readEventFeed(path string) ([]*model.Event, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: open feed")
		}
		defer f.Close() //nolint:errcheck
		r = f
	}

	var events []*model.Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev model.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, eris.Wrapf(err, "ingest: parse line %d", line)
		}
		if ev.Source == "" || ev.SourceID == "" || ev.Title == "" {
			return nil, eris.Errorf("ingest: line %d: source, source_id and title are required", line)
		}
		// Collectors stamp collected_at; a feed row without one is
		// collected now, not on the zero date.
		if ev.CollectedAt.IsZero() {
			ev.CollectedAt = time.Now().UTC()
		}
		events = append(events, &ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "ingest: read feed")
	}
	return events, nil
}

// affectedDays returns the sorted distinct dates the batch touches.
func affectedDays(events []*model.Event) []string {
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		seen[ev.Day()] = struct{}{}
	}
	days := make([]string, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFilePath, "file", "-", "path to JSONL event feed (default stdin)")
	rootCmd.AddCommand(ingestCmd)
}
