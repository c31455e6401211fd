package main

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/outcome"
)

var (
	outcomesDate    string
	outcomesChanges []string
	outcomesFile    string
)

var outcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Record realized market outcomes for a date",
	Long:  "Accepts per-symbol percent changes, classifies direction and magnitude, and stores them. Symbols without a usable close are skipped individually, never the whole batch.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		date := outcomesDate
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}
		if _, err := model.ParseDay(date); err != nil {
			return err
		}

		changes, err := loadMarketChanges(date)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return eris.New("no market changes given; use --change or --file")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recorder := outcome.NewRecorder(st, outcome.Thresholds{
			Flat:     cfg.Outcome.FlatThreshold,
			Strong:   cfg.Outcome.StrongThreshold,
			Moderate: cfg.Outcome.ModerateThreshold,
		}, nil)

		res, err := recorder.Record(ctx, changes)
		if err != nil {
			return err
		}

		zap.L().Info("outcomes recorded",
			zap.String("date", date),
			zap.Int("recorded", res.Recorded),
			zap.Int("skipped", res.Skipped),
		)
		return nil
	},
}

// loadMarketChanges merges --file and --change inputs for the date.
func loadMarketChanges(date string) ([]model.MarketChange, error) {
	var changes []model.MarketChange

	if outcomesFile != "" {
		raw, err := os.ReadFile(outcomesFile)
		if err != nil {
			return nil, eris.Wrap(err, "outcomes: read file")
		}
		if err := json.Unmarshal(raw, &changes); err != nil {
			return nil, eris.Wrap(err, "outcomes: parse file")
		}
		for i := range changes {
			if changes[i].Date == "" {
				changes[i].Date = date
			}
		}
	}

	for _, spec := range outcomesChanges {
		mc, err := parseChangeSpec(date, spec)
		if err != nil {
			return nil, err
		}
		changes = append(changes, mc)
	}
	return changes, nil
}

// parseChangeSpec parses "SYMBOL=pct". An empty value after the equals
// sign records the symbol with no usable change.
func parseChangeSpec(date, spec string) (model.MarketChange, error) {
	symbol, value, ok := strings.Cut(spec, "=")
	if !ok || symbol == "" {
		return model.MarketChange{}, eris.Errorf("outcomes: bad change spec %q, want SYMBOL=pct", spec)
	}
	mc := model.MarketChange{Date: date, Symbol: symbol}
	if value == "" {
		return mc, nil
	}
	pct, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return model.MarketChange{}, eris.Wrapf(err, "outcomes: bad percent in %q", spec)
	}
	mc.ChangePct = &pct
	return mc, nil
}

func init() {
	outcomesCmd.Flags().StringVar(&outcomesDate, "date", "", "outcome date YYYY-MM-DD (default today)")
	outcomesCmd.Flags().StringArrayVar(&outcomesChanges, "change", nil, "per-symbol change, e.g. ^IXIC=1.25 (repeatable)")
	outcomesCmd.Flags().StringVar(&outcomesFile, "file", "", "JSON file with an array of market changes")
	rootCmd.AddCommand(outcomesCmd)
}
