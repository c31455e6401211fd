package outcome

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/store"
)

// minCorrelationPoints is the floor below which the rolling correlation is
// defined as zero rather than computed from noise.
const minCorrelationPoints = 5

// Correct applies the fixed direction mapping. Partial matches (bullish vs
// flat) are wrong.
func Correct(prediction model.Direction, outcome model.OutcomeDirection) bool {
	switch prediction {
	case model.DirectionBullish:
		return outcome == model.OutcomeUp
	case model.DirectionBearish:
		return outcome == model.OutcomeDown
	case model.DirectionNeutral:
		return outcome == model.OutcomeFlat
	}
	return false
}

// Correlation computes Pearson's r between net sentiment and percent
// change over the given points, rounded to three decimals. Fewer than
// minCorrelationPoints points, or a degenerate series, yields 0.
func Correlation(points []store.SeriesPoint) float64 {
	if len(points) < minCorrelationPoints {
		return 0
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, pt := range points {
		xs[i] = pt.NetSentiment
		ys[i] = pt.ChangePct
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0
	}
	return math.Round(r*1000) / 1000
}

// Calculator joins predictions with outcomes and maintains accuracy rows.
type Calculator struct {
	store      store.Store
	windowDays int
	primary    string
	now        func() time.Time
}

// NewCalculator builds a calculator over a trailing correlation window.
// primarySymbol is the index the daily roll-up grades against; empty
// falls back to the NASDAQ composite.
func NewCalculator(st store.Store, windowDays int, primarySymbol string, nowFn func() time.Time) *Calculator {
	if windowDays <= 0 {
		windowDays = 30
	}
	if primarySymbol == "" {
		primarySymbol = SymbolNasdaq
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Calculator{store: st, windowDays: windowDays, primary: primarySymbol, now: nowFn}
}

// UpdateDate grades every symbol that has both a prediction and an outcome
// for the date. Symbols without an outcome are skipped with a reason, not
// an error.
func (c *Calculator) UpdateDate(ctx context.Context, date string) (int, error) {
	prediction, err := c.store.GetPrediction(ctx, date)
	if err != nil {
		return 0, eris.Wrapf(err, "accuracy: load prediction %s", date)
	}
	if prediction == nil {
		zap.L().Info("no prediction for date, skipping accuracy", zap.String("date", date))
		return 0, nil
	}

	changes, err := c.store.ListMarketChanges(ctx, date)
	if err != nil {
		return 0, eris.Wrapf(err, "accuracy: load market data %s", date)
	}
	if len(changes) == 0 {
		zap.L().Info("no market data for date, skipping accuracy", zap.String("date", date))
		return 0, nil
	}

	thresholds := DefaultThresholds()
	updated := 0
	for _, mc := range changes {
		if mc.ChangePct == nil {
			continue
		}
		direction, _ := thresholds.Classify(*mc.ChangePct)

		series, err := c.store.JoinedSeries(ctx, mc.Symbol, c.windowDays)
		if err != nil {
			return updated, eris.Wrapf(err, "accuracy: joined series %s", mc.Symbol)
		}

		rec := &model.AccuracyRecord{
			Date:        date,
			Symbol:      mc.Symbol,
			Prediction:  prediction.Prediction,
			Outcome:     direction,
			Correct:     Correct(prediction.Prediction, direction),
			Correlation: Correlation(series),
			CreatedAt:   c.now().UTC(),
		}
		if err := c.store.UpsertAccuracy(ctx, rec); err != nil {
			return updated, eris.Wrapf(err, "accuracy: upsert %s/%s", date, mc.Symbol)
		}
		updated++
	}

	zap.L().Info("accuracy updated",
		zap.String("date", date),
		zap.Int("symbols", updated),
	)
	return updated, nil
}
