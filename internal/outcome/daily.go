package outcome

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/model"
)

// Tracked symbols. The NASDAQ composite is the default primary index;
// outcome.primary_symbol overrides which one the roll-up grades against.
const (
	SymbolNasdaq = "^IXIC"
	SymbolNvidia = "NVDA"
	SymbolSP500  = "^GSPC"
)

// DominantSentiment returns the category with the highest share and that
// share. Ties resolve in positive, negative, neutral, mixed order.
func DominantSentiment(b model.SentimentBreakdown) (model.Sentiment, float64) {
	dominant, strength := model.SentimentPositive, b.Positive
	for _, c := range []struct {
		s   model.Sentiment
		pct float64
	}{
		{model.SentimentNegative, b.Negative},
		{model.SentimentNeutral, b.Neutral},
		{model.SentimentMixed, b.Mixed},
	} {
		if c.pct > strength {
			dominant, strength = c.s, c.pct
		}
	}
	return dominant, strength
}

// sentimentMatches maps a dominant sentiment onto the realized direction.
// Mixed never matches anything; callers handle it as ambiguous before
// getting here.
func sentimentMatches(s model.Sentiment, direction model.OutcomeDirection) bool {
	switch s {
	case model.SentimentPositive:
		return direction == model.OutcomeUp
	case model.SentimentNegative:
		return direction == model.OutcomeDown
	case model.SentimentNeutral:
		return direction == model.OutcomeFlat
	}
	return false
}

// RollUp writes the per-date DailyCorrelation summary: dominant sentiment
// versus the primary index's realized direction. A mixed dominant
// sentiment is recorded with null correctness and excluded from the
// accuracy denominator.
func (c *Calculator) RollUp(ctx context.Context, date string) (*model.DailyCorrelation, error) {
	prediction, err := c.store.GetPrediction(ctx, date)
	if err != nil {
		return nil, eris.Wrapf(err, "rollup: load prediction %s", date)
	}
	if prediction == nil {
		zap.L().Info("no prediction for date, skipping rollup", zap.String("date", date))
		return nil, nil
	}

	changes, err := c.store.ListMarketChanges(ctx, date)
	if err != nil {
		return nil, eris.Wrapf(err, "rollup: load market data %s", date)
	}
	bySymbol := make(map[string]*float64, len(changes))
	for _, mc := range changes {
		bySymbol[mc.Symbol] = mc.ChangePct
	}

	primary := bySymbol[c.primary]
	if primary == nil {
		zap.L().Info("no primary index close for date, skipping rollup",
			zap.String("date", date),
			zap.String("symbol", c.primary),
		)
		return nil, nil
	}

	dominant, strength := DominantSentiment(prediction.Sentiment)
	marketOutcome, _ := DefaultThresholds().Classify(*primary)

	dc := &model.DailyCorrelation{
		Date:              date,
		DominantSentiment: dominant,
		SentimentStrength: strength,
		MarketOutcome:     marketOutcome,
		NasdaqChangePct:   bySymbol[SymbolNasdaq],
		NvdaChangePct:     bySymbol[SymbolNvidia],
		SP500ChangePct:    bySymbol[SymbolSP500],
		CreatedAt:         c.now().UTC(),
	}
	if dominant != model.SentimentMixed {
		correct := sentimentMatches(dominant, marketOutcome)
		dc.Correct = &correct
	}

	if err := c.store.UpsertDailyCorrelation(ctx, dc); err != nil {
		return nil, eris.Wrapf(err, "rollup: upsert %s", date)
	}

	zap.L().Info("daily correlation rolled up",
		zap.String("date", date),
		zap.String("dominant_sentiment", string(dominant)),
		zap.String("market_outcome", string(marketOutcome)),
		zap.Bool("ambiguous", dc.Correct == nil),
	)
	return dc, nil
}

// Summary aggregates daily correlation rows over the trailing window.
func (c *Calculator) Summary(ctx context.Context, days int) (*model.AccuracySummary, error) {
	if days <= 0 {
		days = c.windowDays
	}
	sum, err := c.store.AccuracySummary(ctx, days)
	if err != nil {
		return nil, eris.Wrap(err, "rollup: accuracy summary")
	}
	return sum, nil
}
