// Package sentiment derives per-day sentiment breakdowns from analyzed,
// deduplicated events.
package sentiment

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/store"
)

// Aggregator turns raw sentiment counts into percentage breakdowns and
// maintains the cached daily_sentiment view.
type Aggregator struct {
	store store.Store
}

// NewAggregator builds an aggregator over the given store.
func NewAggregator(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// Breakdown converts counts into a percentage breakdown. Percentages are
// rounded to one decimal place. A day with no analyzed events yields an
// all-zero breakdown, never an error.
func Breakdown(counts *model.SentimentCounts) model.SentimentBreakdown {
	b := model.SentimentBreakdown{Total: counts.Total}
	if counts.Total == 0 {
		return b
	}
	pct := func(n int) float64 {
		return math.Round(float64(n)/float64(counts.Total)*1000) / 10
	}
	b.Positive = pct(counts.Positive)
	b.Negative = pct(counts.Negative)
	b.Neutral = pct(counts.Neutral)
	b.Mixed = pct(counts.Mixed)
	return b
}

// ForDay computes the breakdown for one date from live event rows,
// refreshing the cached view as a side effect.
func (a *Aggregator) ForDay(ctx context.Context, date string) (model.SentimentBreakdown, error) {
	counts, err := a.Recompute(ctx, date)
	if err != nil {
		return model.SentimentBreakdown{}, err
	}
	return Breakdown(counts), nil
}

// Recompute recounts sentiments for a date from the event rows and replaces
// the cached daily_sentiment row. Called whenever duplicate flags change.
func (a *Aggregator) Recompute(ctx context.Context, date string) (*model.SentimentCounts, error) {
	counts, err := a.store.CountSentiments(ctx, date)
	if err != nil {
		return nil, eris.Wrapf(err, "sentiment: count for %s", date)
	}
	if err := a.store.ReplaceDailySentiment(ctx, counts); err != nil {
		return nil, eris.Wrapf(err, "sentiment: refresh cache for %s", date)
	}

	zap.L().Debug("daily sentiment recomputed",
		zap.String("date", date),
		zap.Int("total", counts.Total),
		zap.Int("positive", counts.Positive),
		zap.Int("negative", counts.Negative),
	)
	return counts, nil
}
