package outcome

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/store"
)

func TestDominantSentiment(t *testing.T) {
	tests := []struct {
		name    string
		b       model.SentimentBreakdown
		want    model.Sentiment
		wantPct float64
	}{
		{"clear positive", model.SentimentBreakdown{Positive: 60, Negative: 20, Neutral: 20}, model.SentimentPositive, 60},
		{"clear negative", model.SentimentBreakdown{Positive: 10, Negative: 70, Neutral: 20}, model.SentimentNegative, 70},
		{"mixed wins", model.SentimentBreakdown{Positive: 20, Negative: 20, Neutral: 10, Mixed: 50}, model.SentimentMixed, 50},
		{"tie resolves positive first", model.SentimentBreakdown{Positive: 40, Negative: 40, Neutral: 20}, model.SentimentPositive, 40},
		{"all zero", model.SentimentBreakdown{}, model.SentimentPositive, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, pct := DominantSentiment(tt.b)
			assert.Equal(t, tt.want, s)
			assert.Equal(t, tt.wantPct, pct)
		})
	}
}

func seedRollUpDate(t *testing.T, st store.Store, date string, b model.SentimentBreakdown, changes []model.MarketChange) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpsertPrediction(ctx, &model.Prediction{
		Date:          date,
		Sentiment:     b,
		Prediction:    model.DirectionNeutral,
		Confidence:    model.ConfidenceLow,
		CreatedAt:     at,
		FirstLoggedAt: at,
	}))
	if len(changes) > 0 {
		require.NoError(t, st.SaveMarketChanges(ctx, changes))
	}
}

func TestRollUpGradesDominantSentiment(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	date := "2025-11-17"
	seedRollUpDate(t, st, date,
		model.SentimentBreakdown{Positive: 55, Negative: 25, Neutral: 20, Total: 20},
		[]model.MarketChange{
			{Date: date, Symbol: SymbolNasdaq, ChangePct: pct(1.2)},
			{Date: date, Symbol: SymbolNvidia, ChangePct: pct(3.4)},
			{Date: date, Symbol: SymbolSP500, ChangePct: pct(0.9)},
		},
	)

	calc := NewCalculator(st, 30, "", nil)
	dc, err := calc.RollUp(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, dc)

	assert.Equal(t, model.SentimentPositive, dc.DominantSentiment)
	assert.Equal(t, 55.0, dc.SentimentStrength)
	assert.Equal(t, model.OutcomeUp, dc.MarketOutcome)
	require.NotNil(t, dc.Correct)
	assert.True(t, *dc.Correct)
	require.NotNil(t, dc.NvdaChangePct)
	assert.Equal(t, 3.4, *dc.NvdaChangePct)

	stored, err := st.ListDailyCorrelations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, date, stored[0].Date)
	require.NotNil(t, stored[0].Correct)
	assert.True(t, *stored[0].Correct)
}

func TestRollUpMixedDominantIsAmbiguous(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	date := "2025-11-18"
	seedRollUpDate(t, st, date,
		model.SentimentBreakdown{Positive: 20, Negative: 20, Mixed: 60, Total: 10},
		[]model.MarketChange{{Date: date, Symbol: SymbolNasdaq, ChangePct: pct(-1.1)}},
	)

	calc := NewCalculator(st, 30, "", nil)
	dc, err := calc.RollUp(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, dc)

	assert.Equal(t, model.SentimentMixed, dc.DominantSentiment)
	assert.Equal(t, model.OutcomeDown, dc.MarketOutcome)
	assert.Nil(t, dc.Correct, "mixed days carry no correctness verdict")
}

func TestRollUpGradesAgainstConfiguredPrimarySymbol(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// NASDAQ is down, the S&P is up. Grading against the S&P flips the
	// verdict for a positive day.
	date := "2025-11-21"
	seedRollUpDate(t, st, date,
		model.SentimentBreakdown{Positive: 70, Negative: 10, Neutral: 20, Total: 15},
		[]model.MarketChange{
			{Date: date, Symbol: SymbolNasdaq, ChangePct: pct(-1.3)},
			{Date: date, Symbol: SymbolSP500, ChangePct: pct(1.1)},
		},
	)

	calc := NewCalculator(st, 30, SymbolSP500, nil)
	dc, err := calc.RollUp(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, dc)

	assert.Equal(t, model.OutcomeUp, dc.MarketOutcome)
	require.NotNil(t, dc.Correct)
	assert.True(t, *dc.Correct)
	require.NotNil(t, dc.NasdaqChangePct)
	assert.Equal(t, -1.3, *dc.NasdaqChangePct)
}

func TestRollUpSkipsWithoutPrimaryIndex(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	date := "2025-11-19"
	seedRollUpDate(t, st, date,
		model.SentimentBreakdown{Positive: 80, Total: 5},
		[]model.MarketChange{
			{Date: date, Symbol: SymbolNvidia, ChangePct: pct(2.0)},
			{Date: date, Symbol: SymbolNasdaq, ChangePct: nil},
		},
	)

	calc := NewCalculator(st, 30, "", nil)
	dc, err := calc.RollUp(ctx, date)
	require.NoError(t, err)
	assert.Nil(t, dc)

	stored, err := st.ListDailyCorrelations(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRollUpSkipsWithoutPrediction(t *testing.T) {
	st := newTestStore(t)
	calc := NewCalculator(st, 30, "", nil)

	dc, err := calc.RollUp(context.Background(), "2025-01-01")
	require.NoError(t, err)
	assert.Nil(t, dc)
}

func TestSummaryCountsVerdicts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	calc := NewCalculator(st, 30, "", nil)

	// Summary windows are relative to the current date.
	today := time.Now().UTC()
	type day struct {
		breakdown model.SentimentBreakdown
		changePct float64
	}
	days := []day{
		{model.SentimentBreakdown{Positive: 70, Total: 10}, 1.5},  // correct
		{model.SentimentBreakdown{Positive: 70, Total: 10}, -1.5}, // wrong
		{model.SentimentBreakdown{Mixed: 90, Total: 10}, 0.8},     // ambiguous
		{model.SentimentBreakdown{Negative: 65, Total: 10}, -0.9}, // correct
	}
	for i, d := range days {
		date := today.AddDate(0, 0, -(i + 1)).Format("2006-01-02")
		seedRollUpDate(t, st, date, d.breakdown,
			[]model.MarketChange{{Date: date, Symbol: SymbolNasdaq, ChangePct: pct(d.changePct)}})
		_, err := calc.RollUp(ctx, date)
		require.NoError(t, err)
	}

	sum, err := calc.Summary(ctx, 30)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.Correct)
	assert.Equal(t, 1, sum.Wrong)
	assert.Equal(t, 1, sum.Ambiguous)
	assert.InDelta(t, 2.0/3.0, sum.Accuracy, 1e-9)
}
