package sentiment

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/store"
)

func TestBreakdownRoundsToOneDecimal(t *testing.T) {
	counts := &model.SentimentCounts{
		Date: "2025-11-20", Positive: 1, Negative: 1, Neutral: 1, Total: 3,
	}
	b := Breakdown(counts)
	assert.Equal(t, 33.3, b.Positive)
	assert.Equal(t, 33.3, b.Negative)
	assert.Equal(t, 33.3, b.Neutral)
	assert.Zero(t, b.Mixed)
	assert.Equal(t, 3, b.Total)
	assert.InDelta(t, 0.0, b.Net(), 1e-9)
}

func TestBreakdownEmptyDayIsAllZero(t *testing.T) {
	b := Breakdown(&model.SentimentCounts{Date: "2025-11-20"})
	assert.Zero(t, b.Positive)
	assert.Zero(t, b.Negative)
	assert.Zero(t, b.Neutral)
	assert.Zero(t, b.Mixed)
	assert.Zero(t, b.Total)
}

func TestBreakdownNet(t *testing.T) {
	b := Breakdown(&model.SentimentCounts{Positive: 7, Negative: 2, Mixed: 1, Total: 10})
	assert.Equal(t, 70.0, b.Positive)
	assert.Equal(t, 20.0, b.Negative)
	assert.Equal(t, 10.0, b.Mixed)
	assert.InDelta(t, 50.0, b.Net(), 1e-9)
}

func TestForDayRefreshesCache(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "sentiment_test.db"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	day := time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)
	seed := []struct {
		sid       string
		sentiment model.Sentiment
		dup       bool
	}{
		{"a", model.SentimentPositive, false},
		{"b", model.SentimentPositive, false},
		{"c", model.SentimentNegative, false},
		{"d", model.SentimentNegative, true}, // flagged, excluded
	}
	for _, row := range seed {
		_, err := st.SaveEvent(ctx, &model.Event{
			Source:      model.SourceNewsAPI,
			SourceID:    row.sid,
			Title:       "story " + row.sid,
			Sentiment:   row.sentiment,
			IsDuplicate: row.dup,
			PublishedAt: &day,
			CollectedAt: day,
		})
		require.NoError(t, err)
	}

	agg := NewAggregator(st)
	b, err := agg.ForDay(ctx, "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, 66.7, b.Positive)
	assert.Equal(t, 33.3, b.Negative)
	assert.Equal(t, 3, b.Total)

	cached, err := st.GetDailySentiment(ctx, "2025-11-20")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 2, cached.Positive)
	assert.Equal(t, 1, cached.Negative)
	assert.Equal(t, 3, cached.Total)
}
