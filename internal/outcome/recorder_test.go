package outcome

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

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "outcome_test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func pct(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		change        float64
		wantDirection model.OutcomeDirection
		wantMagnitude model.OutcomeMagnitude
	}{
		{3.1, model.OutcomeUp, model.MagnitudeStrong},
		{2.0, model.OutcomeUp, model.MagnitudeStrong},
		{1.2, model.OutcomeUp, model.MagnitudeModerate},
		{0.6, model.OutcomeUp, model.MagnitudeModerate},
		{0.5, model.OutcomeFlat, model.MagnitudeModerate},
		{0.3, model.OutcomeFlat, model.MagnitudeWeak},
		{0.0, model.OutcomeFlat, model.MagnitudeWeak},
		{-0.3, model.OutcomeFlat, model.MagnitudeWeak},
		{-0.6, model.OutcomeDown, model.MagnitudeModerate},
		{-2.4, model.OutcomeDown, model.MagnitudeStrong},
	}
	for _, tt := range tests {
		direction, magnitude := th.Classify(tt.change)
		assert.Equal(t, tt.wantDirection, direction, "change %.2f", tt.change)
		assert.Equal(t, tt.wantMagnitude, magnitude, "change %.2f", tt.change)
	}
}

func TestRecordSkipsNilChanges(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 11, 20, 22, 0, 0, 0, time.UTC)
	rec := NewRecorder(st, DefaultThresholds(), func() time.Time { return now })

	res, err := rec.Record(ctx, []model.MarketChange{
		{Date: "2025-11-20", Symbol: SymbolNasdaq, ChangePct: pct(1.4)},
		{Date: "2025-11-20", Symbol: SymbolNvidia, ChangePct: nil},
		{Date: "2025-11-20", Symbol: SymbolSP500, ChangePct: pct(-0.2)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Recorded)
	assert.Equal(t, 1, res.Skipped)

	// The raw feed keeps the nil row, outcomes do not.
	changes, err := st.ListMarketChanges(ctx, "2025-11-20")
	require.NoError(t, err)
	assert.Len(t, changes, 3)

	series, err := st.JoinedSeries(ctx, SymbolNvidia, 30)
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestRecordIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	rec := NewRecorder(st, DefaultThresholds(), nil)

	feed := []model.MarketChange{{Date: "2025-11-20", Symbol: SymbolNasdaq, ChangePct: pct(2.2)}}
	_, err := rec.Record(ctx, feed)
	require.NoError(t, err)

	// Revised close on a re-run overwrites, it does not duplicate.
	feed[0].ChangePct = pct(2.5)
	res, err := rec.Record(ctx, feed)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Recorded)
}
