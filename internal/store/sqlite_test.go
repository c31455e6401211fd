package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sector-pulse/pulse-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "pulse_test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(title, sourceID string, day time.Time) *model.Event {
	return &model.Event{
		Source:      model.SourceNewsAPI,
		SourceID:    sourceID,
		Title:       title,
		Content:     "content for " + title,
		PublishedAt: &day,
		CollectedAt: day.Add(2 * time.Hour),
	}
}

func TestSaveEventSkipsDuplicateSourceID(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	day := time.Date(2025, 11, 20, 7, 0, 0, 0, time.UTC)

	id, err := s.SaveEvent(ctx, testEvent("Nvidia beats earnings", "a-1", day))
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	again, err := s.SaveEvent(ctx, testEvent("Nvidia beats earnings", "a-1", day))
	require.NoError(t, err)
	assert.Equal(t, int64(0), again, "same (source, source_id) must not insert")

	stats, err := s.SaveEvents(ctx, []*model.Event{
		testEvent("OpenAI ships new model", "a-2", day),
		testEvent("Nvidia beats earnings", "a-1", day),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Saved)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestListEventsByDayUsesPublishDateWithCollectionFallback(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	published := time.Date(2025, 11, 20, 23, 30, 0, 0, time.UTC)
	_, err := s.SaveEvent(ctx, testEvent("published on the 20th", "b-1", published))
	require.NoError(t, err)

	// No publish date: the collection date decides the day.
	unpublished := &model.Event{
		Source:      model.SourceTechRSS,
		SourceID:    "b-2",
		Title:       "collected on the 21st",
		CollectedAt: time.Date(2025, 11, 21, 1, 0, 0, 0, time.UTC),
	}
	_, err = s.SaveEvent(ctx, unpublished)
	require.NoError(t, err)

	day20, err := s.ListEventsByDay(ctx, "2025-11-20")
	require.NoError(t, err)
	require.Len(t, day20, 1)
	assert.Equal(t, "published on the 20th", day20[0].Title)
	require.NotNil(t, day20[0].PublishedAt)
	assert.True(t, day20[0].PublishedAt.Equal(published))

	day21, err := s.ListEventsByDay(ctx, "2025-11-21")
	require.NoError(t, err)
	require.Len(t, day21, 1)
	assert.Equal(t, "collected on the 21st", day21[0].Title)
}

func TestEventEntityListsRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	day := time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)

	ev := testEvent("SoftBank invests in OpenAI", "c-1", day)
	ev.Companies = []string{"SoftBank", "OpenAI"}
	ev.People = []string{"Masayoshi Son"}
	_, err := s.SaveEvent(ctx, ev)
	require.NoError(t, err)

	got, err := s.ListEventsByDay(ctx, "2025-11-20")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"SoftBank", "OpenAI"}, got[0].Companies)
	assert.Equal(t, []string{"Masayoshi Son"}, got[0].People)
	assert.Empty(t, got[0].Products)
}

func TestMarkDuplicateFlags(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	day := time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)

	var ids []int64
	for _, sid := range []string{"d-1", "d-2", "d-3"} {
		id, err := s.SaveEvent(ctx, testEvent("story "+sid, sid, day))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	n, err := s.MarkLexicalDuplicates(ctx, ids[1:2])
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.MarkSemanticDuplicates(ctx, ids[2:])
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.MarkLexicalDuplicates(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	events, err := s.ListEventsByDay(ctx, "2025-11-20")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.False(t, events[0].IsDuplicate)
	assert.True(t, events[1].IsDuplicate)
	assert.True(t, events[2].IsSemanticDuplicate)
}

func TestCountSentimentsExcludesDuplicates(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	day := time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)

	seed := []struct {
		sid       string
		sentiment model.Sentiment
		dup       bool
	}{
		{"e-1", model.SentimentPositive, false},
		{"e-2", model.SentimentPositive, false},
		{"e-3", model.SentimentNegative, false},
		{"e-4", model.SentimentPositive, true},
		{"e-5", "", false}, // unanalyzed, excluded
	}
	for _, row := range seed {
		ev := testEvent("story "+row.sid, row.sid, day)
		ev.Sentiment = row.sentiment
		ev.IsDuplicate = row.dup
		_, err := s.SaveEvent(ctx, ev)
		require.NoError(t, err)
	}

	counts, err := s.CountSentiments(ctx, "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Positive)
	assert.Equal(t, 1, counts.Negative)
	assert.Equal(t, 3, counts.Total)

	require.NoError(t, s.ReplaceDailySentiment(ctx, counts))
	cached, err := s.GetDailySentiment(ctx, "2025-11-20")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, counts.Positive, cached.Positive)
	assert.Equal(t, counts.Total, cached.Total)

	missing, err := s.GetDailySentiment(ctx, "2025-01-01")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertPredictionLockedRowIsNeverOverwritten(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2025, 11, 20, 21, 5, 0, 0, time.UTC)

	first := &model.Prediction{
		Date:          "2025-11-20",
		Sentiment:     model.SentimentBreakdown{Positive: 60, Negative: 20, Total: 10},
		Prediction:    model.DirectionBullish,
		Confidence:    model.ConfidenceHigh,
		CreatedAt:     now,
		FirstLoggedAt: now,
		IsLocked:      true,
	}
	require.NoError(t, s.UpsertPrediction(ctx, first))

	overwrite := &model.Prediction{
		Date:          "2025-11-20",
		Sentiment:     model.SentimentBreakdown{Positive: 10, Negative: 70, Total: 10},
		Prediction:    model.DirectionBearish,
		Confidence:    model.ConfidenceHigh,
		CreatedAt:     now.Add(time.Hour),
		FirstLoggedAt: now.Add(time.Hour),
		IsLocked:      true,
	}
	require.NoError(t, s.UpsertPrediction(ctx, overwrite))

	got, err := s.GetPrediction(ctx, "2025-11-20")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.DirectionBullish, got.Prediction)
	assert.Equal(t, 60.0, got.Sentiment.Positive)
	assert.True(t, got.IsLocked)
}

func TestUpsertPredictionUnlockedRowPreservesFirstLoggedAt(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	first := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertPrediction(ctx, &model.Prediction{
		Date:          "2025-11-20",
		Prediction:    model.DirectionNeutral,
		Confidence:    model.ConfidenceLow,
		CreatedAt:     first,
		FirstLoggedAt: first,
	}))

	later := first.Add(3 * time.Hour)
	require.NoError(t, s.UpsertPrediction(ctx, &model.Prediction{
		Date:          "2025-11-20",
		Sentiment:     model.SentimentBreakdown{Positive: 55, Negative: 30, Total: 8},
		Prediction:    model.DirectionBullish,
		Confidence:    model.ConfidenceMedium,
		CreatedAt:     later,
		FirstLoggedAt: later,
	}))

	got, err := s.GetPrediction(ctx, "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, model.DirectionBullish, got.Prediction)
	assert.True(t, got.FirstLoggedAt.Equal(first), "first_logged_at must survive updates")
	assert.True(t, got.CreatedAt.Equal(later))
}

func TestPredictionAuditAppendsInOrder(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

	for i, action := range []model.AuditAction{model.AuditInsert, model.AuditUpdate, model.AuditBlocked} {
		require.NoError(t, s.AppendPredictionAudit(ctx, &model.PredictionAudit{
			Date:       "2025-11-20",
			Prediction: model.DirectionBullish,
			Confidence: model.ConfidenceMedium,
			Action:     action,
			Reason:     "run " + string(action),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	trail, err := s.ListPredictionAudit(ctx, "2025-11-20")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, model.AuditInsert, trail[0].Action)
	assert.Equal(t, model.AuditUpdate, trail[1].Action)
	assert.Equal(t, model.AuditBlocked, trail[2].Action)
	for _, a := range trail {
		assert.NotEmpty(t, a.ID)
	}
}

func TestWorkflowRunLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	started := time.Date(2025, 11, 20, 6, 0, 0, 0, time.UTC)

	run := &model.WorkflowRun{
		WorkflowName:  "daily-pipeline",
		RunDate:       "2025-11-20",
		StartedAt:     started,
		Status:        model.RunStatusStarted,
		RunCountToday: 1,
	}
	require.NoError(t, s.InsertWorkflowRun(ctx, run))
	require.NotEmpty(t, run.ID)

	n, err := s.CountWorkflowRuns(ctx, "daily-pipeline", "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.CountWorkflowRuns(ctx, "daily-pipeline", "2025-11-21")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.CompleteWorkflowRun(ctx, run.ID, model.RunStatusCompleted, "12 events"))

	runs, err := s.ListWorkflowRuns(ctx, "2025-11-20", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusCompleted, runs[0].Status)
	require.NotNil(t, runs[0].CompletedAt)
	assert.Equal(t, "12 events", runs[0].Notes)

	err = s.CompleteWorkflowRun(ctx, "no-such-run", model.RunStatusFailed, "")
	assert.Error(t, err)
}

func TestMarketAndOutcomeUpserts(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	pct := func(v float64) *float64 { return &v }
	require.NoError(t, s.SaveMarketChanges(ctx, []model.MarketChange{
		{Date: "2025-11-20", Symbol: "^IXIC", SymbolName: "NASDAQ", ChangePct: pct(1.2)},
		{Date: "2025-11-20", Symbol: "NVDA", SymbolName: "NVIDIA", ChangePct: nil},
	}))
	// Second fetch revises the close.
	require.NoError(t, s.SaveMarketChanges(ctx, []model.MarketChange{
		{Date: "2025-11-20", Symbol: "^IXIC", SymbolName: "NASDAQ", ChangePct: pct(1.5)},
	}))

	changes, err := s.ListMarketChanges(ctx, "2025-11-20")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "NVDA", changes[0].Symbol)
	assert.Nil(t, changes[0].ChangePct)
	assert.Equal(t, "^IXIC", changes[1].Symbol)
	require.NotNil(t, changes[1].ChangePct)
	assert.Equal(t, 1.5, *changes[1].ChangePct)

	out := &model.Outcome{
		Date: "2025-11-20", Symbol: "^IXIC", ChangePct: 1.5,
		Direction: model.OutcomeUp, Magnitude: model.MagnitudeModerate,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.UpsertOutcome(ctx, out))
	require.NoError(t, s.UpsertOutcome(ctx, out))
}

func TestJoinedSeriesPairsPredictionsWithOutcomes(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	days := []struct {
		date string
		net  float64
		chg  float64
	}{
		{"2025-11-18", 30, 0.8},
		{"2025-11-19", -20, -1.1},
		{"2025-11-20", 10, 0.3},
	}
	for _, d := range days {
		require.NoError(t, s.UpsertPrediction(ctx, &model.Prediction{
			Date:          d.date,
			Sentiment:     model.SentimentBreakdown{Positive: d.net, Total: 5},
			Prediction:    model.DirectionNeutral,
			Confidence:    model.ConfidenceLow,
			CreatedAt:     now,
			FirstLoggedAt: now,
		}))
		require.NoError(t, s.UpsertOutcome(ctx, &model.Outcome{
			Date: d.date, Symbol: "^IXIC", ChangePct: d.chg,
			Direction: model.OutcomeUp, Magnitude: model.MagnitudeWeak, CreatedAt: now,
		}))
	}
	// Prediction without an outcome is excluded from the series.
	require.NoError(t, s.UpsertPrediction(ctx, &model.Prediction{
		Date: "2025-11-21", Prediction: model.DirectionNeutral,
		Confidence: model.ConfidenceLow, CreatedAt: now, FirstLoggedAt: now,
	}))

	series, err := s.JoinedSeries(ctx, "^IXIC", 30)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, "2025-11-20", series[0].Date)
	assert.Equal(t, 10.0, series[0].NetSentiment)
	assert.Equal(t, 0.3, series[0].ChangePct)

	capped, err := s.JoinedSeries(ctx, "^IXIC", 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestDailyCorrelationRoundTripAndSummary(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")
	dayBefore := now.AddDate(0, 0, -2).Format("2006-01-02")

	correct := true
	wrong := false
	pct := func(v float64) *float64 { return &v }

	rows := []*model.DailyCorrelation{
		{Date: dayBefore, DominantSentiment: model.SentimentPositive, SentimentStrength: 60,
			MarketOutcome: model.OutcomeUp, NasdaqChangePct: pct(1.1), Correct: &correct, CreatedAt: now},
		{Date: yesterday, DominantSentiment: model.SentimentNegative, SentimentStrength: 55,
			MarketOutcome: model.OutcomeUp, NasdaqChangePct: pct(0.9), Correct: &wrong, CreatedAt: now},
		{Date: today, DominantSentiment: model.SentimentMixed, SentimentStrength: 40,
			MarketOutcome: model.OutcomeFlat, Correct: nil, CreatedAt: now},
	}
	for _, dc := range rows {
		require.NoError(t, s.UpsertDailyCorrelation(ctx, dc))
	}

	list, err := s.ListDailyCorrelations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, today, list[0].Date)
	assert.Nil(t, list[0].Correct)
	assert.Nil(t, list[0].NasdaqChangePct)
	require.NotNil(t, list[2].Correct)
	assert.True(t, *list[2].Correct)

	sum, err := s.AccuracySummary(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Correct)
	assert.Equal(t, 1, sum.Wrong)
	assert.Equal(t, 1, sum.Ambiguous)
	assert.InDelta(t, 0.5, sum.Accuracy, 1e-9)
}

func TestUpdateEventAnalysis(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	day := time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)

	id, err := s.SaveEvent(ctx, testEvent("unanalyzed story", "f-1", day))
	require.NoError(t, err)

	unscored, err := s.ListUnscoredEvents(ctx, day.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, unscored, 1)

	require.NoError(t, s.UpdateEventAnalysis(ctx, id, 7.5, model.SentimentPositive, "strong launch"))

	unscored, err = s.ListUnscoredEvents(ctx, day.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, unscored)

	events, err := s.ListEventsByDay(ctx, "2025-11-20")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].SignificanceScore)
	assert.Equal(t, 7.5, *events[0].SignificanceScore)
	assert.Equal(t, model.SentimentPositive, events[0].Sentiment)

	assert.Error(t, s.UpdateEventAnalysis(ctx, 9999, 1, model.SentimentNeutral, ""))
}
