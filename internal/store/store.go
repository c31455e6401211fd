package store

import (
	"context"
	"time"

	"github.com/sector-pulse/pulse-cli/internal/model"
)

// SeriesPoint is one joined (prediction, outcome) observation for a symbol,
// consumed by the rolling correlation calculation.
type SeriesPoint struct {
	Date         string  `json:"date"`
	NetSentiment float64 `json:"net_sentiment"`
	ChangePct    float64 `json:"change_pct"`
}

// Store defines the persistence interface for the prediction-integrity
// pipeline. Both the SQLite and Postgres implementations satisfy it.
type Store interface {
	// Events
	SaveEvent(ctx context.Context, ev *model.Event) (int64, error)
	SaveEvents(ctx context.Context, events []*model.Event) (model.SaveStats, error)
	ListEventsByDay(ctx context.Context, date string) ([]model.Event, error)
	ListEventsSince(ctx context.Context, since time.Time) ([]model.Event, error)
	ListUnscoredEvents(ctx context.Context, since time.Time) ([]model.Event, error)
	MarkLexicalDuplicates(ctx context.Context, ids []int64) (int, error)
	MarkSemanticDuplicates(ctx context.Context, ids []int64) (int, error)
	UpdateEventAnalysis(ctx context.Context, id int64, score float64, sentiment model.Sentiment, analysis string) error
	EventStats(ctx context.Context) (*model.EventStats, error)

	// Daily sentiment (derived view, keyed by date)
	CountSentiments(ctx context.Context, date string) (*model.SentimentCounts, error)
	ReplaceDailySentiment(ctx context.Context, counts *model.SentimentCounts) error
	GetDailySentiment(ctx context.Context, date string) (*model.SentimentCounts, error)

	// Predictions
	GetPrediction(ctx context.Context, date string) (*model.Prediction, error)
	UpsertPrediction(ctx context.Context, p *model.Prediction) error
	ListPredictions(ctx context.Context, limit int) ([]model.Prediction, error)
	AppendPredictionAudit(ctx context.Context, a *model.PredictionAudit) error
	ListPredictionAudit(ctx context.Context, date string) ([]model.PredictionAudit, error)

	// Workflow runs
	InsertWorkflowRun(ctx context.Context, run *model.WorkflowRun) error
	CompleteWorkflowRun(ctx context.Context, id string, status model.RunStatus, notes string) error
	CountWorkflowRuns(ctx context.Context, name, runDate string) (int, error)
	ListWorkflowRuns(ctx context.Context, runDate string, limit int) ([]model.WorkflowRun, error)

	// Market data, outcomes, accuracy
	SaveMarketChanges(ctx context.Context, changes []model.MarketChange) error
	ListMarketChanges(ctx context.Context, date string) ([]model.MarketChange, error)
	UpsertOutcome(ctx context.Context, o *model.Outcome) error
	JoinedSeries(ctx context.Context, symbol string, days int) ([]SeriesPoint, error)
	UpsertAccuracy(ctx context.Context, rec *model.AccuracyRecord) error
	ListAccuracy(ctx context.Context, date string) ([]model.AccuracyRecord, error)
	UpsertDailyCorrelation(ctx context.Context, dc *model.DailyCorrelation) error
	ListDailyCorrelations(ctx context.Context, limit int) ([]model.DailyCorrelation, error)
	AccuracySummary(ctx context.Context, days int) (*model.AccuracySummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
