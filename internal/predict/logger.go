package predict

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/store"
)

// SaveStatus tells the caller what the write attempt did.
type SaveStatus string

const (
	StatusInserted SaveStatus = "inserted"
	StatusUpdated  SaveStatus = "updated"
	StatusBlocked  SaveStatus = "blocked"
)

// SaveResult carries the outcome of one write attempt. On a blocked write
// Prediction is the stored, unchanged row.
type SaveResult struct {
	Status     SaveStatus
	Prediction *model.Prediction
}

// Logger is the prediction state machine: unlogged, logged-unlocked,
// logged-locked. Every write attempt, including blocked ones, appends a
// PredictionAudit row.
type Logger struct {
	store    store.Store
	clock    Clock
	calendar MarketCalendar
	rule     Rule
}

// NewLogger wires the state machine. A nil clock falls back to the system
// clock.
func NewLogger(st store.Store, clock Clock, calendar MarketCalendar, rule Rule) *Logger {
	if clock == nil {
		clock = RealClock{}
	}
	return &Logger{store: st, clock: clock, calendar: calendar, rule: rule}
}

// Save derives the prediction for date from breakdown and writes it.
// Lock eligibility is evaluated on every write: a past date or a date
// whose market session has opened locks as part of the same write.
// Attempts against a locked row change nothing and return StatusBlocked
// with the stored prediction.
func (l *Logger) Save(ctx context.Context, date string, breakdown model.SentimentBreakdown, topEventsSummary, workflowRunID string) (*SaveResult, error) {
	existing, err := l.store.GetPrediction(ctx, date)
	if err != nil {
		return nil, eris.Wrapf(err, "predict: load prediction %s", date)
	}

	now := l.clock.Now().UTC()
	direction, confidence := l.rule.Derive(breakdown)

	if existing != nil && existing.IsLocked {
		audit := &model.PredictionAudit{
			Date:          date,
			Sentiment:     breakdown,
			Prediction:    direction,
			Confidence:    confidence,
			Action:        model.AuditBlocked,
			Reason:        "prediction locked at market open",
			CreatedAt:     now,
			WorkflowRunID: workflowRunID,
		}
		if err := l.store.AppendPredictionAudit(ctx, audit); err != nil {
			return nil, eris.Wrapf(err, "predict: audit blocked write %s", date)
		}
		zap.L().Warn("prediction write blocked by lock",
			zap.String("date", date),
			zap.String("attempted", string(direction)),
			zap.String("stored", string(existing.Prediction)),
		)
		return &SaveResult{Status: StatusBlocked, Prediction: existing}, nil
	}

	shouldLock, err := l.calendar.ShouldLock(date, now)
	if err != nil {
		return nil, err
	}

	p := &model.Prediction{
		Date:             date,
		Sentiment:        breakdown,
		Prediction:       direction,
		Confidence:       confidence,
		TopEventsSummary: topEventsSummary,
		CreatedAt:        now,
		FirstLoggedAt:    now,
		IsLocked:         shouldLock,
	}
	action := model.AuditInsert
	reason := "first prediction for date"
	if existing != nil {
		p.FirstLoggedAt = existing.FirstLoggedAt
		action = model.AuditUpdate
		reason = "recomputed from updated sentiment"
	}

	// The upsert's own lock guard covers the window between the read
	// above and this write.
	if err := l.store.UpsertPrediction(ctx, p); err != nil {
		return nil, eris.Wrapf(err, "predict: write prediction %s", date)
	}

	audit := &model.PredictionAudit{
		Date:          date,
		Sentiment:     breakdown,
		Prediction:    direction,
		Confidence:    confidence,
		Action:        action,
		Reason:        reason,
		CreatedAt:     now,
		WorkflowRunID: workflowRunID,
	}
	if err := l.store.AppendPredictionAudit(ctx, audit); err != nil {
		return nil, eris.Wrapf(err, "predict: audit write %s", date)
	}

	status := StatusInserted
	if action == model.AuditUpdate {
		status = StatusUpdated
	}
	zap.L().Info("prediction logged",
		zap.String("date", date),
		zap.String("prediction", string(direction)),
		zap.String("confidence", string(confidence)),
		zap.Float64("net_sentiment", breakdown.Net()),
		zap.Bool("locked", shouldLock),
		zap.String("status", string(status)),
	)
	return &SaveResult{Status: status, Prediction: p}, nil
}
