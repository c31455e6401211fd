package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sector-pulse/pulse-cli/internal/db"
	"github.com/sector-pulse/pulse-cli/internal/model"
)

// PostgresStore implements Store on a pgx connection pool. Tests inject a
// pgxmock pool through the db.Pool interface.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects a pgx pool and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS events (
	id                    BIGSERIAL PRIMARY KEY,
	source                TEXT NOT NULL,
	source_id             TEXT,
	source_url            TEXT,
	title                 TEXT NOT NULL,
	content               TEXT,
	summary               TEXT,
	event_type            TEXT,
	companies             JSONB,
	products              JSONB,
	people                JSONB,
	published_at          TIMESTAMPTZ,
	collected_at          TIMESTAMPTZ NOT NULL,
	significance_score    DOUBLE PRECISION,
	sentiment             TEXT,
	analysis              TEXT,
	is_duplicate          BOOLEAN NOT NULL DEFAULT FALSE,
	is_semantic_duplicate BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE(source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_events_collected_at ON events(collected_at DESC);

CREATE TABLE IF NOT EXISTS daily_sentiment (
	date           TEXT PRIMARY KEY,
	positive       INTEGER NOT NULL DEFAULT 0,
	negative       INTEGER NOT NULL DEFAULT 0,
	neutral        INTEGER NOT NULL DEFAULT 0,
	mixed          INTEGER NOT NULL DEFAULT 0,
	total_analyzed INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS predictions (
	date               TEXT PRIMARY KEY,
	sentiment_positive DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment_negative DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment_neutral  DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment_mixed    DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_events       INTEGER NOT NULL DEFAULT 0,
	prediction         TEXT NOT NULL,
	confidence         TEXT NOT NULL,
	top_events_summary TEXT,
	created_at         TIMESTAMPTZ NOT NULL,
	first_logged_at    TIMESTAMPTZ NOT NULL,
	is_locked          BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS prediction_audit (
	id                 TEXT PRIMARY KEY,
	date               TEXT NOT NULL,
	sentiment_positive DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment_negative DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment_neutral  DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment_mixed    DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_events       INTEGER NOT NULL DEFAULT 0,
	prediction         TEXT NOT NULL,
	confidence         TEXT NOT NULL,
	action             TEXT NOT NULL,
	reason             TEXT,
	created_at         TIMESTAMPTZ NOT NULL,
	workflow_run_id    TEXT
);

CREATE INDEX IF NOT EXISTS idx_prediction_audit_date ON prediction_audit(date);

CREATE TABLE IF NOT EXISTS workflow_runs (
	id               TEXT PRIMARY KEY,
	workflow_name    TEXT NOT NULL,
	run_date         TEXT NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	completed_at     TIMESTAMPTZ,
	status           TEXT NOT NULL DEFAULT 'started',
	run_count_today  INTEGER NOT NULL DEFAULT 1,
	is_duplicate_run BOOLEAN NOT NULL DEFAULT FALSE,
	notes            TEXT
);

CREATE INDEX IF NOT EXISTS idx_workflow_runs_name_date ON workflow_runs(workflow_name, run_date);

CREATE TABLE IF NOT EXISTS market_data (
	date        TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	symbol_name TEXT,
	change_pct  DOUBLE PRECISION,
	PRIMARY KEY (date, symbol)
);

CREATE TABLE IF NOT EXISTS outcomes (
	date       TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	change_pct DOUBLE PRECISION NOT NULL,
	direction  TEXT NOT NULL,
	magnitude  TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (date, symbol)
);

CREATE TABLE IF NOT EXISTS accuracy (
	date        TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	prediction  TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	correct     BOOLEAN NOT NULL,
	correlation DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (date, symbol)
);

CREATE TABLE IF NOT EXISTS daily_correlation (
	date               TEXT PRIMARY KEY,
	dominant_sentiment TEXT NOT NULL,
	sentiment_strength DOUBLE PRECISION NOT NULL DEFAULT 0,
	market_outcome     TEXT NOT NULL,
	nasdaq_change_pct  DOUBLE PRECISION,
	nvda_change_pct    DOUBLE PRECISION,
	sp500_change_pct   DOUBLE PRECISION,
	prediction_correct BOOLEAN,
	created_at         TIMESTAMPTZ NOT NULL
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if p, ok := s.pool.(*pgxpool.Pool); ok {
		p.Close()
	}
	return nil
}

// --- Events ---

func (s *PostgresStore) SaveEvent(ctx context.Context, ev *model.Event) (int64, error) {
	companies, products, people, err := marshalEntities(ev)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO events (
			source, source_id, source_url, title, content, summary, event_type,
			companies, products, people, published_at, collected_at,
			significance_score, sentiment, analysis, is_duplicate, is_semantic_duplicate
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (source, source_id) DO NOTHING
		RETURNING id`,
		string(ev.Source), ev.SourceID, nullString(ev.SourceURL), ev.Title,
		nullString(ev.Content), nullString(ev.Summary), nullString(string(ev.EventType)),
		companies, products, people,
		nullTime(ev.PublishedAt), ev.CollectedAt.UTC(),
		nullFloat(ev.SignificanceScore), nullString(string(ev.Sentiment)), nullString(ev.Analysis),
		ev.IsDuplicate, ev.IsSemanticDuplicate,
	).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert event")
	}
	ev.ID = id
	return id, nil
}

func (s *PostgresStore) SaveEvents(ctx context.Context, events []*model.Event) (model.SaveStats, error) {
	var stats model.SaveStats
	for _, ev := range events {
		id, err := s.SaveEvent(ctx, ev)
		if err != nil {
			return stats, err
		}
		if id == 0 {
			stats.Duplicates++
		} else {
			stats.Saved++
		}
	}
	return stats, nil
}

const pgEventColumns = `id, source, source_id, source_url, title, content, summary,
	event_type, companies, products, people, published_at, collected_at,
	significance_score, sentiment, analysis, is_duplicate, is_semantic_duplicate`

func (s *PostgresStore) ListEventsByDay(ctx context.Context, date string) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgEventColumns+` FROM events
		 WHERE COALESCE(published_at, collected_at)::date = $1::date
		 ORDER BY id`,
		date,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events by day")
	}
	return collectPgEvents(rows)
}

func (s *PostgresStore) ListEventsSince(ctx context.Context, since time.Time) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgEventColumns+` FROM events WHERE collected_at >= $1 ORDER BY id`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events since")
	}
	return collectPgEvents(rows)
}

func (s *PostgresStore) ListUnscoredEvents(ctx context.Context, since time.Time) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgEventColumns+` FROM events
		 WHERE significance_score IS NULL
		   AND collected_at >= $1
		   AND is_duplicate = FALSE
		 ORDER BY id`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unscored events")
	}
	return collectPgEvents(rows)
}

func (s *PostgresStore) MarkLexicalDuplicates(ctx context.Context, ids []int64) (int, error) {
	return s.markFlag(ctx, "is_duplicate", ids)
}

func (s *PostgresStore) MarkSemanticDuplicates(ctx context.Context, ids []int64) (int, error) {
	return s.markFlag(ctx, "is_semantic_duplicate", ids)
}

func (s *PostgresStore) markFlag(ctx context.Context, column string, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET `+column+` = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: mark %s", column)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) UpdateEventAnalysis(ctx context.Context, id int64, score float64, sentiment model.Sentiment, analysis string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET significance_score = $1, sentiment = $2, analysis = $3 WHERE id = $4`,
		score, string(sentiment), analysis, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update event analysis %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("event not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) EventStats(ctx context.Context) (*model.EventStats, error) {
	stats := &model.EventStats{BySource: map[string]int{}}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&stats.TotalEvents); err != nil {
		return nil, eris.Wrap(err, "postgres: count events")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT source, COUNT(*) FROM events GROUP BY source ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: events by source")
	}
	defer rows.Close()
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source count")
		}
		stats.BySource[src] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: events by source iterate")
	}

	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM events WHERE collected_at >= now() - INTERVAL '24 hours'`,
	).Scan(&stats.Last24h); err != nil {
		return nil, eris.Wrap(err, "postgres: count last 24h")
	}
	return stats, nil
}

// --- Daily sentiment ---

func (s *PostgresStore) CountSentiments(ctx context.Context, date string) (*model.SentimentCounts, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sentiment, COUNT(*) FROM events
		 WHERE COALESCE(published_at, collected_at)::date = $1::date
		   AND sentiment IS NOT NULL
		   AND is_duplicate = FALSE
		   AND is_semantic_duplicate = FALSE
		 GROUP BY sentiment`,
		date,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count sentiments")
	}
	defer rows.Close()

	counts := &model.SentimentCounts{Date: date}
	for rows.Next() {
		var sentiment string
		var n int
		if err := rows.Scan(&sentiment, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sentiment count")
		}
		counts.Add(model.Sentiment(sentiment), n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count sentiments iterate")
}

func (s *PostgresStore) ReplaceDailySentiment(ctx context.Context, counts *model.SentimentCounts) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO daily_sentiment (date, positive, negative, neutral, mixed, total_analyzed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (date) DO UPDATE SET
			positive = EXCLUDED.positive,
			negative = EXCLUDED.negative,
			neutral = EXCLUDED.neutral,
			mixed = EXCLUDED.mixed,
			total_analyzed = EXCLUDED.total_analyzed,
			created_at = EXCLUDED.created_at`,
		counts.Date, counts.Positive, counts.Negative, counts.Neutral, counts.Mixed,
		counts.Total, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: replace daily sentiment")
}

func (s *PostgresStore) GetDailySentiment(ctx context.Context, date string) (*model.SentimentCounts, error) {
	var c model.SentimentCounts
	err := s.pool.QueryRow(ctx,
		`SELECT date, positive, negative, neutral, mixed, total_analyzed
		 FROM daily_sentiment WHERE date = $1`,
		date,
	).Scan(&c.Date, &c.Positive, &c.Negative, &c.Neutral, &c.Mixed, &c.Total)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get daily sentiment")
	}
	return &c, nil
}

// --- Predictions ---

func (s *PostgresStore) GetPrediction(ctx context.Context, date string) (*model.Prediction, error) {
	var p model.Prediction
	var summary *string
	err := s.pool.QueryRow(ctx,
		`SELECT date, sentiment_positive, sentiment_negative, sentiment_neutral,
			sentiment_mixed, total_events, prediction, confidence,
			top_events_summary, created_at, first_logged_at, is_locked
		 FROM predictions WHERE date = $1`,
		date,
	).Scan(
		&p.Date, &p.Sentiment.Positive, &p.Sentiment.Negative, &p.Sentiment.Neutral,
		&p.Sentiment.Mixed, &p.Sentiment.Total, &p.Prediction, &p.Confidence,
		&summary, &p.CreatedAt, &p.FirstLoggedAt, &p.IsLocked,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get prediction")
	}
	if summary != nil {
		p.TopEventsSummary = *summary
	}
	return &p, nil
}

func (s *PostgresStore) UpsertPrediction(ctx context.Context, p *model.Prediction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO predictions (
			date, sentiment_positive, sentiment_negative, sentiment_neutral,
			sentiment_mixed, total_events, prediction, confidence,
			top_events_summary, created_at, first_logged_at, is_locked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (date) DO UPDATE SET
			sentiment_positive = EXCLUDED.sentiment_positive,
			sentiment_negative = EXCLUDED.sentiment_negative,
			sentiment_neutral = EXCLUDED.sentiment_neutral,
			sentiment_mixed = EXCLUDED.sentiment_mixed,
			total_events = EXCLUDED.total_events,
			prediction = EXCLUDED.prediction,
			confidence = EXCLUDED.confidence,
			top_events_summary = EXCLUDED.top_events_summary,
			created_at = EXCLUDED.created_at,
			is_locked = EXCLUDED.is_locked
		WHERE predictions.is_locked = FALSE`,
		p.Date, p.Sentiment.Positive, p.Sentiment.Negative, p.Sentiment.Neutral,
		p.Sentiment.Mixed, p.Sentiment.Total, string(p.Prediction), string(p.Confidence),
		nullString(p.TopEventsSummary), p.CreatedAt.UTC(), p.FirstLoggedAt.UTC(), p.IsLocked,
	)
	return eris.Wrapf(err, "postgres: upsert prediction %s", p.Date)
}

func (s *PostgresStore) ListPredictions(ctx context.Context, limit int) ([]model.Prediction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT date, sentiment_positive, sentiment_negative, sentiment_neutral,
			sentiment_mixed, total_events, prediction, confidence,
			top_events_summary, created_at, first_logged_at, is_locked
		 FROM predictions ORDER BY date DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list predictions")
	}
	defer rows.Close()

	var out []model.Prediction
	for rows.Next() {
		var p model.Prediction
		var summary *string
		if err := rows.Scan(
			&p.Date, &p.Sentiment.Positive, &p.Sentiment.Negative, &p.Sentiment.Neutral,
			&p.Sentiment.Mixed, &p.Sentiment.Total, &p.Prediction, &p.Confidence,
			&summary, &p.CreatedAt, &p.FirstLoggedAt, &p.IsLocked,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction")
		}
		if summary != nil {
			p.TopEventsSummary = *summary
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list predictions iterate")
}

func (s *PostgresStore) AppendPredictionAudit(ctx context.Context, a *model.PredictionAudit) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO prediction_audit (
			id, date, sentiment_positive, sentiment_negative, sentiment_neutral,
			sentiment_mixed, total_events, prediction, confidence,
			action, reason, created_at, workflow_run_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.Date, a.Sentiment.Positive, a.Sentiment.Negative, a.Sentiment.Neutral,
		a.Sentiment.Mixed, a.Sentiment.Total, string(a.Prediction), string(a.Confidence),
		string(a.Action), nullString(a.Reason), a.CreatedAt.UTC(), nullString(a.WorkflowRunID),
	)
	return eris.Wrapf(err, "postgres: append prediction audit %s", a.Date)
}

func (s *PostgresStore) ListPredictionAudit(ctx context.Context, date string) ([]model.PredictionAudit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, date, sentiment_positive, sentiment_negative, sentiment_neutral,
			sentiment_mixed, total_events, prediction, confidence,
			action, reason, created_at, workflow_run_id
		 FROM prediction_audit WHERE date = $1 ORDER BY created_at, id`,
		date,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prediction audit")
	}
	defer rows.Close()

	var out []model.PredictionAudit
	for rows.Next() {
		var a model.PredictionAudit
		var reason, runID *string
		if err := rows.Scan(
			&a.ID, &a.Date, &a.Sentiment.Positive, &a.Sentiment.Negative,
			&a.Sentiment.Neutral, &a.Sentiment.Mixed, &a.Sentiment.Total,
			&a.Prediction, &a.Confidence, &a.Action, &reason, &a.CreatedAt, &runID,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction audit")
		}
		if reason != nil {
			a.Reason = *reason
		}
		if runID != nil {
			a.WorkflowRunID = *runID
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list prediction audit iterate")
}

// --- Workflow runs ---

func (s *PostgresStore) InsertWorkflowRun(ctx context.Context, run *model.WorkflowRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workflow_runs (
			id, workflow_name, run_date, started_at, status,
			run_count_today, is_duplicate_run, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.WorkflowName, run.RunDate, run.StartedAt.UTC(), string(run.Status),
		run.RunCountToday, run.IsDuplicateRun, nullString(run.Notes),
	)
	return eris.Wrapf(err, "postgres: insert workflow run %s", run.WorkflowName)
}

func (s *PostgresStore) CompleteWorkflowRun(ctx context.Context, id string, status model.RunStatus, notes string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE workflow_runs
		 SET completed_at = $1, status = $2, notes = COALESCE($3, notes)
		 WHERE id = $4`,
		time.Now().UTC(), string(status), nullString(notes), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete workflow run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("workflow run not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CountWorkflowRuns(ctx context.Context, name, runDate string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workflow_runs WHERE workflow_name = $1 AND run_date = $2`,
		name, runDate,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count workflow runs")
}

func (s *PostgresStore) ListWorkflowRuns(ctx context.Context, runDate string, limit int) ([]model.WorkflowRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, workflow_name, run_date, started_at, completed_at, status,
		run_count_today, is_duplicate_run, notes
	 FROM workflow_runs`
	args := []any{}
	if runDate != "" {
		query += ` WHERE run_date = $1 ORDER BY started_at DESC LIMIT $2`
		args = append(args, runDate, limit)
	} else {
		query += ` ORDER BY started_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list workflow runs")
	}
	defer rows.Close()

	var out []model.WorkflowRun
	for rows.Next() {
		var r model.WorkflowRun
		var notes *string
		if err := rows.Scan(
			&r.ID, &r.WorkflowName, &r.RunDate, &r.StartedAt, &r.CompletedAt,
			&r.Status, &r.RunCountToday, &r.IsDuplicateRun, &notes,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan workflow run")
		}
		if notes != nil {
			r.Notes = *notes
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list workflow runs iterate")
}

// --- Market data, outcomes, accuracy ---

func (s *PostgresStore) SaveMarketChanges(ctx context.Context, changes []model.MarketChange) error {
	for _, mc := range changes {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO market_data (date, symbol, symbol_name, change_pct)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (date, symbol) DO UPDATE SET
				symbol_name = EXCLUDED.symbol_name,
				change_pct = EXCLUDED.change_pct`,
			mc.Date, mc.Symbol, nullString(mc.SymbolName), mc.ChangePct,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: save market change %s/%s", mc.Date, mc.Symbol)
		}
	}
	return nil
}

func (s *PostgresStore) ListMarketChanges(ctx context.Context, date string) ([]model.MarketChange, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, symbol, symbol_name, change_pct FROM market_data WHERE date = $1 ORDER BY symbol`,
		date,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list market changes")
	}
	defer rows.Close()

	var out []model.MarketChange
	for rows.Next() {
		var mc model.MarketChange
		var name *string
		if err := rows.Scan(&mc.Date, &mc.Symbol, &name, &mc.ChangePct); err != nil {
			return nil, eris.Wrap(err, "postgres: scan market change")
		}
		if name != nil {
			mc.SymbolName = *name
		}
		out = append(out, mc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list market changes iterate")
}

func (s *PostgresStore) UpsertOutcome(ctx context.Context, o *model.Outcome) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO outcomes (date, symbol, change_pct, direction, magnitude, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (date, symbol) DO UPDATE SET
			change_pct = EXCLUDED.change_pct,
			direction = EXCLUDED.direction,
			magnitude = EXCLUDED.magnitude,
			created_at = EXCLUDED.created_at`,
		o.Date, o.Symbol, o.ChangePct, string(o.Direction), string(o.Magnitude), o.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert outcome %s/%s", o.Date, o.Symbol)
}

func (s *PostgresStore) JoinedSeries(ctx context.Context, symbol string, days int) ([]SeriesPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.date, p.sentiment_positive - p.sentiment_negative, o.change_pct
		 FROM predictions p
		 JOIN outcomes o ON p.date = o.date
		 WHERE o.symbol = $1
		 ORDER BY p.date DESC
		 LIMIT $2`,
		symbol, days,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: joined series")
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var pt SeriesPoint
		if err := rows.Scan(&pt.Date, &pt.NetSentiment, &pt.ChangePct); err != nil {
			return nil, eris.Wrap(err, "postgres: scan series point")
		}
		out = append(out, pt)
	}
	return out, eris.Wrap(rows.Err(), "postgres: joined series iterate")
}

func (s *PostgresStore) UpsertAccuracy(ctx context.Context, rec *model.AccuracyRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accuracy (date, symbol, prediction, outcome, correct, correlation, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (date, symbol) DO UPDATE SET
			prediction = EXCLUDED.prediction,
			outcome = EXCLUDED.outcome,
			correct = EXCLUDED.correct,
			correlation = EXCLUDED.correlation,
			created_at = EXCLUDED.created_at`,
		rec.Date, rec.Symbol, string(rec.Prediction), string(rec.Outcome),
		rec.Correct, rec.Correlation, rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert accuracy %s/%s", rec.Date, rec.Symbol)
}

func (s *PostgresStore) ListAccuracy(ctx context.Context, date string) ([]model.AccuracyRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, symbol, prediction, outcome, correct, correlation, created_at
		 FROM accuracy WHERE date = $1 ORDER BY symbol`,
		date,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list accuracy %s", date)
	}
	defer rows.Close()

	var out []model.AccuracyRecord
	for rows.Next() {
		var rec model.AccuracyRecord
		if err := rows.Scan(
			&rec.Date, &rec.Symbol, &rec.Prediction, &rec.Outcome,
			&rec.Correct, &rec.Correlation, &rec.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan accuracy")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list accuracy iterate")
}

func (s *PostgresStore) UpsertDailyCorrelation(ctx context.Context, dc *model.DailyCorrelation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO daily_correlation (
			date, dominant_sentiment, sentiment_strength, market_outcome,
			nasdaq_change_pct, nvda_change_pct, sp500_change_pct,
			prediction_correct, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (date) DO UPDATE SET
			dominant_sentiment = EXCLUDED.dominant_sentiment,
			sentiment_strength = EXCLUDED.sentiment_strength,
			market_outcome = EXCLUDED.market_outcome,
			nasdaq_change_pct = EXCLUDED.nasdaq_change_pct,
			nvda_change_pct = EXCLUDED.nvda_change_pct,
			sp500_change_pct = EXCLUDED.sp500_change_pct,
			prediction_correct = EXCLUDED.prediction_correct,
			created_at = EXCLUDED.created_at`,
		dc.Date, string(dc.DominantSentiment), dc.SentimentStrength, string(dc.MarketOutcome),
		dc.NasdaqChangePct, dc.NvdaChangePct, dc.SP500ChangePct,
		dc.Correct, dc.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert daily correlation %s", dc.Date)
}

func (s *PostgresStore) ListDailyCorrelations(ctx context.Context, limit int) ([]model.DailyCorrelation, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.pool.Query(ctx,
		`SELECT date, dominant_sentiment, sentiment_strength, market_outcome,
			nasdaq_change_pct, nvda_change_pct, sp500_change_pct,
			prediction_correct, created_at
		 FROM daily_correlation ORDER BY date DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list daily correlations")
	}
	defer rows.Close()

	var out []model.DailyCorrelation
	for rows.Next() {
		var dc model.DailyCorrelation
		if err := rows.Scan(
			&dc.Date, &dc.DominantSentiment, &dc.SentimentStrength, &dc.MarketOutcome,
			&dc.NasdaqChangePct, &dc.NvdaChangePct, &dc.SP500ChangePct,
			&dc.Correct, &dc.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan daily correlation")
		}
		out = append(out, dc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list daily correlations iterate")
}

func (s *PostgresStore) AccuracySummary(ctx context.Context, days int) (*model.AccuracySummary, error) {
	if days <= 0 {
		days = 30
	}
	var sum model.AccuracySummary
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN prediction_correct THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN NOT prediction_correct THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN prediction_correct IS NULL THEN 1 ELSE 0 END), 0)
		 FROM daily_correlation
		 WHERE date >= to_char(CURRENT_DATE - $1::int, 'YYYY-MM-DD')`,
		days,
	).Scan(&sum.Total, &sum.Correct, &sum.Wrong, &sum.Ambiguous)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: accuracy summary")
	}
	if decided := sum.Correct + sum.Wrong; decided > 0 {
		sum.Accuracy = float64(sum.Correct) / float64(decided)
	}
	return &sum, nil
}

// --- helpers ---

func collectPgEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		ev, err := scanPgEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, eris.Wrap(rows.Err(), "iterate events")
}

func scanPgEvent(rows pgx.Rows) (*model.Event, error) {
	var ev model.Event
	var sourceID, sourceURL, content, summary, eventType, analysis, sentiment *string
	var companies, products, people []byte

	err := rows.Scan(
		&ev.ID, &ev.Source, &sourceID, &sourceURL, &ev.Title, &content, &summary,
		&eventType, &companies, &products, &people, &ev.PublishedAt, &ev.CollectedAt,
		&ev.SignificanceScore, &sentiment, &analysis, &ev.IsDuplicate, &ev.IsSemanticDuplicate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "scan event")
	}

	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	assign(&ev.SourceID, sourceID)
	assign(&ev.SourceURL, sourceURL)
	assign(&ev.Content, content)
	assign(&ev.Summary, summary)
	assign(&ev.Analysis, analysis)
	if eventType != nil {
		ev.EventType = model.EventType(*eventType)
	}
	if sentiment != nil {
		ev.Sentiment = model.Sentiment(*sentiment)
	}
	for _, pair := range []struct {
		raw  []byte
		dest *[]string
	}{
		{companies, &ev.Companies},
		{products, &ev.Products},
		{people, &ev.People},
	} {
		if len(pair.raw) > 0 {
			if err := json.Unmarshal(pair.raw, pair.dest); err != nil {
				return nil, eris.Wrap(err, "unmarshal entity list")
			}
		}
	}
	return &ev, nil
}
