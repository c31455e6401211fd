package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sector-pulse/pulse-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS events (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	source                TEXT NOT NULL,
	source_id             TEXT,
	source_url            TEXT,
	title                 TEXT NOT NULL,
	content               TEXT,
	summary               TEXT,
	event_type            TEXT,
	companies             TEXT,
	products              TEXT,
	people                TEXT,
	published_at          DATETIME,
	collected_at          DATETIME NOT NULL,
	day                   TEXT NOT NULL,
	significance_score    REAL,
	sentiment             TEXT,
	analysis              TEXT,
	is_duplicate          INTEGER NOT NULL DEFAULT 0,
	is_semantic_duplicate INTEGER NOT NULL DEFAULT 0,
	UNIQUE(source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_events_collected_at ON events(collected_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_day ON events(day);
CREATE INDEX IF NOT EXISTS idx_events_significance ON events(significance_score DESC);

CREATE TABLE IF NOT EXISTS daily_sentiment (
	date           TEXT PRIMARY KEY,
	positive       INTEGER NOT NULL DEFAULT 0,
	negative       INTEGER NOT NULL DEFAULT 0,
	neutral        INTEGER NOT NULL DEFAULT 0,
	mixed          INTEGER NOT NULL DEFAULT 0,
	total_analyzed INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS predictions (
	date               TEXT PRIMARY KEY,
	sentiment_positive REAL NOT NULL DEFAULT 0,
	sentiment_negative REAL NOT NULL DEFAULT 0,
	sentiment_neutral  REAL NOT NULL DEFAULT 0,
	sentiment_mixed    REAL NOT NULL DEFAULT 0,
	total_events       INTEGER NOT NULL DEFAULT 0,
	prediction         TEXT NOT NULL,
	confidence         TEXT NOT NULL,
	top_events_summary TEXT,
	created_at         DATETIME NOT NULL,
	first_logged_at    DATETIME NOT NULL,
	is_locked          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS prediction_audit (
	id                 TEXT PRIMARY KEY,
	date               TEXT NOT NULL,
	sentiment_positive REAL NOT NULL DEFAULT 0,
	sentiment_negative REAL NOT NULL DEFAULT 0,
	sentiment_neutral  REAL NOT NULL DEFAULT 0,
	sentiment_mixed    REAL NOT NULL DEFAULT 0,
	total_events       INTEGER NOT NULL DEFAULT 0,
	prediction         TEXT NOT NULL,
	confidence         TEXT NOT NULL,
	action             TEXT NOT NULL,
	reason             TEXT,
	created_at         DATETIME NOT NULL,
	workflow_run_id    TEXT
);

CREATE INDEX IF NOT EXISTS idx_prediction_audit_date ON prediction_audit(date);

CREATE TABLE IF NOT EXISTS workflow_runs (
	id               TEXT PRIMARY KEY,
	workflow_name    TEXT NOT NULL,
	run_date         TEXT NOT NULL,
	started_at       DATETIME NOT NULL,
	completed_at     DATETIME,
	status           TEXT NOT NULL DEFAULT 'started',
	run_count_today  INTEGER NOT NULL DEFAULT 1,
	is_duplicate_run INTEGER NOT NULL DEFAULT 0,
	notes            TEXT
);

CREATE INDEX IF NOT EXISTS idx_workflow_runs_name_date ON workflow_runs(workflow_name, run_date);

CREATE TABLE IF NOT EXISTS market_data (
	date        TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	symbol_name TEXT,
	change_pct  REAL,
	PRIMARY KEY (date, symbol)
);

CREATE TABLE IF NOT EXISTS outcomes (
	date       TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	change_pct REAL NOT NULL,
	direction  TEXT NOT NULL,
	magnitude  TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (date, symbol)
);

CREATE TABLE IF NOT EXISTS accuracy (
	date        TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	prediction  TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	correct     INTEGER NOT NULL,
	correlation REAL NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	PRIMARY KEY (date, symbol)
);

CREATE TABLE IF NOT EXISTS daily_correlation (
	date               TEXT PRIMARY KEY,
	dominant_sentiment TEXT NOT NULL,
	sentiment_strength REAL NOT NULL DEFAULT 0,
	market_outcome     TEXT NOT NULL,
	nasdaq_change_pct  REAL,
	nvda_change_pct    REAL,
	sp500_change_pct   REAL,
	prediction_correct INTEGER,
	created_at         DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Events ---

// SaveEvent inserts an event, skipping exact (source, source_id)
// re-collections. Returns the new row id, or 0 when the event already
// existed. The day key is materialized at insert; the driver binds
// timestamps in a form SQLite's date functions cannot parse, so per-day
// queries never derive it from the timestamp columns.
func (s *SQLiteStore) SaveEvent(ctx context.Context, ev *model.Event) (int64, error) {
	companies, products, people, err := marshalEntities(ev)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (
			source, source_id, source_url, title, content, summary, event_type,
			companies, products, people, published_at, collected_at, day,
			significance_score, sentiment, analysis, is_duplicate, is_semantic_duplicate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Source), ev.SourceID, nullString(ev.SourceURL), ev.Title,
		nullString(ev.Content), nullString(ev.Summary), nullString(string(ev.EventType)),
		companies, products, people,
		nullTime(ev.PublishedAt), ev.CollectedAt.UTC(), ev.Day(),
		nullFloat(ev.SignificanceScore), nullString(string(ev.Sentiment)), nullString(ev.Analysis),
		boolToInt(ev.IsDuplicate), boolToInt(ev.IsSemanticDuplicate),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert event")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert event rows affected")
	}
	if n == 0 {
		return 0, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert event id")
	}
	ev.ID = id
	return id, nil
}

func (s *SQLiteStore) SaveEvents(ctx context.Context, events []*model.Event) (model.SaveStats, error) {
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

const sqliteEventColumns = `id, source, source_id, source_url, title, content, summary,
	event_type, companies, products, people, published_at, collected_at,
	significance_score, sentiment, analysis, is_duplicate, is_semantic_duplicate`

func (s *SQLiteStore) ListEventsByDay(ctx context.Context, date string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteEventColumns+` FROM events
		 WHERE day = ?
		 ORDER BY id`,
		date,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events by day")
	}
	return collectEvents(rows)
}

func (s *SQLiteStore) ListEventsSince(ctx context.Context, since time.Time) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteEventColumns+` FROM events
		 WHERE collected_at >= ?
		 ORDER BY id`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events since")
	}
	return collectEvents(rows)
}

// ListUnscoredEvents returns events collected since the cutoff that have no
// significance score yet and are not lexical duplicates. These are the only
// candidates for semantic dedup: flagging them before scoring avoids paying
// analysis cost on events that will be discarded.
func (s *SQLiteStore) ListUnscoredEvents(ctx context.Context, since time.Time) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteEventColumns+` FROM events
		 WHERE significance_score IS NULL
		   AND collected_at >= ?
		   AND is_duplicate = 0
		 ORDER BY id`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unscored events")
	}
	return collectEvents(rows)
}

func (s *SQLiteStore) MarkLexicalDuplicates(ctx context.Context, ids []int64) (int, error) {
	return s.markFlag(ctx, "is_duplicate", ids)
}

func (s *SQLiteStore) MarkSemanticDuplicates(ctx context.Context, ids []int64) (int, error) {
	return s.markFlag(ctx, "is_semantic_duplicate", ids)
}

func (s *SQLiteStore) markFlag(ctx context.Context, column string, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET `+column+` = 1 WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: mark %s", column)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) UpdateEventAnalysis(ctx context.Context, id int64, score float64, sentiment model.Sentiment, analysis string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET significance_score = ?, sentiment = ?, analysis = ? WHERE id = ?`,
		score, string(sentiment), analysis, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update event analysis %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("event not found: %d", id)
	}
	return nil
}

func (s *SQLiteStore) EventStats(ctx context.Context) (*model.EventStats, error) {
	stats := &model.EventStats{BySource: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&stats.TotalEvents); err != nil {
		return nil, eris.Wrap(err, "sqlite: count events")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM events GROUP BY source ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: events by source")
	}
	defer rows.Close()
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source count")
		}
		stats.BySource[src] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: events by source iterate")
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE collected_at >= ?`, cutoff,
	).Scan(&stats.Last24h); err != nil {
		return nil, eris.Wrap(err, "sqlite: count last 24h")
	}

	return stats, nil
}

// --- Daily sentiment ---

// CountSentiments tallies sentiment for one date over events with neither
// duplicate flag set and a non-null sentiment.
func (s *SQLiteStore) CountSentiments(ctx context.Context, date string) (*model.SentimentCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sentiment, COUNT(*) FROM events
		 WHERE day = ?
		   AND sentiment IS NOT NULL
		   AND is_duplicate = 0
		   AND is_semantic_duplicate = 0
		 GROUP BY sentiment`,
		date,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count sentiments")
	}
	defer rows.Close()

	counts := &model.SentimentCounts{Date: date}
	for rows.Next() {
		var sentiment string
		var n int
		if err := rows.Scan(&sentiment, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sentiment count")
		}
		counts.Add(model.Sentiment(sentiment), n)
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count sentiments iterate")
}

func (s *SQLiteStore) ReplaceDailySentiment(ctx context.Context, counts *model.SentimentCounts) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_sentiment (date, positive, negative, neutral, mixed, total_analyzed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
			positive = excluded.positive,
			negative = excluded.negative,
			neutral = excluded.neutral,
			mixed = excluded.mixed,
			total_analyzed = excluded.total_analyzed,
			created_at = excluded.created_at`,
		counts.Date, counts.Positive, counts.Negative, counts.Neutral, counts.Mixed,
		counts.Total, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: replace daily sentiment")
}

func (s *SQLiteStore) GetDailySentiment(ctx context.Context, date string) (*model.SentimentCounts, error) {
	var c model.SentimentCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT date, positive, negative, neutral, mixed, total_analyzed
		 FROM daily_sentiment WHERE date = ?`,
		date,
	).Scan(&c.Date, &c.Positive, &c.Negative, &c.Neutral, &c.Mixed, &c.Total)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get daily sentiment")
	}
	return &c, nil
}

// --- Predictions ---

func (s *SQLiteStore) GetPrediction(ctx context.Context, date string) (*model.Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT date, sentiment_positive, sentiment_negative, sentiment_neutral,
			sentiment_mixed, total_events, prediction, confidence,
			top_events_summary, created_at, first_logged_at, is_locked
		 FROM predictions WHERE date = ?`,
		date,
	)
	p, err := scanPrediction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// UpsertPrediction inserts or overwrites the row for p.Date. The update arm
// carries a WHERE is_locked = 0 guard so a row locked by a concurrent
// writer between the caller's lock check and this write is never mutated.
// first_logged_at is only ever written by the insert arm.
func (s *SQLiteStore) UpsertPrediction(ctx context.Context, p *model.Prediction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions (
			date, sentiment_positive, sentiment_negative, sentiment_neutral,
			sentiment_mixed, total_events, prediction, confidence,
			top_events_summary, created_at, first_logged_at, is_locked
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			sentiment_positive = excluded.sentiment_positive,
			sentiment_negative = excluded.sentiment_negative,
			sentiment_neutral = excluded.sentiment_neutral,
			sentiment_mixed = excluded.sentiment_mixed,
			total_events = excluded.total_events,
			prediction = excluded.prediction,
			confidence = excluded.confidence,
			top_events_summary = excluded.top_events_summary,
			created_at = excluded.created_at,
			is_locked = excluded.is_locked
		WHERE predictions.is_locked = 0`,
		p.Date, p.Sentiment.Positive, p.Sentiment.Negative, p.Sentiment.Neutral,
		p.Sentiment.Mixed, p.Sentiment.Total, string(p.Prediction), string(p.Confidence),
		nullString(p.TopEventsSummary), p.CreatedAt.UTC(), p.FirstLoggedAt.UTC(),
		boolToInt(p.IsLocked),
	)
	return eris.Wrapf(err, "sqlite: upsert prediction %s", p.Date)
}

func (s *SQLiteStore) ListPredictions(ctx context.Context, limit int) ([]model.Prediction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, sentiment_positive, sentiment_negative, sentiment_neutral,
			sentiment_mixed, total_events, prediction, confidence,
			top_events_summary, created_at, first_logged_at, is_locked
		 FROM predictions ORDER BY date DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list predictions")
	}
	defer rows.Close()

	var out []model.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list predictions iterate")
}

func (s *SQLiteStore) AppendPredictionAudit(ctx context.Context, a *model.PredictionAudit) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prediction_audit (
			id, date, sentiment_positive, sentiment_negative, sentiment_neutral,
			sentiment_mixed, total_events, prediction, confidence,
			action, reason, created_at, workflow_run_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Date, a.Sentiment.Positive, a.Sentiment.Negative, a.Sentiment.Neutral,
		a.Sentiment.Mixed, a.Sentiment.Total, string(a.Prediction), string(a.Confidence),
		string(a.Action), nullString(a.Reason), a.CreatedAt.UTC(), nullString(a.WorkflowRunID),
	)
	return eris.Wrapf(err, "sqlite: append prediction audit %s", a.Date)
}

func (s *SQLiteStore) ListPredictionAudit(ctx context.Context, date string) ([]model.PredictionAudit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, sentiment_positive, sentiment_negative, sentiment_neutral,
			sentiment_mixed, total_events, prediction, confidence,
			action, reason, created_at, workflow_run_id
		 FROM prediction_audit WHERE date = ? ORDER BY created_at, id`,
		date,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prediction audit")
	}
	defer rows.Close()

	var out []model.PredictionAudit
	for rows.Next() {
		var a model.PredictionAudit
		var reason, runID sql.NullString
		if err := rows.Scan(
			&a.ID, &a.Date, &a.Sentiment.Positive, &a.Sentiment.Negative,
			&a.Sentiment.Neutral, &a.Sentiment.Mixed, &a.Sentiment.Total,
			&a.Prediction, &a.Confidence, &a.Action, &reason, &a.CreatedAt, &runID,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prediction audit")
		}
		a.Reason = reason.String
		a.WorkflowRunID = runID.String
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list prediction audit iterate")
}

// --- Workflow runs ---

func (s *SQLiteStore) InsertWorkflowRun(ctx context.Context, run *model.WorkflowRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_runs (
			id, workflow_name, run_date, started_at, status,
			run_count_today, is_duplicate_run, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowName, run.RunDate, run.StartedAt.UTC(), string(run.Status),
		run.RunCountToday, boolToInt(run.IsDuplicateRun), nullString(run.Notes),
	)
	return eris.Wrapf(err, "sqlite: insert workflow run %s", run.WorkflowName)
}

func (s *SQLiteStore) CompleteWorkflowRun(ctx context.Context, id string, status model.RunStatus, notes string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflow_runs
		 SET completed_at = ?, status = ?, notes = COALESCE(?, notes)
		 WHERE id = ?`,
		time.Now().UTC(), string(status), nullString(notes), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete workflow run %s", id)
	}
	return checkRowsAffected(res, "workflow run", id)
}

func (s *SQLiteStore) CountWorkflowRuns(ctx context.Context, name, runDate string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workflow_runs WHERE workflow_name = ? AND run_date = ?`,
		name, runDate,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count workflow runs")
}

func (s *SQLiteStore) ListWorkflowRuns(ctx context.Context, runDate string, limit int) ([]model.WorkflowRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, workflow_name, run_date, started_at, completed_at, status,
		run_count_today, is_duplicate_run, notes
	 FROM workflow_runs`
	var args []any
	if runDate != "" {
		query += ` WHERE run_date = ?`
		args = append(args, runDate)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list workflow runs")
	}
	defer rows.Close()

	var out []model.WorkflowRun
	for rows.Next() {
		var r model.WorkflowRun
		var completed sql.NullTime
		var notes sql.NullString
		if err := rows.Scan(
			&r.ID, &r.WorkflowName, &r.RunDate, &r.StartedAt, &completed,
			&r.Status, &r.RunCountToday, &r.IsDuplicateRun, &notes,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan workflow run")
		}
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		r.Notes = notes.String
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list workflow runs iterate")
}

// --- Market data, outcomes, accuracy ---

func (s *SQLiteStore) SaveMarketChanges(ctx context.Context, changes []model.MarketChange) error {
	for _, mc := range changes {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO market_data (date, symbol, symbol_name, change_pct)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(date, symbol) DO UPDATE SET
				symbol_name = excluded.symbol_name,
				change_pct = excluded.change_pct`,
			mc.Date, mc.Symbol, nullString(mc.SymbolName), nullFloat(mc.ChangePct),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: save market change %s/%s", mc.Date, mc.Symbol)
		}
	}
	return nil
}

func (s *SQLiteStore) ListMarketChanges(ctx context.Context, date string) ([]model.MarketChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, symbol, symbol_name, change_pct FROM market_data WHERE date = ? ORDER BY symbol`,
		date,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list market changes")
	}
	defer rows.Close()

	var out []model.MarketChange
	for rows.Next() {
		var mc model.MarketChange
		var name sql.NullString
		var change sql.NullFloat64
		if err := rows.Scan(&mc.Date, &mc.Symbol, &name, &change); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan market change")
		}
		mc.SymbolName = name.String
		if change.Valid {
			v := change.Float64
			mc.ChangePct = &v
		}
		out = append(out, mc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list market changes iterate")
}

func (s *SQLiteStore) UpsertOutcome(ctx context.Context, o *model.Outcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (date, symbol, change_pct, direction, magnitude, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date, symbol) DO UPDATE SET
			change_pct = excluded.change_pct,
			direction = excluded.direction,
			magnitude = excluded.magnitude,
			created_at = excluded.created_at`,
		o.Date, o.Symbol, o.ChangePct, string(o.Direction), string(o.Magnitude), o.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert outcome %s/%s", o.Date, o.Symbol)
}

func (s *SQLiteStore) JoinedSeries(ctx context.Context, symbol string, days int) ([]SeriesPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.date, p.sentiment_positive - p.sentiment_negative, o.change_pct
		 FROM predictions p
		 JOIN outcomes o ON p.date = o.date
		 WHERE o.symbol = ?
		 ORDER BY p.date DESC
		 LIMIT ?`,
		symbol, days,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: joined series")
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var pt SeriesPoint
		if err := rows.Scan(&pt.Date, &pt.NetSentiment, &pt.ChangePct); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan series point")
		}
		out = append(out, pt)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: joined series iterate")
}

func (s *SQLiteStore) UpsertAccuracy(ctx context.Context, rec *model.AccuracyRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accuracy (date, symbol, prediction, outcome, correct, correlation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date, symbol) DO UPDATE SET
			prediction = excluded.prediction,
			outcome = excluded.outcome,
			correct = excluded.correct,
			correlation = excluded.correlation,
			created_at = excluded.created_at`,
		rec.Date, rec.Symbol, string(rec.Prediction), string(rec.Outcome),
		boolToInt(rec.Correct), rec.Correlation, rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert accuracy %s/%s", rec.Date, rec.Symbol)
}

func (s *SQLiteStore) ListAccuracy(ctx context.Context, date string) ([]model.AccuracyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, symbol, prediction, outcome, correct, correlation, created_at
		 FROM accuracy WHERE date = ? ORDER BY symbol`,
		date,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list accuracy %s", date)
	}
	defer rows.Close()

	var out []model.AccuracyRecord
	for rows.Next() {
		var rec model.AccuracyRecord
		var correct int
		if err := rows.Scan(
			&rec.Date, &rec.Symbol, &rec.Prediction, &rec.Outcome,
			&correct, &rec.Correlation, &rec.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan accuracy")
		}
		rec.Correct = correct != 0
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list accuracy iterate")
}

func (s *SQLiteStore) UpsertDailyCorrelation(ctx context.Context, dc *model.DailyCorrelation) error {
	var correct any
	if dc.Correct != nil {
		correct = boolToInt(*dc.Correct)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_correlation (
			date, dominant_sentiment, sentiment_strength, market_outcome,
			nasdaq_change_pct, nvda_change_pct, sp500_change_pct,
			prediction_correct, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			dominant_sentiment = excluded.dominant_sentiment,
			sentiment_strength = excluded.sentiment_strength,
			market_outcome = excluded.market_outcome,
			nasdaq_change_pct = excluded.nasdaq_change_pct,
			nvda_change_pct = excluded.nvda_change_pct,
			sp500_change_pct = excluded.sp500_change_pct,
			prediction_correct = excluded.prediction_correct,
			created_at = excluded.created_at`,
		dc.Date, string(dc.DominantSentiment), dc.SentimentStrength, string(dc.MarketOutcome),
		nullFloat(dc.NasdaqChangePct), nullFloat(dc.NvdaChangePct), nullFloat(dc.SP500ChangePct),
		correct, dc.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert daily correlation %s", dc.Date)
}

func (s *SQLiteStore) ListDailyCorrelations(ctx context.Context, limit int) ([]model.DailyCorrelation, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, dominant_sentiment, sentiment_strength, market_outcome,
			nasdaq_change_pct, nvda_change_pct, sp500_change_pct,
			prediction_correct, created_at
		 FROM daily_correlation ORDER BY date DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list daily correlations")
	}
	defer rows.Close()

	var out []model.DailyCorrelation
	for rows.Next() {
		var dc model.DailyCorrelation
		var nasdaq, nvda, sp500 sql.NullFloat64
		var correct sql.NullInt64
		if err := rows.Scan(
			&dc.Date, &dc.DominantSentiment, &dc.SentimentStrength, &dc.MarketOutcome,
			&nasdaq, &nvda, &sp500, &correct, &dc.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan daily correlation")
		}
		dc.NasdaqChangePct = floatPtr(nasdaq)
		dc.NvdaChangePct = floatPtr(nvda)
		dc.SP500ChangePct = floatPtr(sp500)
		if correct.Valid {
			b := correct.Int64 != 0
			dc.Correct = &b
		}
		out = append(out, dc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list daily correlations iterate")
}

func (s *SQLiteStore) AccuracySummary(ctx context.Context, days int) (*model.AccuracySummary, error) {
	if days <= 0 {
		days = 30
	}
	var sum model.AccuracySummary
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN prediction_correct = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN prediction_correct = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN prediction_correct IS NULL THEN 1 ELSE 0 END), 0)
		 FROM daily_correlation
		 WHERE date >= date('now', '-' || ? || ' days')`,
		days,
	).Scan(&sum.Total, &sum.Correct, &sum.Wrong, &sum.Ambiguous)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: accuracy summary")
	}
	if decided := sum.Correct + sum.Wrong; decided > 0 {
		sum.Accuracy = float64(sum.Correct) / float64(decided)
	}
	return &sum, nil
}

// --- helpers ---

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPrediction(row scannable) (*model.Prediction, error) {
	var p model.Prediction
	var summary sql.NullString
	err := row.Scan(
		&p.Date, &p.Sentiment.Positive, &p.Sentiment.Negative, &p.Sentiment.Neutral,
		&p.Sentiment.Mixed, &p.Sentiment.Total, &p.Prediction, &p.Confidence,
		&summary, &p.CreatedAt, &p.FirstLoggedAt, &p.IsLocked,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan prediction")
	}
	p.TopEventsSummary = summary.String
	return &p, nil
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, eris.Wrap(rows.Err(), "iterate events")
}

func scanEvent(row scannable) (*model.Event, error) {
	var ev model.Event
	var sourceID, sourceURL, content, summary, eventType, analysis, sentiment sql.NullString
	var companies, products, people sql.NullString
	var published sql.NullTime
	var score sql.NullFloat64

	err := row.Scan(
		&ev.ID, &ev.Source, &sourceID, &sourceURL, &ev.Title, &content, &summary,
		&eventType, &companies, &products, &people, &published, &ev.CollectedAt,
		&score, &sentiment, &analysis, &ev.IsDuplicate, &ev.IsSemanticDuplicate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "scan event")
	}

	ev.SourceID = sourceID.String
	ev.SourceURL = sourceURL.String
	ev.Content = content.String
	ev.Summary = summary.String
	ev.EventType = model.EventType(eventType.String)
	ev.Analysis = analysis.String
	ev.Sentiment = model.Sentiment(sentiment.String)
	if published.Valid {
		t := published.Time
		ev.PublishedAt = &t
	}
	if score.Valid {
		v := score.Float64
		ev.SignificanceScore = &v
	}
	for _, pair := range []struct {
		raw  sql.NullString
		dest *[]string
	}{
		{companies, &ev.Companies},
		{products, &ev.Products},
		{people, &ev.People},
	} {
		if pair.raw.Valid && pair.raw.String != "" {
			if err := json.Unmarshal([]byte(pair.raw.String), pair.dest); err != nil {
				return nil, eris.Wrap(err, "unmarshal entity list")
			}
		}
	}
	return &ev, nil
}

func marshalEntities(ev *model.Event) (companies, products, people any, err error) {
	marshal := func(list []string) (any, error) {
		if len(list) == 0 {
			return nil, nil
		}
		b, err := json.Marshal(list)
		if err != nil {
			return nil, eris.Wrap(err, "marshal entity list")
		}
		return string(b), nil
	}
	if companies, err = marshal(ev.Companies); err != nil {
		return nil, nil, nil, err
	}
	if products, err = marshal(ev.Products); err != nil {
		return nil, nil, nil, err
	}
	if people, err = marshal(ev.People); err != nil {
		return nil, nil, nil, err
	}
	return companies, products, people, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
