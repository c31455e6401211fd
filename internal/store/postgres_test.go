package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sector-pulse/pulse-cli/internal/model"
)

// anyArgs returns n pgxmock.AnyArg matchers; pgxmock requires the expected
// argument count to equal the actual one even when values are irrelevant.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresSaveEventReturnsZeroOnConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()
	day := time.Date(2025, 11, 20, 7, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO events`).
		WithArgs(anyArgs(17)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	ev := testEvent("Nvidia beats earnings", "a-1", day)
	id, err := s.SaveEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(42), ev.ID)

	// ON CONFLICT DO NOTHING returns no row for a duplicate.
	mock.ExpectQuery(`INSERT INTO events`).WithArgs(anyArgs(17)...).WillReturnError(pgx.ErrNoRows)

	id, err = s.SaveEvent(ctx, testEvent("Nvidia beats earnings", "a-1", day))
	require.NoError(t, err)
	assert.Zero(t, id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertPredictionGuardsLockedRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()
	now := time.Date(2025, 11, 20, 21, 5, 0, 0, time.UTC)

	// The guard lives in the statement itself; a locked row upsert still
	// succeeds at the driver level with zero rows touched.
	mock.ExpectExec(`INSERT INTO predictions .+ WHERE predictions\.is_locked = FALSE`).
		WithArgs(anyArgs(12)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := s.UpsertPrediction(ctx, &model.Prediction{
		Date:          "2025-11-20",
		Prediction:    model.DirectionBullish,
		Confidence:    model.ConfidenceHigh,
		CreatedAt:     now,
		FirstLoggedAt: now,
		IsLocked:      true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkLexicalDuplicates(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE events SET is_duplicate = TRUE`).
		WithArgs([]int64{3, 5}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := s.MarkLexicalDuplicates(ctx, []int64{3, 5})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.MarkLexicalDuplicates(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountWorkflowRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM workflow_runs`).
		WithArgs("daily-pipeline", "2025-11-20").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := s.CountWorkflowRuns(ctx, "daily-pipeline", "2025-11-20")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetPredictionMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT .+ FROM predictions WHERE date = \$1`).
		WithArgs("2025-01-01").
		WillReturnError(pgx.ErrNoRows)

	p, err := s.GetPrediction(ctx, "2025-01-01")
	require.NoError(t, err)
	assert.Nil(t, p)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCompleteWorkflowRunNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE workflow_runs`).
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteWorkflowRun(ctx, "no-such-run", model.RunStatusCompleted, "")
	assert.ErrorContains(t, err, "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}
