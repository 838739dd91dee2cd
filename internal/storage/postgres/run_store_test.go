package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
	"github.com/JakeFAU/moses-scraper/internal/store"
)

var runCols = []string{
	"id", "run_key", "status", "started_at", "completed_at",
	"total_modules", "successful_modules", "failed_modules", "skipped_modules",
}

func newRunStore(t *testing.T) (*RunStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	rs, err := NewRunStore(mock)
	require.NoError(t, err)
	return rs, mock
}

func TestRunStoreCreate(t *testing.T) {
	t.Parallel()

	rs, mock := newRunStore(t)
	key := uuid.MustParse("0190c1d2-0000-7000-8000-000000000001")
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO scraping_run`).
		WithArgs("in_progress", 12, key).
		WillReturnRows(pgxmock.NewRows([]string{"id", "started_at"}).AddRow(int64(5), started))

	run, err := rs.Create(context.Background(), key, 12)
	require.NoError(t, err)
	require.Equal(t, int64(5), run.ID)
	require.Equal(t, key, run.Key)
	require.Equal(t, store.RunInProgress, run.Status)
	require.Equal(t, started, run.StartedAt)
	require.Equal(t, 12, run.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreFinishExactlyOnce(t *testing.T) {
	t.Parallel()

	rs, mock := newRunStore(t)
	tally := scraper.Tally{Completed: 10, Successful: 7, Failed: 2, Skipped: 1}

	mock.ExpectExec(`UPDATE scraping_run\s+SET status = \$2`).
		WithArgs(int64(5), "completed", 7, 2, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE scraping_run\s+SET status = \$2`).
		WithArgs(int64(5), "failed", 7, 2, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, rs.Finish(context.Background(), 5, store.RunCompleted, tally))
	err := rs.Finish(context.Background(), 5, store.RunFailed, tally)
	require.ErrorIs(t, err, store.ErrRunNotActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreFinishRejectsNonTerminalStatus(t *testing.T) {
	t.Parallel()

	rs, mock := newRunStore(t)
	err := rs.Finish(context.Background(), 5, store.RunInProgress, scraper.Tally{})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreUpdateCounts(t *testing.T) {
	t.Parallel()

	rs, mock := newRunStore(t)
	mock.ExpectExec(`UPDATE scraping_run\s+SET successful_modules`).
		WithArgs(int64(5), 3, 1, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE scraping_run\s+SET successful_modules`).
		WithArgs(int64(6), 0, 0, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, rs.UpdateCounts(context.Background(), 5, scraper.Tally{Completed: 4, Successful: 3, Failed: 1}))
	require.ErrorIs(t, rs.UpdateCounts(context.Background(), 6, scraper.Tally{}), store.ErrRunNotActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreGet(t *testing.T) {
	t.Parallel()

	rs, mock := newRunStore(t)
	key := uuid.New()
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	completed := started.Add(time.Hour)

	mock.ExpectQuery(`SELECT .* FROM scraping_run WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(runCols).AddRow(int64(5), key, "completed", started, &completed, 10, 7, 2, 1))
	mock.ExpectQuery(`SELECT .* FROM scraping_run WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	run, err := rs.Get(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, store.RunCompleted, run.Status)
	require.Equal(t, key, run.Key)
	require.NotNil(t, run.CompletedAt)
	require.Equal(t, completed, *run.CompletedAt)
	require.Equal(t, 10, run.Completed())

	_, err = rs.Get(context.Background(), 99)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreList(t *testing.T) {
	t.Parallel()

	rs, mock := newRunStore(t)
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	status := store.RunInProgress
	filter := "in_progress"

	mock.ExpectQuery(`SELECT .* FROM scraping_run\s+WHERE \(\$1::text IS NULL`).
		WithArgs(&filter, 20, 0).
		WillReturnRows(pgxmock.NewRows(runCols).
			AddRow(int64(8), uuid.New(), "in_progress", started, nil, 4, 1, 0, 0).
			AddRow(int64(7), uuid.New(), "in_progress", started, nil, 3, 0, 0, 0))

	runs, err := rs.List(context.Background(), &status, 20, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, int64(8), runs[0].ID)
	require.Nil(t, runs[0].CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreFindActive(t *testing.T) {
	t.Parallel()

	rs, mock := newRunStore(t)
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE status = 'in_progress'`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`WHERE status = 'in_progress'`).
		WillReturnRows(pgxmock.NewRows(runCols).AddRow(int64(3), uuid.New(), "in_progress", started, nil, 5, 0, 0, 0))

	active, err := rs.FindActive(context.Background())
	require.NoError(t, err)
	require.Nil(t, active)

	active, err = rs.FindActive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, int64(3), active.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateAppliesSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS scraping_run`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, Migrate(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}
