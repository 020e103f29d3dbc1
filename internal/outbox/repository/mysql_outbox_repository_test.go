package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/heatpump-outbox/internal/database"
	"github.com/allisson/heatpump-outbox/internal/outbox/domain"
)

func TestMySQLOutboxRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOutboxRepository(db)
	createdAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	entry := domain.NewSettingUpdateEntry("hp-1", map[string]any{"heatstop": 17}, 3)
	entry.CreatedAt = createdAt
	entry.NextAttemptAt = createdAt

	mock.ExpectExec(`INSERT INTO outbox (.+) VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?\)`).
		WithArgs(domain.AggregateTypeHeatpumpSetting, "hp-1", domain.EventTypeSettingUpdate,
			[]byte(`{"heatstop":17}`), "pending", createdAt, 0, 3, createdAt).
		WillReturnResult(sqlmock.NewResult(77, 1))

	err := repo.Create(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, int64(77), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLOutboxRepository_ClaimPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOutboxRepository(db)
	now := time.Date(2026, 5, 1, 10, 0, 30, 0, time.UTC)

	rows := sqlmock.NewRows(entryRowColumns)
	pendingRow(rows, 4, "hp-1", `{"mode":1}`, now)
	pendingRow(rows, 6, "hp-3", `{"mode":2}`, now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM outbox WHERE status = \? (.+) FOR UPDATE SKIP LOCKED`).
		WithArgs("pending", now, now.Add(-time.Minute), 5).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE outbox SET claim_token = \?, claimed_at = \? WHERE id IN \(\?, \?\)`).
		WithArgs("claim-2", now, int64(4), int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	entries, err := claimInTx(t, db, func(ctx context.Context) ([]*domain.OutboxEntry, error) {
		return repo.ClaimPending(ctx, "claim-2", now, 5, time.Minute)
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "claim-2", *entries[1].ClaimToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// retryInTx runs IncrementRetry inside a transaction, as the publisher does.
func retryInTx(t *testing.T, db *sql.DB, retry func(ctx context.Context) error) error {
	t.Helper()
	return database.NewTxManager(db).WithTx(context.Background(), retry)
}

func TestMySQLOutboxRepository_IncrementRetry(t *testing.T) {
	next := time.Date(2026, 5, 1, 10, 2, 0, 0, time.UTC)
	const message = "publish retries exhausted: broker unreachable"
	// Status is decided before retry_count is assigned.
	const retryUpdate = `UPDATE outbox SET status = CASE WHEN retry_count \+ 1 >= max_retries THEN \? ELSE status END, ` +
		`error_message = CASE WHEN retry_count \+ 1 >= max_retries THEN \? ELSE error_message END, ` +
		`retry_count = retry_count \+ 1`

	t.Run("Success_StillPending", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLOutboxRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(retryUpdate).
			WithArgs("failed", message, next, int64(3), "pending", "claim-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT retry_count, status FROM outbox WHERE id = \?`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"retry_count", "status"}).AddRow(2, "pending"))
		mock.ExpectCommit()

		var (
			count  int
			failed bool
		)
		err := retryInTx(t, db, func(ctx context.Context) error {
			var err error
			count, failed, err = repo.IncrementRetry(ctx, 3, "claim-1", next, message)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.False(t, failed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success_ExhaustedFailsInSameStatement", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLOutboxRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(retryUpdate).
			WithArgs("failed", message, next, int64(3), "pending", "claim-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT retry_count, status FROM outbox WHERE id = \?`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"retry_count", "status"}).AddRow(3, "failed"))
		mock.ExpectCommit()

		var (
			count  int
			failed bool
		)
		err := retryInTx(t, db, func(ctx context.Context) error {
			var err error
			count, failed, err = repo.IncrementRetry(ctx, 3, "claim-1", next, message)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.True(t, failed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_StaleClaim", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLOutboxRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE outbox SET status = CASE`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := retryInTx(t, db, func(ctx context.Context) error {
			_, _, err := repo.IncrementRetry(ctx, 3, "old-claim", time.Now(), message)
			return err
		})
		assert.ErrorIs(t, err, domain.ErrStaleClaim)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_OutsideTransaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLOutboxRepository(db)

		_, _, err := repo.IncrementRetry(context.Background(), 3, "claim-1", next, message)
		assert.ErrorIs(t, err, errRetryOutsideTx)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMySQLOutboxRepository_MarkPublished_StaleClaim(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOutboxRepository(db)

	mock.ExpectExec(`UPDATE outbox SET status = \?, published_at = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkPublished(context.Background(), 1, "old-claim", time.Now())
	assert.ErrorIs(t, err, domain.ErrStaleClaim)
}

func TestMySQLOutboxRepository_FindOpenForDevice(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOutboxRepository(db)
	since := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM outbox o (.+) NOT EXISTS`).
		WithArgs("hp-1", "published", since, "published", "confirmed").
		WillReturnRows(sqlmock.NewRows(entryRowColumns))

	entry, err := repo.FindOpenForDevice(context.Background(), "hp-1", since)
	assert.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLOutboxRepository_MarkConfirmedAndFailed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOutboxRepository(db)

	mock.ExpectExec(`UPDATE outbox SET status = \?, confirmed_at = \?`).
		WithArgs("confirmed", sqlmock.AnyArg(), int64(2), "published").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE outbox SET status = \?, error_message = \?`).
		WithArgs("failed", "publish retries exhausted", int64(3), "pending", "published").
		WillReturnResult(sqlmock.NewResult(0, 0))

	confirmed, err := repo.MarkConfirmed(context.Background(), 2, time.Now())
	require.NoError(t, err)
	assert.True(t, confirmed)

	failed, err := repo.MarkFailed(context.Background(), 3, "publish retries exhausted")
	require.NoError(t, err)
	assert.False(t, failed, "terminal entries are left untouched")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLOutboxRepository_Get_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOutboxRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM outbox WHERE id = \?`).WillReturnRows(sqlmock.NewRows(entryRowColumns))

	_, err := repo.Get(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrOutboxEntryNotFound)
}

func TestMySQLOutboxRepository_CountByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOutboxRepository(db)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM outbox GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("published", int64(2)))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[domain.StatusPublished])
	assert.Equal(t, int64(0), counts[domain.StatusPending])
	assert.NoError(t, mock.ExpectationsWereMet())
}
