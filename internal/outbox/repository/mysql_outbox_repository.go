package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/allisson/heatpump-outbox/internal/database"
	"github.com/allisson/heatpump-outbox/internal/outbox/domain"
)

// MySQLOutboxRepository handles outbox entry persistence for MySQL 8.
type MySQLOutboxRepository struct {
	db *sql.DB
}

// NewMySQLOutboxRepository creates a new MySQLOutboxRepository.
func NewMySQLOutboxRepository(db *sql.DB) *MySQLOutboxRepository {
	return &MySQLOutboxRepository{db: db}
}

// Create inserts a pending entry and sets its ID.
func (r *MySQLOutboxRepository) Create(ctx context.Context, entry *domain.OutboxEntry) error {
	querier := database.GetTx(ctx, r.db)

	payload, err := encodePayload(entry.Payload)
	if err != nil {
		return err
	}

	query := `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, payload, status, created_at,
			      retry_count, max_retries, next_attempt_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := querier.ExecContext(ctx, query,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		payload,
		entry.Status,
		entry.CreatedAt.UTC(),
		entry.RetryCount,
		entry.MaxRetries,
		entry.NextAttemptAt.UTC(),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

// ClaimPending locks up to limit claimable pending entries and stamps them with
// claimToken. Must run inside a transaction.
func (r *MySQLOutboxRepository) ClaimPending(
	ctx context.Context,
	claimToken string,
	now time.Time,
	limit int,
	lease time.Duration,
) ([]*domain.OutboxEntry, error) {
	if !database.InTx(ctx) {
		return nil, errClaimOutsideTx
	}
	querier := database.GetTx(ctx, r.db)
	now = now.UTC()

	query := `SELECT ` + entryColumns + `
			  FROM outbox
			  WHERE status = ?
			    AND next_attempt_at <= ?
			    AND (claim_token IS NULL OR claimed_at < ?)
			  ORDER BY id ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, domain.StatusPending, now, now.Add(-lease), limit)
	if err != nil {
		return nil, err
	}
	entries, err := scanEntries(rows)
	if err != nil || len(entries) == 0 {
		return entries, err
	}

	ids := entryIDs(entries)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+2)
	args = append(args, claimToken, now)
	for _, id := range ids {
		args = append(args, id)
	}

	update := `UPDATE outbox SET claim_token = ?, claimed_at = ? WHERE id IN (` + placeholders + `)`
	if _, err := querier.ExecContext(ctx, update, args...); err != nil {
		return nil, err
	}

	stampClaim(entries, claimToken, now)
	return entries, nil
}

// MarkPublished moves a pending entry held by claimToken to published.
func (r *MySQLOutboxRepository) MarkPublished(
	ctx context.Context,
	id int64,
	claimToken string,
	publishedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox
			  SET status = ?, published_at = ?, claim_token = NULL, claimed_at = NULL
			  WHERE id = ? AND status = ? AND claim_token = ?`

	result, err := querier.ExecContext(ctx, query,
		domain.StatusPublished, publishedAt.UTC(), id, domain.StatusPending, claimToken)
	if err != nil {
		return err
	}
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrStaleClaim
	}
	return nil
}

// MarkConfirmed moves a published entry to confirmed; false when it was not published.
func (r *MySQLOutboxRepository) MarkConfirmed(ctx context.Context, id int64, confirmedAt time.Time) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox SET status = ?, confirmed_at = ? WHERE id = ? AND status = ?`

	result, err := querier.ExecContext(ctx, query,
		domain.StatusConfirmed, confirmedAt.UTC(), id, domain.StatusPublished)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

// MarkFailed moves a non-terminal entry to failed; false when it was already terminal.
func (r *MySQLOutboxRepository) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox
			  SET status = ?, error_message = ?, claim_token = NULL, claimed_at = NULL
			  WHERE id = ? AND status IN (?, ?)`

	result, err := querier.ExecContext(ctx, query,
		domain.StatusFailed, message, id, domain.StatusPending, domain.StatusPublished)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

// IncrementRetry records a failed attempt of a pending entry held by claimToken,
// releases the claim and defers the next attempt to nextAttemptAt. When the new
// count reaches max_retries the same statement marks the entry failed with
// failureMessage. It must run inside a transaction so the row lock taken by the
// update covers the read of the result. Returns domain.ErrStaleClaim when the
// claim was lost.
func (r *MySQLOutboxRepository) IncrementRetry(
	ctx context.Context,
	id int64,
	claimToken string,
	nextAttemptAt time.Time,
	failureMessage string,
) (int, bool, error) {
	if !database.InTx(ctx) {
		return 0, false, errRetryOutsideTx
	}
	querier := database.GetTx(ctx, r.db)

	// MySQL assigns left to right, so status and error_message are decided on the
	// retry_count before its increment.
	query := `UPDATE outbox
			  SET status = CASE WHEN retry_count + 1 >= max_retries THEN ? ELSE status END,
				  error_message = CASE WHEN retry_count + 1 >= max_retries THEN ? ELSE error_message END,
				  retry_count = retry_count + 1,
				  next_attempt_at = ?, claim_token = NULL, claimed_at = NULL
			  WHERE id = ? AND status = ? AND claim_token = ?`

	result, err := querier.ExecContext(ctx, query,
		domain.StatusFailed, failureMessage, nextAttemptAt.UTC(), id, domain.StatusPending, claimToken)
	if err != nil {
		return 0, false, err
	}
	ok, err := affectedOne(result)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, domain.ErrStaleClaim
	}

	var (
		retryCount int
		status     string
	)
	err = querier.QueryRowContext(ctx, `SELECT retry_count, status FROM outbox WHERE id = ?`, id).
		Scan(&retryCount, &status)
	if err != nil {
		return 0, false, err
	}
	return retryCount, domain.Status(status) == domain.StatusFailed, nil
}

// Get returns an entry by id.
func (r *MySQLOutboxRepository) Get(ctx context.Context, id int64) (*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + ` FROM outbox WHERE id = ?`

	entry, err := scanEntry(querier.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOutboxEntryNotFound
	}
	return entry, err
}

// FindOpenForDevice returns the newest unsuperseded published entry of the device
// published at or after since, or nil.
func (r *MySQLOutboxRepository) FindOpenForDevice(
	ctx context.Context,
	deviceID string,
	since time.Time,
) (*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + `
			  FROM outbox o
			  WHERE o.aggregate_id = ?
			    AND o.status = ?
			    AND o.published_at >= ?
			    AND NOT EXISTS (
			        SELECT 1 FROM outbox n
			        WHERE n.aggregate_id = o.aggregate_id AND n.id > o.id AND n.status IN (?, ?)
			    )
			  ORDER BY o.published_at DESC, o.id DESC
			  LIMIT 1`

	entry, err := scanEntry(querier.QueryRowContext(ctx, query,
		deviceID, domain.StatusPublished, since.UTC(), domain.StatusPublished, domain.StatusConfirmed))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// FailExpiredConfirmations moves published entries published before cutoff to failed.
func (r *MySQLOutboxRepository) FailExpiredConfirmations(
	ctx context.Context,
	cutoff time.Time,
	message string,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox SET status = ?, error_message = ? WHERE status = ? AND published_at < ?`

	result, err := querier.ExecContext(ctx, query,
		domain.StatusFailed, message, domain.StatusPublished, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListByDevice returns the most recent entries of a device, newest first.
func (r *MySQLOutboxRepository) ListByDevice(
	ctx context.Context,
	deviceID string,
	limit int,
) ([]*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + `
			  FROM outbox
			  WHERE aggregate_id = ?
			  ORDER BY created_at DESC, id DESC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// CountByStatus returns the number of entries in each status.
func (r *MySQLOutboxRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, countByStatusQuery)
	if err != nil {
		return nil, err
	}
	return scanStatusCounts(rows)
}
