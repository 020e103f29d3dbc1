package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/allisson/heatpump-outbox/internal/database"
	"github.com/allisson/heatpump-outbox/internal/outbox/domain"
)

// PostgreSQLOutboxRepository handles outbox entry persistence for PostgreSQL.
//
// Every transition is a single UPDATE guarded by the source status, so concurrent
// writers can never move an entry backwards or out of a terminal state.
type PostgreSQLOutboxRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxRepository creates a new PostgreSQLOutboxRepository.
func NewPostgreSQLOutboxRepository(db *sql.DB) *PostgreSQLOutboxRepository {
	return &PostgreSQLOutboxRepository{db: db}
}

// Create inserts a pending entry and sets its ID. Call it inside the transaction
// that writes the settings change.
func (r *PostgreSQLOutboxRepository) Create(ctx context.Context, entry *domain.OutboxEntry) error {
	querier := database.GetTx(ctx, r.db)

	payload, err := encodePayload(entry.Payload)
	if err != nil {
		return err
	}

	query := `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, payload, status, created_at,
			      retry_count, max_retries, next_attempt_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING id`

	return querier.QueryRowContext(ctx, query,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		payload,
		entry.Status,
		entry.CreatedAt.UTC(),
		entry.RetryCount,
		entry.MaxRetries,
		entry.NextAttemptAt.UTC(),
	).Scan(&entry.ID)
}

// ClaimPending locks up to limit claimable pending entries, oldest first, and stamps
// them with claimToken. An entry is claimable when its retry delay has elapsed and
// it is unclaimed or its previous claim is older than lease. Must run inside a transaction.
func (r *PostgreSQLOutboxRepository) ClaimPending(
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
			  WHERE status = $1
			    AND next_attempt_at <= $2
			    AND (claim_token IS NULL OR claimed_at < $3)
			  ORDER BY id ASC
			  LIMIT $4
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, domain.StatusPending, now, now.Add(-lease), limit)
	if err != nil {
		return nil, err
	}
	entries, err := scanEntries(rows)
	if err != nil || len(entries) == 0 {
		return entries, err
	}

	update := `UPDATE outbox SET claim_token = $1, claimed_at = $2 WHERE id = ANY($3)`
	if _, err := querier.ExecContext(ctx, update, claimToken, now, pq.Array(entryIDs(entries))); err != nil {
		return nil, err
	}

	stampClaim(entries, claimToken, now)
	return entries, nil
}

// MarkPublished moves a pending entry held by claimToken to published.
// It returns domain.ErrStaleClaim when the entry is no longer held by that claim.
func (r *PostgreSQLOutboxRepository) MarkPublished(
	ctx context.Context,
	id int64,
	claimToken string,
	publishedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox
			  SET status = $1, published_at = $2, claim_token = NULL, claimed_at = NULL
			  WHERE id = $3 AND status = $4 AND claim_token = $5`

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

// MarkConfirmed moves a published entry to confirmed. It reports false when the
// entry was not published, which makes repeated confirmations a no-op.
func (r *PostgreSQLOutboxRepository) MarkConfirmed(
	ctx context.Context,
	id int64,
	confirmedAt time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox SET status = $1, confirmed_at = $2 WHERE id = $3 AND status = $4`

	result, err := querier.ExecContext(ctx, query,
		domain.StatusConfirmed, confirmedAt.UTC(), id, domain.StatusPublished)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

// MarkFailed moves a non-terminal entry to failed. It reports false when the
// entry was already terminal.
func (r *PostgreSQLOutboxRepository) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox
			  SET status = $1, error_message = $2, claim_token = NULL, claimed_at = NULL
			  WHERE id = $3 AND status IN ($4, $5)`

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
// failureMessage. Returns domain.ErrStaleClaim when the claim was lost.
func (r *PostgreSQLOutboxRepository) IncrementRetry(
	ctx context.Context,
	id int64,
	claimToken string,
	nextAttemptAt time.Time,
	failureMessage string,
) (int, bool, error) {
	querier := database.GetTx(ctx, r.db)

	// SET expressions read the row as it was before the update.
	query := `UPDATE outbox
			  SET retry_count = retry_count + 1,
				  status = CASE WHEN retry_count + 1 >= max_retries THEN $1 ELSE status END,
				  error_message = CASE WHEN retry_count + 1 >= max_retries THEN $2 ELSE error_message END,
				  next_attempt_at = $3, claim_token = NULL, claimed_at = NULL
			  WHERE id = $4 AND status = $5 AND claim_token = $6
			  RETURNING retry_count, status`

	var (
		retryCount int
		status     string
	)
	err := querier.QueryRowContext(ctx, query,
		domain.StatusFailed, failureMessage, nextAttemptAt.UTC(), id, domain.StatusPending, claimToken,
	).Scan(&retryCount, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, domain.ErrStaleClaim
	}
	if err != nil {
		return 0, false, err
	}
	return retryCount, domain.Status(status) == domain.StatusFailed, nil
}

// Get returns an entry by id.
func (r *PostgreSQLOutboxRepository) Get(ctx context.Context, id int64) (*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + ` FROM outbox WHERE id = $1`

	entry, err := scanEntry(querier.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOutboxEntryNotFound
	}
	return entry, err
}

// FindOpenForDevice returns the newest published entry of the device published at
// or after since, unless a newer entry of the same device has already been
// published or confirmed. It returns nil when there is no such entry.
func (r *PostgreSQLOutboxRepository) FindOpenForDevice(
	ctx context.Context,
	deviceID string,
	since time.Time,
) (*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + `
			  FROM outbox o
			  WHERE o.aggregate_id = $1
			    AND o.status = $2
			    AND o.published_at >= $3
			    AND NOT EXISTS (
			        SELECT 1 FROM outbox n
			        WHERE n.aggregate_id = o.aggregate_id AND n.id > o.id AND n.status IN ($2, $4)
			    )
			  ORDER BY o.published_at DESC, o.id DESC
			  LIMIT 1`

	entry, err := scanEntry(querier.QueryRowContext(ctx, query,
		deviceID, domain.StatusPublished, since.UTC(), domain.StatusConfirmed))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// FailExpiredConfirmations moves every published entry published before cutoff
// to failed with message and returns how many entries moved.
func (r *PostgreSQLOutboxRepository) FailExpiredConfirmations(
	ctx context.Context,
	cutoff time.Time,
	message string,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox SET status = $1, error_message = $2 WHERE status = $3 AND published_at < $4`

	result, err := querier.ExecContext(ctx, query,
		domain.StatusFailed, message, domain.StatusPublished, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListByDevice returns the most recent entries of a device, newest first.
func (r *PostgreSQLOutboxRepository) ListByDevice(
	ctx context.Context,
	deviceID string,
	limit int,
) ([]*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + `
			  FROM outbox
			  WHERE aggregate_id = $1
			  ORDER BY created_at DESC, id DESC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// CountByStatus returns the number of entries in each status.
func (r *PostgreSQLOutboxRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, countByStatusQuery)
	if err != nil {
		return nil, err
	}
	return scanStatusCounts(rows)
}
