// Package repository provides data persistence implementations for outbox entries.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/allisson/heatpump-outbox/internal/outbox/domain"
)

const entryColumns = `id, aggregate_type, aggregate_id, event_type, payload, status, created_at,
	published_at, confirmed_at, error_message, retry_count, max_retries,
	claim_token, claimed_at, next_attempt_at`

// errClaimOutsideTx is returned by ClaimPending without a transaction: the row
// locks taken by the claim query would be released before the claim is stamped.
var errClaimOutsideTx = errors.New("claim pending outbox entries requires a transaction")

// errRetryOutsideTx is returned by the MySQL IncrementRetry without a transaction:
// another replica could claim and change the row between the update and the read.
var errRetryOutsideTx = errors.New("increment outbox retry requires a transaction")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.OutboxEntry, error) {
	var (
		entry       domain.OutboxEntry
		payload     []byte
		publishedAt sql.NullTime
		confirmedAt sql.NullTime
		errorMsg    sql.NullString
		claimToken  sql.NullString
		claimedAt   sql.NullTime
	)

	err := row.Scan(
		&entry.ID,
		&entry.AggregateType,
		&entry.AggregateID,
		&entry.EventType,
		&payload,
		&entry.Status,
		&entry.CreatedAt,
		&publishedAt,
		&confirmedAt,
		&errorMsg,
		&entry.RetryCount,
		&entry.MaxRetries,
		&claimToken,
		&claimedAt,
		&entry.NextAttemptAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &entry.Payload); err != nil {
		return nil, fmt.Errorf("decode payload of outbox entry %d: %w", entry.ID, err)
	}

	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.NextAttemptAt = entry.NextAttemptAt.UTC()
	entry.PublishedAt = nullTime(publishedAt)
	entry.ConfirmedAt = nullTime(confirmedAt)
	entry.ClaimedAt = nullTime(claimedAt)
	if errorMsg.Valid {
		entry.ErrorMessage = &errorMsg.String
	}
	if claimToken.Valid {
		entry.ClaimToken = &claimToken.String
	}

	return &entry, nil
}

func scanEntries(rows *sql.Rows) ([]*domain.OutboxEntry, error) {
	defer rows.Close() //nolint:errcheck

	entries := make([]*domain.OutboxEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func encodePayload(payload map[string]any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode outbox payload: %w", err)
	}
	return encoded, nil
}

func entryIDs(entries []*domain.OutboxEntry) []int64 {
	ids := make([]int64, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	return ids
}

func stampClaim(entries []*domain.OutboxEntry, claimToken string, claimedAt time.Time) {
	for _, entry := range entries {
		token := claimToken
		at := claimedAt
		entry.ClaimToken = &token
		entry.ClaimedAt = &at
	}
}

func affectedOne(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const countByStatusQuery = `SELECT status, COUNT(*) FROM outbox GROUP BY status`

// scanStatusCounts reads countByStatusQuery rows. Statuses without entries are reported as zero.
func scanStatusCounts(rows *sql.Rows) (map[domain.Status]int64, error) {
	defer func() { _ = rows.Close() }()

	counts := map[domain.Status]int64{
		domain.StatusPending:   0,
		domain.StatusPublished: 0,
		domain.StatusConfirmed: 0,
		domain.StatusFailed:    0,
	}
	for rows.Next() {
		var (
			status domain.Status
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
