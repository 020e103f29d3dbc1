package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
)

// memoryOutboxRepository mirrors the SQL repositories' guarded transitions in memory
// so concurrent publishers can be exercised without a database.
type memoryOutboxRepository struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*outboxDomain.OutboxEntry
}

func newMemoryOutboxRepository() *memoryOutboxRepository {
	return &memoryOutboxRepository{entries: make(map[int64]*outboxDomain.OutboxEntry)}
}

func (r *memoryOutboxRepository) snapshot(id int64) outboxDomain.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.entries[id]
}

func (r *memoryOutboxRepository) Create(ctx context.Context, entry *outboxDomain.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	if entry.Status == "" {
		entry.Status = outboxDomain.StatusPending
	}
	stored := *entry
	r.entries[entry.ID] = &stored
	return nil
}

func (r *memoryOutboxRepository) ClaimPending(
	ctx context.Context,
	claimToken string,
	now time.Time,
	limit int,
	lease time.Duration,
) ([]*outboxDomain.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.entries))
	for id, e := range r.entries {
		if e.Status != outboxDomain.StatusPending || e.NextAttemptAt.After(now) {
			continue
		}
		if e.ClaimToken != nil && e.ClaimedAt != nil && !e.ClaimedAt.Before(now.Add(-lease)) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}

	claimed := make([]*outboxDomain.OutboxEntry, 0, len(ids))
	for _, id := range ids {
		e := r.entries[id]
		token := claimToken
		claimedAt := now
		e.ClaimToken = &token
		e.ClaimedAt = &claimedAt
		copied := *e
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (r *memoryOutboxRepository) MarkPublished(
	ctx context.Context,
	id int64,
	claimToken string,
	publishedAt time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != outboxDomain.StatusPending || e.ClaimToken == nil || *e.ClaimToken != claimToken {
		return outboxDomain.ErrStaleClaim
	}
	e.Status = outboxDomain.StatusPublished
	e.PublishedAt = &publishedAt
	e.ClaimToken = nil
	e.ClaimedAt = nil
	return nil
}

func (r *memoryOutboxRepository) MarkConfirmed(ctx context.Context, id int64, confirmedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != outboxDomain.StatusPublished {
		return false, nil
	}
	e.Status = outboxDomain.StatusConfirmed
	e.ConfirmedAt = &confirmedAt
	return true, nil
}

func (r *memoryOutboxRepository) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status.IsTerminal() {
		return false, nil
	}
	e.Status = outboxDomain.StatusFailed
	e.ErrorMessage = &message
	e.ClaimToken = nil
	e.ClaimedAt = nil
	return true, nil
}

func (r *memoryOutboxRepository) IncrementRetry(
	ctx context.Context,
	id int64,
	claimToken string,
	nextAttemptAt time.Time,
	failureMessage string,
) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Status != outboxDomain.StatusPending || e.ClaimToken == nil || *e.ClaimToken != claimToken {
		return 0, false, outboxDomain.ErrStaleClaim
	}
	e.RetryCount++
	e.NextAttemptAt = nextAttemptAt
	e.ClaimToken = nil
	e.ClaimedAt = nil
	if !e.RetriesExhausted(e.RetryCount) {
		return e.RetryCount, false, nil
	}
	msg := failureMessage
	e.Status = outboxDomain.StatusFailed
	e.ErrorMessage = &msg
	return e.RetryCount, true, nil
}

func (r *memoryOutboxRepository) Get(ctx context.Context, id int64) (*outboxDomain.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, outboxDomain.ErrOutboxEntryNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *memoryOutboxRepository) FindOpenForDevice(
	ctx context.Context,
	deviceID string,
	since time.Time,
) (*outboxDomain.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newest *outboxDomain.OutboxEntry
	for _, e := range r.entries {
		if e.AggregateID != deviceID {
			continue
		}
		if e.Status != outboxDomain.StatusPublished && e.Status != outboxDomain.StatusConfirmed {
			continue
		}
		if newest == nil || e.ID > newest.ID {
			newest = e
		}
	}
	if newest == nil || newest.Status != outboxDomain.StatusPublished {
		return nil, nil
	}
	if newest.PublishedAt == nil || newest.PublishedAt.Before(since) {
		return nil, nil
	}
	copied := *newest
	return &copied, nil
}

func (r *memoryOutboxRepository) FailExpiredConfirmations(
	ctx context.Context,
	cutoff time.Time,
	message string,
) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, e := range r.entries {
		if e.Status == outboxDomain.StatusPublished && e.PublishedAt != nil && e.PublishedAt.Before(cutoff) {
			msg := message
			e.Status = outboxDomain.StatusFailed
			e.ErrorMessage = &msg
			count++
		}
	}
	return count, nil
}

func (r *memoryOutboxRepository) ListByDevice(
	ctx context.Context,
	deviceID string,
	limit int,
) ([]*outboxDomain.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*outboxDomain.OutboxEntry
	for _, e := range r.entries {
		if e.AggregateID == deviceID {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryOutboxRepository) CountByStatus(ctx context.Context) (map[outboxDomain.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[outboxDomain.Status]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

// passthroughTxManager runs fn without a transaction.
type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// recordingPublisher counts publishes per entry and fails the configured entries.
type recordingPublisher struct {
	mu        sync.Mutex
	published map[int64]int
	failWith  map[int64]error
	delay     time.Duration
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{
		published: make(map[int64]int),
		failWith:  make(map[int64]error),
	}
}

func (p *recordingPublisher) Publish(ctx context.Context, cmd *outboxDomain.Command) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failWith[cmd.EntryID]; ok {
		return err
	}
	p.published[cmd.EntryID]++
	return nil
}

func (p *recordingPublisher) count(id int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published[id]
}

type fixedRetrySchedule time.Duration

func (f fixedRetrySchedule) Delay(attempt int) time.Duration {
	return time.Duration(f)
}
