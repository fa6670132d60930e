package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/budget"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeOutboxRepository is an in-memory OutboxRepository for processor tests
type fakeOutboxRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*shared.OutboxEntry
}

func newFakeOutboxRepository() *fakeOutboxRepository {
	return &fakeOutboxRepository{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *fakeOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *fakeOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusPending && len(result) < limit {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *fakeOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusFailed && e.NextRetryAt != nil && !e.NextRetryAt.After(before) && len(result) < limit {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *fakeOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dead []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusDead {
			dead = append(dead, e)
		}
	}
	total := int64(len(dead))
	start := (page - 1) * pageSize
	if start >= len(dead) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(dead) {
		end = len(dead)
	}
	return dead[start:end], total, nil
}

func (r *fakeOutboxRepository) FindByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.AggregateID == aggregateID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *fakeOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, id := range ids {
		if e, ok := r.entries[id]; ok {
			e.Status = shared.OutboxStatusProcessing
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *fakeOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = entry
	return nil
}

func (r *fakeOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, e := range r.entries {
		if e.Status == shared.OutboxStatusSent && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *fakeOutboxRepository) get(id uuid.UUID) *shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id]
}

var _ shared.OutboxRepository = (*fakeOutboxRepository)(nil)

// failingEventBus rejects every publish
type failingEventBus struct{}

func (b *failingEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	return errors.New("bus unavailable")
}
func (b *failingEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {}
func (b *failingEventBus) Unsubscribe(handler shared.EventHandler)                     {}
func (b *failingEventBus) Start(ctx context.Context) error                             { return nil }
func (b *failingEventBus) Stop(ctx context.Context) error                              { return nil }

func newDeductedEntry(t *testing.T, serializer *EventSerializer) (*shared.OutboxEntry, *budget.BudgetDeductedEvent) {
	t.Helper()
	tenantID := uuid.New()
	event := &budget.BudgetDeductedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(budget.EventTypeBudgetDeducted, "Budget", uuid.New(), tenantID),
		BudgetID:        uuid.New(),
		DocumentType:    "PURCHASE_ORDER",
		DocumentID:      "PO-2026-0007",
		Amount:          decimal.NewFromInt(100),
		ItemCount:       1,
	}
	payload, err := serializer.Serialize(event)
	require.NoError(t, err)
	return shared.NewOutboxEntry(tenantID, event, payload), event
}

func TestOutboxProcessor_ProcessBatch_DeliversPendingEntry(t *testing.T) {
	serializer := NewLedgerEventSerializer()
	repo := newFakeOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler(budget.EventTypeBudgetDeducted)
	bus.Subscribe(handler)

	entry, event := newDeductedEntry(t, serializer)
	require.NoError(t, repo.Save(context.Background(), entry))

	p := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), zap.NewNop())
	p.processBatch(context.Background())

	stored := repo.get(entry.ID)
	require.NotNil(t, stored)
	assert.Equal(t, shared.OutboxStatusSent, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)

	handled := handler.getHandled()
	require.Len(t, handled, 1)
	assert.Equal(t, event.EventID(), handled[0].EventID())
}

func TestOutboxProcessor_ProcessBatch_PublishFailureSchedulesRetry(t *testing.T) {
	serializer := NewLedgerEventSerializer()
	repo := newFakeOutboxRepository()

	entry, _ := newDeductedEntry(t, serializer)
	require.NoError(t, repo.Save(context.Background(), entry))

	p := NewOutboxProcessor(repo, &failingEventBus{}, serializer, DefaultOutboxProcessorConfig(), zap.NewNop())
	p.processBatch(context.Background())

	stored := repo.get(entry.ID)
	require.NotNil(t, stored)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.NotNil(t, stored.NextRetryAt)
	assert.Equal(t, "bus unavailable", stored.LastError)
}

func TestOutboxProcessor_ProcessBatch_DeserializeFailureExhaustsRetries(t *testing.T) {
	serializer := NewLedgerEventSerializer()
	repo := newFakeOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())

	entry, _ := newDeductedEntry(t, serializer)
	entry.EventType = "budget.unregistered"
	entry.MaxRetries = 1
	require.NoError(t, repo.Save(context.Background(), entry))

	p := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), zap.NewNop())
	p.processBatch(context.Background())

	stored := repo.get(entry.ID)
	require.NotNil(t, stored)
	assert.Equal(t, shared.OutboxStatusDead, stored.Status)
}

func TestOutboxProcessor_ProcessBatch_RetriesFailedEntryAfterBackoff(t *testing.T) {
	serializer := NewLedgerEventSerializer()
	repo := newFakeOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler(budget.EventTypeBudgetDeducted)
	bus.Subscribe(handler)

	entry, _ := newDeductedEntry(t, serializer)
	entry.Status = shared.OutboxStatusFailed
	entry.RetryCount = 1
	retryAt := time.Now().Add(-time.Second)
	entry.NextRetryAt = &retryAt
	require.NoError(t, repo.Save(context.Background(), entry))

	p := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), zap.NewNop())
	p.processBatch(context.Background())

	stored := repo.get(entry.ID)
	require.NotNil(t, stored)
	assert.Equal(t, shared.OutboxStatusSent, stored.Status)
	assert.Len(t, handler.getHandled(), 1)
}

func TestOutboxProcessor_Cleanup_RemovesOldSentEntries(t *testing.T) {
	serializer := NewLedgerEventSerializer()
	repo := newFakeOutboxRepository()

	entry, _ := newDeductedEntry(t, serializer)
	entry.Status = shared.OutboxStatusSent
	old := time.Now().Add(-30 * 24 * time.Hour)
	entry.ProcessedAt = &old
	require.NoError(t, repo.Save(context.Background(), entry))

	p := NewOutboxProcessor(repo, NewInMemoryEventBus(zap.NewNop()), serializer, DefaultOutboxProcessorConfig(), zap.NewNop())
	p.cleanup(context.Background())

	assert.Nil(t, repo.get(entry.ID))
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	serializer := NewLedgerEventSerializer()
	repo := newFakeOutboxRepository()
	cfg := DefaultOutboxProcessorConfig()
	cfg.PollInterval = 10 * time.Millisecond

	p := NewOutboxProcessor(repo, NewInMemoryEventBus(zap.NewNop()), serializer, cfg, zap.NewNop())

	require.NoError(t, p.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
}
