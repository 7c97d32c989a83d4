package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockpile-erp/stockpile-erp/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	items     map[int64]ItemState
	movements []Movement
	nextID    int64
	failOn    string
}

type memoryTx struct {
	repo    *memoryRepo
	items   map[int64]ItemState
	inserts []Movement
}

func newMemoryRepo(items ...ItemState) *memoryRepo {
	repo := &memoryRepo{items: make(map[int64]ItemState)}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

// WithTx serializes callers the way the row lock does in PostgreSQL and keeps
// writes invisible until commit.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged := make(map[int64]ItemState, len(r.items))
	for id, item := range r.items {
		staged[id] = item
	}
	tx := &memoryTx{repo: r, items: staged}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.items = tx.items
	r.movements = append(r.movements, tx.inserts...)
	return nil
}

func (r *memoryRepo) ListByItem(ctx context.Context, itemID int64, limit int) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Movement
	for i := len(r.movements) - 1; i >= 0; i-- {
		if r.movements[i].ItemID == itemID {
			result = append(result, r.movements[i])
		}
	}
	return result, nil
}

func (r *memoryRepo) ListByDateRange(ctx context.Context, from, to time.Time, limit int) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Movement
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if !m.CreatedAt.Before(from) && !m.CreatedAt.After(to) {
			result = append(result, m)
		}
	}
	return result, nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, itemID int64) (ItemState, error) {
	item, ok := tx.items[itemID]
	if !ok {
		return ItemState{}, shared.ErrNotFound
	}
	return item, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	if tx.repo.failOn == "insert" {
		return Movement{}, errors.New("storage unavailable")
	}
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	m.CreatedAt = time.Now().UTC()
	tx.inserts = append(tx.inserts, m)
	return m, nil
}

func (tx *memoryTx) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	if tx.repo.failOn == "update" {
		return errors.New("storage unavailable")
	}
	item := tx.items[itemID]
	item.Quantity = quantity
	tx.items[itemID] = item
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []ThresholdEvent
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, evt ThresholdEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, evt)
	return nil
}

func testItem() ItemState {
	return ItemState{ID: 1, SKU: "WID-001", Name: "Widget", Quantity: 10, MinStock: 5}
}

func record(t *testing.T, svc *Service, kind MovementKind, qty int) (Movement, error) {
	t.Helper()
	return svc.RecordMovement(context.Background(), MovementInput{ItemID: 1, Kind: kind, Quantity: qty, ActorID: 42})
}

func TestRecordMovementBalances(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc := NewService(repo, nil, nil, nil, nil, nil)

	m, err := record(t, svc, MovementIn, 5)
	require.NoError(t, err)
	require.Equal(t, 10, m.PreviousStock)
	require.Equal(t, 15, m.NewStock)

	m, err = record(t, svc, MovementOut, 7)
	require.NoError(t, err)
	require.Equal(t, 15, m.PreviousStock)
	require.Equal(t, 8, m.NewStock)

	m, err = record(t, svc, MovementAdjustment, 3)
	require.NoError(t, err)
	require.Equal(t, 8, m.PreviousStock)
	require.Equal(t, 3, m.NewStock)

	// Adjustments set the absolute balance; zero is a valid target.
	m, err = record(t, svc, MovementAdjustment, 0)
	require.NoError(t, err)
	require.Equal(t, 0, m.NewStock)
}

func TestRecordMovementInsufficientStock(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc := NewService(repo, nil, nil, nil, nil, nil)

	_, err := record(t, svc, MovementOut, 11)
	require.ErrorIs(t, err, ErrInsufficientStock)

	// Failed movements leave no trace.
	require.Equal(t, 10, repo.items[1].Quantity)
	require.Empty(t, repo.movements)
}

func TestRecordMovementPreconditions(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc := NewService(repo, nil, nil, nil, nil, nil)

	_, err := svc.RecordMovement(context.Background(), MovementInput{ItemID: 1, Kind: MovementIn, Quantity: 5})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = svc.RecordMovement(context.Background(), MovementInput{ItemID: 99, Kind: MovementIn, Quantity: 5, ActorID: 42})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = record(t, svc, MovementKind("TRANSFER"), 5)
	require.ErrorIs(t, err, ErrInvalidMovementKind)

	_, err = record(t, svc, MovementIn, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = record(t, svc, MovementOut, -3)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	require.Empty(t, repo.movements)
}

func TestRecordMovementAtomicity(t *testing.T) {
	repo := newMemoryRepo(testItem())
	repo.failOn = "update"
	svc := NewService(repo, nil, nil, nil, nil, nil)

	_, err := record(t, svc, MovementOut, 3)
	require.Error(t, err)
	require.Equal(t, 10, repo.items[1].Quantity)
	require.Empty(t, repo.movements, "movement must not be visible when the balance update fails")
}

func TestThresholdFiresOncePerCrossing(t *testing.T) {
	repo := newMemoryRepo(testItem())
	notifier := &recordingNotifier{}
	svc := NewService(repo, nil, nil, notifier, nil, nil)

	_, err := record(t, svc, MovementOut, 3) // 10 -> 7
	require.NoError(t, err)
	require.Empty(t, notifier.events)

	_, err = record(t, svc, MovementOut, 3) // 7 -> 4, crosses 5
	require.NoError(t, err)
	require.Len(t, notifier.events, 1)
	require.Equal(t, ThresholdLowStock, notifier.events[0].Class)
	require.Equal(t, 4, notifier.events[0].Quantity)
	require.Equal(t, 5, notifier.events[0].MinStock)
	require.Equal(t, "WID-001", notifier.events[0].SKU)

	_, err = record(t, svc, MovementOut, 2) // 4 -> 2, still low: no new event
	require.NoError(t, err)
	require.Len(t, notifier.events, 1)

	_, err = record(t, svc, MovementIn, 10) // 2 -> 12, recovery: no event
	require.NoError(t, err)
	require.Len(t, notifier.events, 1)

	_, err = record(t, svc, MovementAdjustment, 0) // 12 -> 0
	require.NoError(t, err)
	require.Len(t, notifier.events, 2)
	require.Equal(t, ThresholdOutOfStock, notifier.events[1].Class)
}

func TestLedgerScenario(t *testing.T) {
	repo := newMemoryRepo(testItem())
	notifier := &recordingNotifier{}
	svc := NewService(repo, nil, nil, notifier, nil, nil)

	m, err := record(t, svc, MovementOut, 3)
	require.NoError(t, err)
	require.Equal(t, 7, m.NewStock)
	require.Empty(t, notifier.events)

	m, err = record(t, svc, MovementOut, 3)
	require.NoError(t, err)
	require.Equal(t, 4, m.NewStock)
	require.Len(t, notifier.events, 1)
	require.Equal(t, ThresholdLowStock, notifier.events[0].Class)

	_, err = record(t, svc, MovementOut, 5)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, 4, repo.items[1].Quantity)

	m, err = record(t, svc, MovementAdjustment, 0)
	require.NoError(t, err)
	require.Equal(t, 0, m.NewStock)
	require.Len(t, notifier.events, 2)
	require.Equal(t, ThresholdOutOfStock, notifier.events[1].Class)
}

func TestNotifierFailureDoesNotFailMovement(t *testing.T) {
	repo := newMemoryRepo(testItem())
	notifier := &recordingNotifier{err: errors.New("queue down")}
	svc := NewService(repo, nil, nil, notifier, nil, nil)

	m, err := record(t, svc, MovementOut, 6) // crosses threshold
	require.NoError(t, err)
	require.Equal(t, 4, m.NewStock)
	require.Equal(t, 4, repo.items[1].Quantity)
	require.Len(t, repo.movements, 1)
}

func TestConcurrentIssuesNeverOversell(t *testing.T) {
	item := testItem()
	item.Quantity = 9 // q1 + q2 - 1
	repo := newMemoryRepo(item)
	svc := NewService(repo, nil, nil, nil, nil, nil)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, qty := range []int{5, 5} {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			_, err := record(t, svc, MovementOut, q)
			results <- err
		}(qty)
	}
	wg.Wait()
	close(results)

	var failures int
	for err := range results {
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientStock)
			failures++
		}
	}
	require.Equal(t, 1, failures, "exactly one of two competing issues must fail")
	require.Equal(t, 4, repo.items[1].Quantity)
	require.Len(t, repo.movements, 1)
}

func TestMovementQueriesAreStable(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc := NewService(repo, nil, nil, nil, nil, nil)

	for i := 0; i < 3; i++ {
		_, err := record(t, svc, MovementIn, 2)
		require.NoError(t, err)
	}

	first, err := svc.MovementsByItem(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.MovementsByItem(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 3)
	// Most recent first.
	require.True(t, first[0].ID > first[1].ID && first[1].ID > first[2].ID)

	_, err = svc.MovementsByDateRange(context.Background(), time.Now().Add(time.Hour), time.Now())
	require.Error(t, err)
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]struct{})}
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	full := scope + ":" + key
	if _, ok := m.keys[full]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[full] = struct{}{}
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, "stock:"+key)
	return nil
}

func TestIdempotencyKeyRejectsDoubleSubmission(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc := NewService(repo, nil, newMemoryIdempotency(), nil, nil, nil)

	input := MovementInput{ItemID: 1, Kind: MovementOut, Quantity: 2, ActorID: 42, IdempotencyKey: "req-1"}
	_, err := svc.RecordMovement(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.RecordMovement(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrDuplicate)
	require.Len(t, repo.movements, 1)
	require.Equal(t, 8, repo.items[1].Quantity)
}

func TestIdempotencyKeyReleasedOnFailure(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc := NewService(repo, nil, newMemoryIdempotency(), nil, nil, nil)

	input := MovementInput{ItemID: 1, Kind: MovementOut, Quantity: 20, ActorID: 42, IdempotencyKey: "req-2"}
	_, err := svc.RecordMovement(context.Background(), input)
	require.ErrorIs(t, err, ErrInsufficientStock)

	// The key is released, so a corrected retry with the same key succeeds.
	input.Quantity = 5
	m, err := svc.RecordMovement(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, 5, m.NewStock)
}

func TestReferenceMustBeUUID(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc := NewService(repo, nil, nil, nil, nil, nil)

	_, err := svc.RecordMovement(context.Background(), MovementInput{
		ItemID: 1, Kind: MovementIn, Quantity: 5, ActorID: 42, Reference: "PO-1234",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordMovement(context.Background(), MovementInput{
		ItemID: 1, Kind: MovementIn, Quantity: 5, ActorID: 42,
		Reference: "7d7c39a0-3c6c-4f2a-9e61-0f6fa348a1f5",
	})
	require.NoError(t, err)
}
