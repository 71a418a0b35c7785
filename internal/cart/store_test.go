package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/types"
)

func product(id, price string) Product {
	return Product{ID: id, Name: "asset " + id, Price: decimal.RequireFromString(price)}
}

func newTestStore(t *testing.T, slot Slot) *Store {
	t.Helper()
	store, err := NewStore(slot, nil, nil)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	store.Load(context.Background())
	return store
}

func ids(items []LineItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func equalIDs(t *testing.T, got []LineItem, want ...string) {
	t.Helper()
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("expected items %v, got %v", want, gotIDs)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("expected items %v, got %v", want, gotIDs)
		}
	}
}

func TestAddRemoveScenarioSurvivesReload(t *testing.T) {
	ctx := context.Background()
	slots := NewMemorySlots()
	store := newTestStore(t, slots.Slot("sess-1"))

	for _, p := range []Product{product("1", "19.99"), product("2", "29.99")} {
		if outcome, err := store.Add(ctx, p); err != nil || outcome != OutcomeApplied {
			t.Fatalf("Add(%s) = %s, %v", p.ID, outcome, err)
		}
	}
	if outcome, err := store.RemoveAt(ctx, 0); err != nil || outcome != OutcomeApplied {
		t.Fatalf("RemoveAt(0) = %s, %v", outcome, err)
	}

	snapshot := store.Snapshot()
	equalIDs(t, snapshot, "2")
	if !snapshot[0].Price.Equal(decimal.RequireFromString("29.99")) {
		t.Fatalf("unexpected price %s", snapshot[0].Price)
	}

	reloaded := newTestStore(t, slots.Slot("sess-1"))
	got := reloaded.Snapshot()
	equalIDs(t, got, "2")
	if !got[0].Price.Equal(snapshot[0].Price) || got[0].Name != snapshot[0].Name {
		t.Fatalf("reloaded item differs: %+v vs %+v", got[0], snapshot[0])
	}
	if !got[0].AddedAt.Equal(snapshot[0].AddedAt) {
		t.Fatalf("added_at not preserved: %v vs %v", got[0].AddedAt, snapshot[0].AddedAt)
	}
}

func TestPersistenceRoundTripAfterEveryMutation(t *testing.T) {
	ctx := context.Background()
	slots := NewMemorySlots()
	store := newTestStore(t, slots.Slot("sess"))

	steps := []func() error{
		func() error { _, err := store.Add(ctx, product("a", "1.00")); return err },
		func() error { _, err := store.Add(ctx, product("a", "1.00")); return err },
		func() error { _, err := store.Add(ctx, product("b", "2.50")); return err },
		func() error { _, err := store.RemoveAt(ctx, 1); return err },
		func() error { _, err := store.Add(ctx, product("c", "0")); return err },
		func() error { _, err := store.RemoveAt(ctx, 0); return err },
		func() error { return store.Clear(ctx) },
		func() error { _, err := store.Add(ctx, product("d", "3.10")); return err },
	}

	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		want := ids(store.Snapshot())
		reloaded := newTestStore(t, slots.Slot("sess"))
		equalIDs(t, reloaded.Snapshot(), want...)
	}
}

func TestDuplicateProductsAreIndependentLines(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemorySlots().Slot("s"))

	for i := 0; i < 3; i++ {
		if _, err := store.Add(ctx, product("same", "5")); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if store.Count() != 3 {
		t.Fatalf("expected 3 line items, got %d", store.Count())
	}
	if _, err := store.RemoveAt(ctx, 1); err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	if store.Count() != 2 {
		t.Fatalf("expected exactly one removal, got %d items", store.Count())
	}
}

func TestRemoveAtOutOfRangeIsIgnored(t *testing.T) {
	ctx := context.Background()
	slot := &countingSlot{Slot: NewMemorySlots().Slot("s")}
	store := newTestStore(t, slot)
	if _, err := store.Add(ctx, product("a", "1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	writes := slot.writes

	for _, index := range []int{-1, 1, 99} {
		outcome, err := store.RemoveAt(ctx, index)
		if err != nil {
			t.Fatalf("RemoveAt(%d) returned error %v", index, err)
		}
		if outcome != OutcomeIgnored {
			t.Fatalf("RemoveAt(%d) expected ignored, got %s", index, outcome)
		}
	}
	if slot.writes != writes {
		t.Fatalf("ignored removals should not write, writes went %d -> %d", writes, slot.writes)
	}
	equalIDs(t, store.Snapshot(), "a")
}

func TestAddRejectsInvalidProduct(t *testing.T) {
	store := newTestStore(t, NewMemorySlots().Slot("s"))

	_, err := store.Add(context.Background(), Product{ID: " ", Price: decimal.NewFromInt(-1)})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok || details["id"] == "" || details["price"] == "" {
		t.Fatalf("expected id and price details, got %#v", pkgerrors.As(err).Details())
	}
	if store.Count() != 0 {
		t.Fatalf("invalid product must not be added")
	}
}

func TestLoadDegradesToEmpty(t *testing.T) {
	cases := map[string]string{
		"not json":       "{{{",
		"wrong shape":    `{"id":"a"}`,
		"missing id":     `[{"name":"x","price":"1"}]`,
		"negative price": `[{"id":"a","price":"-2"}]`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			slots := NewMemorySlots()
			slots.Put("s", []byte(payload))
			store := newTestStore(t, slots.Slot("s"))
			if store.Count() != 0 {
				t.Fatalf("expected empty cart, got %d items", store.Count())
			}
		})
	}

	t.Run("read error", func(t *testing.T) {
		store := newTestStore(t, &failingSlot{readErr: errors.New("connection refused")})
		if store.Count() != 0 {
			t.Fatalf("expected empty cart")
		}
	})

	t.Run("null", func(t *testing.T) {
		slots := NewMemorySlots()
		slots.Put("s", []byte("null"))
		store := newTestStore(t, slots.Slot("s"))
		if store.Snapshot() == nil || store.Count() != 0 {
			t.Fatalf("expected empty non-nil snapshot")
		}
	})
}

func TestWriteFailureLeavesMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	slot := &failingSlot{readErr: ErrSlotEmpty}
	store := newTestStore(t, slot)

	slot.writeErr = errors.New("redis down")
	_, err := store.Add(ctx, product("a", "1"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if store.Count() != 0 {
		t.Fatalf("failed write must not change memory")
	}

	slot.writeErr = nil
	if _, err := store.Add(ctx, product("a", "1")); err != nil {
		t.Fatalf("Add after recovery: %v", err)
	}
	slot.writeErr = errors.New("redis down")
	if err := store.Clear(ctx); err == nil {
		t.Fatalf("expected clear to surface the write failure")
	}
	equalIDs(t, store.Snapshot(), "a")
}

func TestHoldQueuesMutationsUntilRelease(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemorySlots().Slot("s"))
	if _, err := store.Add(ctx, product("a", "1")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	release := store.Hold()
	if outcome, _ := store.Add(ctx, product("b", "2")); outcome != OutcomeQueued {
		t.Fatalf("expected queued add, got %s", outcome)
	}
	if outcome, _ := store.RemoveAt(ctx, 0); outcome != OutcomeQueued {
		t.Fatalf("expected queued remove, got %s", outcome)
	}
	equalIDs(t, store.Snapshot(), "a")
	if store.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", store.Pending())
	}

	release(ctx)
	equalIDs(t, store.Snapshot(), "b")
	if store.Pending() != 0 {
		t.Fatalf("queue should drain on release")
	}

	release(ctx)
	if outcome, _ := store.Add(ctx, product("c", "3")); outcome != OutcomeApplied {
		t.Fatalf("double release must not leave the store held, got %s", outcome)
	}
}

func TestClearBypassesHoldAndQueuedRemovalsBecomeNoOps(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemorySlots().Slot("s"))
	if _, err := store.Add(ctx, product("a", "1")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	release := store.Hold()
	store.RemoveAt(ctx, 0)
	store.Add(ctx, product("next", "4"))
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.Count() != 0 {
		t.Fatalf("clear should apply while held")
	}

	release(ctx)
	equalIDs(t, store.Snapshot(), "next")
}

func TestNestedHolds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemorySlots().Slot("s"))

	outer := store.Hold()
	inner := store.Hold()
	store.Add(ctx, product("a", "1"))

	inner(ctx)
	if store.Count() != 0 {
		t.Fatalf("outer hold should still queue")
	}
	outer(ctx)
	equalIDs(t, store.Snapshot(), "a")
}

func TestObserversSeeAppliedCounts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemorySlots().Slot("s"))

	var mu sync.Mutex
	var counts []int
	store.Subscribe(func(_ context.Context, count int) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, count)
	})
	store.Subscribe(nil)

	store.Add(ctx, product("a", "1"))
	store.Add(ctx, product("b", "1"))
	store.RemoveAt(ctx, 5)
	store.RemoveAt(ctx, 0)
	release := store.Hold()
	store.Add(ctx, product("c", "1"))
	release(ctx)
	store.Clear(ctx)

	want := []int{1, 2, 1, 2, 0}
	if len(counts) != len(want) {
		t.Fatalf("expected notifications %v, got %v", want, counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("expected notifications %v, got %v", want, counts)
		}
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemorySlots().Slot("s"))
	p := product("a", "1")
	p.Tags = types.StringList{"pbr"}
	store.Add(ctx, p)

	p.Tags[0] = "mutated-input"
	snapshot := store.Snapshot()
	snapshot[0].Tags[0] = "mutated-snapshot"
	snapshot[0].ID = "changed"

	again := store.Snapshot()
	if again[0].ID != "a" || again[0].Tags[0] != "pbr" {
		t.Fatalf("store state leaked: %+v", again[0])
	}
}

func TestConcurrentAddsAllPersist(t *testing.T) {
	ctx := context.Background()
	slots := NewMemorySlots()
	store := newTestStore(t, slots.Slot("s"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Add(ctx, product("a", "1"))
		}()
	}
	wg.Wait()

	if store.Count() != 20 {
		t.Fatalf("expected 20 items, got %d", store.Count())
	}
	if newTestStore(t, slots.Slot("s")).Count() != 20 {
		t.Fatalf("slot should hold all 20 items")
	}
}

func TestNewStoreRequiresSlot(t *testing.T) {
	if _, err := NewStore(nil, nil, nil); err == nil {
		t.Fatal("expected error without slot")
	}
}

type countingSlot struct {
	Slot
	writes int
}

func (c *countingSlot) Write(ctx context.Context, payload []byte) error {
	c.writes++
	return c.Slot.Write(ctx, payload)
}

type failingSlot struct {
	readErr  error
	writeErr error
	stored   []byte
}

func (f *failingSlot) Read(context.Context) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.stored, nil
}

func (f *failingSlot) Write(_ context.Context, payload []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.stored = payload
	return nil
}
