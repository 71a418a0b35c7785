package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/logger"
	"github.com/angelmondragon/assetcart/pkg/metrics"
)

// Outcome reports what a mutation did.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	// OutcomeQueued means a submission holds the cart; the mutation replays on release.
	OutcomeQueued Outcome = "queued"
	// OutcomeIgnored marks a stale removal (index out of range).
	OutcomeIgnored Outcome = "ignored"
)

// Observer is told the new item count after every applied mutation.
type Observer func(ctx context.Context, count int)

type mutationKind string

const (
	mutationAdd    mutationKind = "add"
	mutationRemove mutationKind = "remove"
	mutationClear  mutationKind = "clear"
)

type pendingMutation struct {
	kind    mutationKind
	product Product
	index   int
}

// Store owns one shopper's cart. Every mutation is written to the slot before
// it becomes visible in memory, so a reload always reproduces the last
// successful mutation.
type Store struct {
	mu        sync.Mutex
	slot      Slot
	items     []LineItem
	observers []Observer
	holds     int
	pending   []pendingMutation

	logg    *logger.Logger
	metrics *metrics.CartMetrics
	now     func() time.Time
}

// NewStore builds an empty store over slot. Call Load to restore saved items.
func NewStore(slot Slot, logg *logger.Logger, m *metrics.CartMetrics) (*Store, error) {
	if slot == nil {
		return nil, fmt.Errorf("cart slot required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{
		slot:    slot,
		items:   []LineItem{},
		logg:    logg,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Load restores the cart from its slot. A missing, unreadable or malformed
// slot yields an empty cart; this never fails.
func (s *Store) Load(ctx context.Context) {
	items := s.readSlot(ctx)

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

func (s *Store) readSlot(ctx context.Context) []LineItem {
	payload, err := s.slot.Read(ctx)
	if errors.Is(err, ErrSlotEmpty) {
		return []LineItem{}
	}
	if err != nil {
		s.metrics.IncSlotFailure("read")
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart slot unreadable, starting empty")
		return []LineItem{}
	}

	items, err := decodeItems(payload)
	if err != nil {
		s.metrics.IncSlotFailure("decode")
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart slot malformed, starting empty")
		return []LineItem{}
	}
	return items
}

func decodeItems(payload []byte) ([]LineItem, error) {
	var items []LineItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, err
	}
	for i, item := range items {
		if err := item.Product.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	if items == nil {
		items = []LineItem{}
	}
	return items, nil
}

// Add appends product as a new line item and persists the cart.
func (s *Store) Add(ctx context.Context, product Product) (Outcome, error) {
	if err := product.Validate(); err != nil {
		return "", err
	}
	return s.mutate(ctx, pendingMutation{kind: mutationAdd, product: product.clone()})
}

// RemoveAt deletes the line item at index. Out-of-range indexes are ignored.
func (s *Store) RemoveAt(ctx context.Context, index int) (Outcome, error) {
	return s.mutate(ctx, pendingMutation{kind: mutationRemove, index: index})
}

// Clear empties the cart. It is not subject to Hold; the submission gateway
// calls it while holding.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	outcome, err := s.apply(ctx, pendingMutation{kind: mutationClear})
	count := len(s.items)
	observers := s.observersLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if outcome == OutcomeApplied {
		notify(ctx, observers, count)
	}
	return nil
}

func (s *Store) mutate(ctx context.Context, m pendingMutation) (Outcome, error) {
	s.mu.Lock()
	if s.holds > 0 {
		s.pending = append(s.pending, m)
		s.mu.Unlock()
		s.metrics.IncMutation(string(m.kind), string(OutcomeQueued))
		return OutcomeQueued, nil
	}
	outcome, err := s.apply(ctx, m)
	count := len(s.items)
	observers := s.observersLocked()
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	if outcome == OutcomeApplied {
		notify(ctx, observers, count)
	}
	return outcome, nil
}

// apply runs one mutation against the current items. Caller holds mu.
func (s *Store) apply(ctx context.Context, m pendingMutation) (Outcome, error) {
	var next []LineItem
	switch m.kind {
	case mutationAdd:
		next = make([]LineItem, 0, len(s.items)+1)
		next = append(next, s.items...)
		next = append(next, LineItem{Product: m.product, AddedAt: s.now()})
	case mutationRemove:
		if m.index < 0 || m.index >= len(s.items) {
			s.metrics.IncMutation(string(m.kind), string(OutcomeIgnored))
			return OutcomeIgnored, nil
		}
		next = make([]LineItem, 0, len(s.items)-1)
		next = append(next, s.items[:m.index]...)
		next = append(next, s.items[m.index+1:]...)
	case mutationClear:
		next = []LineItem{}
	default:
		return "", fmt.Errorf("unknown cart mutation %q", m.kind)
	}

	if err := s.persist(ctx, next); err != nil {
		return "", err
	}
	s.items = next
	s.metrics.IncMutation(string(m.kind), string(OutcomeApplied))
	return OutcomeApplied, nil
}

func (s *Store) persist(ctx context.Context, items []LineItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.slot.Write(ctx, payload); err != nil {
		s.metrics.IncSlotFailure("write")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return nil
}

// Hold defers Add and RemoveAt until the returned release func runs. Holds
// nest; queued mutations replay in arrival order once the last hold is released.
func (s *Store) Hold() func(ctx context.Context) {
	s.mu.Lock()
	s.holds++
	s.mu.Unlock()

	var once sync.Once
	return func(ctx context.Context) {
		once.Do(func() { s.release(ctx) })
	}
}

func (s *Store) release(ctx context.Context) {
	s.mu.Lock()
	s.holds--
	if s.holds > 0 || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	pending := s.pending
	s.pending = nil
	before := len(s.items)
	applied := 0
	for _, m := range pending {
		outcome, err := s.apply(ctx, m)
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "mutation", string(m.kind)), "replay queued cart mutation", err)
			continue
		}
		if outcome == OutcomeApplied {
			applied++
		}
	}
	count := len(s.items)
	observers := s.observersLocked()
	s.mu.Unlock()

	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"queued":  len(pending),
		"applied": applied,
		"before":  before,
		"after":   count,
	}), "replayed queued cart mutations")
	if applied > 0 {
		notify(ctx, observers, count)
	}
}

// Snapshot returns a deep copy of the line items.
func (s *Store) Snapshot() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Pending reports how many mutations wait for a hold to be released.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// busy reports whether a submission holds the cart or mutations wait on it.
func (s *Store) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holds > 0 || len(s.pending) > 0
}

// Subscribe registers an observer for count changes.
func (s *Store) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, obs)
	s.mu.Unlock()
}

func (s *Store) observersLocked() []Observer {
	if len(s.observers) == 0 {
		return nil
	}
	return append([]Observer(nil), s.observers...)
}

func notify(ctx context.Context, observers []Observer, count int) {
	for _, obs := range observers {
		obs(ctx, count)
	}
}
