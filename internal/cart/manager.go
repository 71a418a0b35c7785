package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/logger"
	"github.com/angelmondragon/assetcart/pkg/metrics"
)

// SessionObserver is told about count changes of any cart the manager owns.
type SessionObserver func(ctx context.Context, sessionID string, count int)

// Manager keeps one live Store per shopper session. Stores left idle are
// dropped by EvictIdle and reload from their slot on the next access.
type Manager struct {
	slots   Slots
	logg    *logger.Logger
	metrics *metrics.CartMetrics
	now     func() time.Time

	mu        sync.RWMutex
	stores    map[string]*Store
	touched   map[string]time.Time
	observers []SessionObserver
	loads     singleflight.Group
}

func NewManager(slots Slots, logg *logger.Logger, m *metrics.CartMetrics) (*Manager, error) {
	if slots == nil {
		return nil, fmt.Errorf("cart slots required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Manager{
		slots:   slots,
		logg:    logg,
		metrics: m,
		now:     time.Now,
		stores:  make(map[string]*Store),
		touched: make(map[string]time.Time),
	}, nil
}

// CountRecorder feeds every cart count change into the cart size histogram
// and the debug log.
func CountRecorder(logg *logger.Logger, m *metrics.CartMetrics) SessionObserver {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(ctx context.Context, sessionID string, count int) {
		m.ObserveCartSize(count)
		logg.Debug(logg.WithField(logg.WithSessionID(ctx, sessionID), "count", count), "cart count changed")
	}
}

// Subscribe registers obs on every store created after the call.
func (m *Manager) Subscribe(obs SessionObserver) {
	if obs == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, obs)
	m.mu.Unlock()
}

// Store returns the session's cart, loading it from its slot on first access.
// Concurrent first accesses share a single load.
func (m *Manager) Store(ctx context.Context, sessionID string) (*Store, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	m.mu.Lock()
	store, ok := m.stores[sessionID]
	if ok {
		m.touched[sessionID] = m.now()
	}
	m.mu.Unlock()
	if ok {
		return store, nil
	}

	v, err, _ := m.loads.Do(sessionID, func() (interface{}, error) {
		m.mu.RLock()
		existing, ok := m.stores[sessionID]
		m.mu.RUnlock()
		if ok {
			return existing, nil
		}

		created, err := NewStore(m.slots.Slot(sessionID), m.logg, m.metrics)
		if err != nil {
			return nil, err
		}
		created.Load(m.logg.WithSessionID(ctx, sessionID))

		m.mu.Lock()
		defer m.mu.Unlock()
		for _, obs := range m.observers {
			obs := obs
			created.Subscribe(func(ctx context.Context, count int) {
				obs(ctx, sessionID, count)
			})
		}
		m.stores[sessionID] = created
		m.touched[sessionID] = m.now()
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// Len reports how many carts are live in memory.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stores)
}

// EvictIdle drops stores not accessed within idle. Stores held by a
// submission or with queued mutations stay until they settle.
func (m *Manager) EvictIdle(ctx context.Context, idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for sessionID, store := range m.stores {
		if m.touched[sessionID].After(cutoff) || store.busy() {
			continue
		}
		delete(m.stores, sessionID)
		delete(m.touched, sessionID)
		evicted++
	}
	if evicted > 0 {
		m.logg.Debug(m.logg.WithFields(ctx, map[string]any{
			"evicted": evicted,
			"live":    len(m.stores),
		}), "evicted idle carts")
	}
	return evicted
}
