package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrSlotEmpty is returned by Slot.Read when nothing has been stored yet.
var ErrSlotEmpty = errors.New("cart slot empty")

// Slot is the single named storage location holding one shopper's cart.
type Slot interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
}

// Slots hands out the slot for a shopper session.
type Slots interface {
	Slot(sessionID string) Slot
}

type slotClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CartKey(sessionID string) string
}

// RedisSlots keeps each cart as a JSON string under ac:cart:<session>.
type RedisSlots struct {
	client slotClient
	ttl    time.Duration
}

// NewRedisSlots returns Redis-backed slots; ttl 0 keeps carts forever.
func NewRedisSlots(client slotClient, ttl time.Duration) (*RedisSlots, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if ttl < 0 {
		return nil, errors.New("slot ttl must be non-negative")
	}
	return &RedisSlots{client: client, ttl: ttl}, nil
}

func (r *RedisSlots) Slot(sessionID string) Slot {
	return &redisSlot{client: r.client, key: r.client.CartKey(sessionID), ttl: r.ttl}
}

type redisSlot struct {
	client slotClient
	key    string
	ttl    time.Duration
}

func (s *redisSlot) Read(ctx context.Context) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key)
	if errors.Is(err, goredis.Nil) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// Write replaces the whole slot and refreshes its TTL.
func (s *redisSlot) Write(ctx context.Context, payload []byte) error {
	return s.client.Set(ctx, s.key, string(payload), s.ttl)
}

// MemorySlots keeps carts in process memory; used in dev and tests.
type MemorySlots struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{data: make(map[string][]byte)}
}

func (m *MemorySlots) Slot(sessionID string) Slot {
	return &memorySlot{parent: m, key: sessionID}
}

// Put seeds raw slot content, bypassing validation.
func (m *MemorySlots) Put(sessionID string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = append([]byte(nil), payload...)
}

// Raw returns the stored bytes for a session.
func (m *MemorySlots) Raw(sessionID string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.data[sessionID]
	return append([]byte(nil), payload...), ok
}

type memorySlot struct {
	parent *MemorySlots
	key    string
}

func (s *memorySlot) Read(context.Context) ([]byte, error) {
	payload, ok := s.parent.Raw(s.key)
	if !ok {
		return nil, ErrSlotEmpty
	}
	return payload, nil
}

func (s *memorySlot) Write(_ context.Context, payload []byte) error {
	s.parent.Put(s.key, payload)
	return nil
}
