package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/assetcart/pkg/redis"
)

// Manager remembers which order ids a consumer has durably handled, using
// Redis SETNX with a TTL. Keys follow
// `ac:idempotency:order:processed:<consumer>:<order_id>`.
//
// A mark must only be written once the order is committed; Processed then
// lets the consumer acknowledge a resend without touching the database.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds a guard that marks orders as processed for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// Processed reports whether the order carries a processed mark.
func (m *Manager) Processed(ctx context.Context, consumer string, orderID uuid.UUID) (bool, error) {
	key, err := m.processedKey(consumer, orderID)
	if err != nil {
		return false, err
	}
	value, err := m.store.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value != "", nil
}

// MarkProcessed records the order as handled. Marking an already marked
// order keeps the original timestamp.
func (m *Manager) MarkProcessed(ctx context.Context, consumer string, orderID uuid.UUID) error {
	key, err := m.processedKey(consumer, orderID)
	if err != nil {
		return err
	}
	_, err = m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
	return err
}

func (m *Manager) processedKey(consumer string, orderID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if orderID == uuid.Nil {
		return "", errors.New("order id is required")
	}
	scope := fmt.Sprintf("order:processed:%s", consumer)
	return m.store.IdempotencyKey(scope, orderID.String()), nil
}
