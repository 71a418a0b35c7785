package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/assetcart/pkg/db"
	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/logger"
)

// consumerName scopes the processed-order marks in the idempotency store.
const consumerName = "orders"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// processedGuard is a fast path in front of the orders table. Marks are only
// written after commit, so a mark always means a stored row.
type processedGuard interface {
	Processed(ctx context.Context, consumer string, orderID uuid.UUID) (bool, error)
	MarkProcessed(ctx context.Context, consumer string, orderID uuid.UUID) error
}

// Service records submitted orders and serves them back for confirmation.
type Service interface {
	Process(ctx context.Context, order Order) error
	Get(ctx context.Context, id uuid.UUID) (Order, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	guard processedGuard
	logg  *logger.Logger
}

// NewService builds the order processor. guard may be nil, in which case
// de-duplication relies on the primary key alone.
func NewService(repo Repository, tx txRunner, guard processedGuard, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, guard: guard, logg: logg}, nil
}

// Process records order exactly once per order id. Re-sending an order whose
// acknowledgement was lost is a successful no-op.
func (s *service) Process(ctx context.Context, order Order) error {
	if order.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if len(order.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no line items")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if s.guard != nil {
		seen, err := s.guard.Processed(ctx, consumerName, order.ID)
		switch {
		case err != nil:
			// the table stays authoritative; fall through to it
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "order idempotency lookup failed")
		case seen:
			s.logg.Info(ctx, "order already processed")
			return nil
		}
	}

	inserted := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, order.ID); err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := repo.Create(ctx, order.toModel()); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil && db.IsUniqueViolation(err, "") {
		inserted = false
		err = nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	if s.guard != nil {
		// the row is committed; a cancelled caller must not lose the mark
		if err := s.guard.MarkProcessed(context.WithoutCancel(ctx), consumerName, order.ID); err != nil {
			s.logg.Error(ctx, "mark order processed", err)
		}
	}

	if inserted {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"line_items": len(order.Items),
			"total":      order.Total.String(),
		}), "order recorded")
	} else {
		s.logg.Info(ctx, "order already recorded")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	if id == uuid.Nil {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	record, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return fromModel(record), nil
}
