package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/assetcart/internal/orders"
	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/logger"
	"github.com/angelmondragon/assetcart/pkg/metrics"
)

// DefaultSubmitTimeout bounds the wait for the order processor when none is configured.
const DefaultSubmitTimeout = 15 * time.Second

// OrderProcessor accepts a placed order. A nil error is the acknowledgement.
type OrderProcessor interface {
	Process(ctx context.Context, order orders.Order) error
}

// CartStore is the part of the cart a submission needs.
type CartStore interface {
	Hold() func(ctx context.Context)
	Clear(ctx context.Context) error
}

// Gateway submits checkout sessions to the order processor at most once.
type Gateway struct {
	processor OrderProcessor
	timeout   time.Duration
	logg      *logger.Logger
	metrics   *metrics.CheckoutMetrics
}

func NewGateway(processor OrderProcessor, timeout time.Duration, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Gateway, error) {
	if processor == nil {
		return nil, fmt.Errorf("order processor required")
	}
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Gateway{processor: processor, timeout: timeout, logg: logg, metrics: m}, nil
}

// Submit places the order for session. A session that already produced an
// order returns it again without contacting the processor. On failure the
// session stays in review and the cart is untouched; on success the cart is
// cleared. Cart mutations arriving meanwhile are queued behind the submission.
func (g *Gateway) Submit(ctx context.Context, session *Session, store CartStore) (orders.Order, error) {
	if session == nil {
		return orders.Order{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session required")
	}
	if store == nil {
		return orders.Order{}, pkgerrors.New(pkgerrors.CodeInternal, "cart store required")
	}

	order, replay, err := session.prepareSubmission()
	if err != nil {
		g.metrics.IncSubmission(metrics.OutcomeRejected)
		return orders.Order{}, err
	}
	ctx = g.logg.WithOrderID(ctx, order.ID.String())
	if replay {
		g.metrics.IncSubmission(metrics.OutcomeReplayed)
		g.logg.Info(ctx, "order already placed, returning confirmation")
		return order, nil
	}

	// Once the order is on its way, a disconnecting client must not abort it
	// or leave the cart uncleared. The processor is bounded by the timeout.
	ctx = context.WithoutCancel(ctx)

	release := store.Hold()
	defer release(ctx)

	started := time.Now()
	processCtx, cancel := context.WithTimeout(ctx, g.timeout)
	err = g.processor.Process(processCtx, order)
	cancel()
	elapsed := time.Since(started)

	if err != nil {
		session.failSubmission()
		g.metrics.IncSubmission(metrics.OutcomeFailed)
		g.metrics.ObserveSubmit(metrics.OutcomeFailed, elapsed)

		reason := "processor_error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		g.logg.Warn(g.logg.WithFields(ctx, map[string]any{
			"reason": reason,
			"error":  err.Error(),
		}), "order submission failed")
		return orders.Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order submission failed").WithDetails(map[string]string{
			"reason": reason,
		})
	}

	session.confirm(order)
	g.metrics.IncSubmission(metrics.OutcomeConfirmed)
	g.metrics.ObserveSubmit(metrics.OutcomeConfirmed, elapsed)

	if err := store.Clear(ctx); err != nil {
		g.logg.Error(ctx, "clear cart after confirmed order", err)
	}
	g.logg.Info(g.logg.WithField(ctx, "total", order.Total.String()), "order placed")
	return order, nil
}
