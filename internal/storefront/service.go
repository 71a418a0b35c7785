package storefront

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/assetcart/internal/cart"
	"github.com/angelmondragon/assetcart/internal/checkout"
	"github.com/angelmondragon/assetcart/internal/orders"
	"github.com/angelmondragon/assetcart/internal/pricing"
	"github.com/angelmondragon/assetcart/pkg/enums"
	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/logger"
	"github.com/angelmondragon/assetcart/pkg/types"
)

type cartProvider interface {
	Store(ctx context.Context, sessionID string) (*cart.Store, error)
}

type submitter interface {
	Submit(ctx context.Context, session *checkout.Session, store checkout.CartStore) (orders.Order, error)
}

type orderReader interface {
	Get(ctx context.Context, id uuid.UUID) (orders.Order, error)
}

// CartView is the cart as shown on every page: items, badge count and totals.
type CartView struct {
	Items   []cart.LineItem `json:"items"`
	Count   int             `json:"count"`
	Pricing pricing.Display `json:"pricing"`
}

// MutationResult pairs a cart mutation outcome with the cart after it.
type MutationResult struct {
	Outcome cart.Outcome `json:"outcome"`
	Cart    CartView     `json:"cart"`
}

// Service is the single entry point the HTTP layer uses for one shopper's
// cart and checkout. Each shopper has at most one checkout session.
type Service interface {
	Cart(ctx context.Context, shopperID string) (CartView, error)
	AddToCart(ctx context.Context, shopperID string, product cart.Product) (MutationResult, error)
	RemoveFromCart(ctx context.Context, shopperID string, index int) (MutationResult, error)

	BeginCheckout(ctx context.Context, shopperID string, identity types.Identity) (checkout.View, error)
	Checkout(ctx context.Context, shopperID string) (checkout.View, error)
	UpdateShipping(ctx context.Context, shopperID string, info types.ShippingInfo) (checkout.View, error)
	SelectPayment(ctx context.Context, shopperID string, method enums.PaymentMethod) (checkout.View, error)
	Advance(ctx context.Context, shopperID string) (checkout.View, error)
	Back(ctx context.Context, shopperID string) (checkout.View, error)
	Submit(ctx context.Context, shopperID string) (orders.Order, error)
	Abort(ctx context.Context, shopperID string) error

	Order(ctx context.Context, shopperID string, orderID uuid.UUID) (orders.Order, error)

	// EvictIdle drops checkout sessions untouched within idle and returns how many went.
	EvictIdle(ctx context.Context, idle time.Duration) int
}

// confirmedGrace keeps a confirmed session long enough for the confirmation
// page and duplicate submits to read it back.
const confirmedGrace = 5 * time.Minute

type service struct {
	carts   cartProvider
	gateway submitter
	orders  orderReader
	logg    *logger.Logger

	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*checkout.Session
	touched  map[string]time.Time
}

func NewService(carts cartProvider, gateway submitter, orderSvc orderReader, logg *logger.Logger) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart manager required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("submission gateway required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		carts:    carts,
		gateway:  gateway,
		orders:   orderSvc,
		logg:     logg,
		now:      time.Now,
		sessions: map[string]*checkout.Session{},
		touched:  map[string]time.Time{},
	}, nil
}

func (s *service) Cart(ctx context.Context, shopperID string) (CartView, error) {
	store, err := s.store(ctx, shopperID)
	if err != nil {
		return CartView{}, err
	}
	return viewOf(store), nil
}

func (s *service) AddToCart(ctx context.Context, shopperID string, product cart.Product) (MutationResult, error) {
	store, err := s.store(ctx, shopperID)
	if err != nil {
		return MutationResult{}, err
	}
	outcome, err := store.Add(ctx, product)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Outcome: outcome, Cart: viewOf(store)}, nil
}

func (s *service) RemoveFromCart(ctx context.Context, shopperID string, index int) (MutationResult, error) {
	store, err := s.store(ctx, shopperID)
	if err != nil {
		return MutationResult{}, err
	}
	outcome, err := store.RemoveAt(ctx, index)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Outcome: outcome, Cart: viewOf(store)}, nil
}

// BeginCheckout starts a fresh session from the current cart, replacing any
// earlier one unless that one is waiting on the order processor.
func (s *service) BeginCheckout(ctx context.Context, shopperID string, identity types.Identity) (checkout.View, error) {
	store, err := s.store(ctx, shopperID)
	if err != nil {
		return checkout.View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[shopperID]; ok && existing.Submitting() {
		return checkout.View{}, pkgerrors.New(pkgerrors.CodeConflict, "order submission in progress")
	}

	session, err := checkout.Begin(shopperID, store.Snapshot(), identity)
	if err != nil {
		s.forget(shopperID)
		return checkout.View{}, err
	}
	s.sessions[shopperID] = session
	s.touched[shopperID] = s.now()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"checkout_id": session.ID().String(),
		"line_items":  len(session.Items()),
	}), "checkout started")
	return session.View(), nil
}

func (s *service) Checkout(ctx context.Context, shopperID string) (checkout.View, error) {
	session, err := s.session(shopperID)
	if err != nil {
		return checkout.View{}, err
	}
	return session.View(), nil
}

func (s *service) UpdateShipping(ctx context.Context, shopperID string, info types.ShippingInfo) (checkout.View, error) {
	return s.apply(shopperID, func(session *checkout.Session) error {
		return session.UpdateShipping(info)
	})
}

func (s *service) SelectPayment(ctx context.Context, shopperID string, method enums.PaymentMethod) (checkout.View, error) {
	return s.apply(shopperID, func(session *checkout.Session) error {
		return session.SelectPayment(method)
	})
}

func (s *service) Advance(ctx context.Context, shopperID string) (checkout.View, error) {
	return s.apply(shopperID, (*checkout.Session).Advance)
}

func (s *service) Back(ctx context.Context, shopperID string) (checkout.View, error) {
	return s.apply(shopperID, (*checkout.Session).Back)
}

// apply runs fn and returns the resulting view. A refused change still
// reports the session's view alongside the error so failures can be shown.
func (s *service) apply(shopperID string, fn func(*checkout.Session) error) (checkout.View, error) {
	session, err := s.session(shopperID)
	if err != nil {
		return checkout.View{}, err
	}
	if err := fn(session); err != nil {
		return session.View(), err
	}
	return session.View(), nil
}

func (s *service) Submit(ctx context.Context, shopperID string) (orders.Order, error) {
	session, err := s.session(shopperID)
	if err != nil {
		return orders.Order{}, err
	}
	store, err := s.store(ctx, shopperID)
	if err != nil {
		return orders.Order{}, err
	}
	return s.gateway.Submit(ctx, session, store)
}

// Abort discards the checkout session. The cart keeps its items.
func (s *service) Abort(ctx context.Context, shopperID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[shopperID]
	if !ok {
		return nil
	}
	if session.Submitted() {
		s.forget(shopperID)
		return nil
	}
	if err := session.Abort(); err != nil {
		return err
	}
	s.forget(shopperID)
	s.logg.Info(s.logg.WithField(ctx, "checkout_id", session.ID().String()), "checkout abandoned")
	return nil
}

// Order returns a placed order, but only to the shopper who placed it.
func (s *service) Order(ctx context.Context, shopperID string, orderID uuid.UUID) (orders.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if order.ShopperID != shopperID {
		return orders.Order{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) store(ctx context.Context, shopperID string) (*cart.Store, error) {
	if strings.TrimSpace(shopperID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper session id is required")
	}
	return s.carts.Store(ctx, shopperID)
}

func (s *service) session(shopperID string) (*checkout.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[shopperID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no checkout in progress")
	}
	s.touched[shopperID] = s.now()
	return session, nil
}

// forget drops a shopper's session. Caller holds mu.
func (s *service) forget(shopperID string) {
	delete(s.sessions, shopperID)
	delete(s.touched, shopperID)
}

// EvictIdle never drops a session waiting on the order processor. Confirmed
// sessions go once confirmedGrace has passed, or idle if that is shorter.
func (s *service) EvictIdle(ctx context.Context, idle time.Duration) int {
	now := s.now()
	confirmedIdle := idle
	if confirmedGrace < confirmedIdle {
		confirmedIdle = confirmedGrace
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for shopperID, session := range s.sessions {
		if session.Submitting() {
			continue
		}
		limit := idle
		if session.Submitted() {
			limit = confirmedIdle
		}
		if now.Sub(s.touched[shopperID]) < limit {
			continue
		}
		s.forget(shopperID)
		evicted++
	}
	if evicted > 0 {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"evicted": evicted,
			"live":    len(s.sessions),
		}), "evicted idle checkout sessions")
	}
	return evicted
}

func viewOf(store *cart.Store) CartView {
	items := store.Snapshot()
	return CartView{
		Items:   items,
		Count:   len(items),
		Pricing: pricing.Compute(items).Display(),
	}
}
