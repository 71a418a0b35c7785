package checkout

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/assetcart/internal/cart"
	"github.com/angelmondragon/assetcart/internal/orders"
	"github.com/angelmondragon/assetcart/internal/pricing"
	"github.com/angelmondragon/assetcart/pkg/enums"
	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/types"
)

// RedirectCatalog is the redirect target reported when checkout is entered
// with an empty cart.
const RedirectCatalog = "catalog"

// Session is one pass through the checkout workflow. It snapshots the cart
// when it begins and lives only in memory.
type Session struct {
	mu sync.Mutex

	id        uuid.UUID
	shopperID string
	items     []cart.LineItem
	shipping  types.ShippingInfo
	payment   enums.PaymentMethod
	step      enums.CheckoutStep
	failures  map[string]string

	submitting bool
	submitted  bool
	aborted    bool
	orderID    uuid.UUID
	order      orders.Order

	startedAt time.Time
	now       func() time.Time
}

// View is the presentation snapshot of a Session.
type View struct {
	ID         uuid.UUID           `json:"id"`
	Step       enums.CheckoutStep  `json:"step"`
	StepNumber int                 `json:"step_number"`
	Items      []cart.LineItem     `json:"items"`
	Shipping   types.ShippingInfo  `json:"shipping"`
	Payment    enums.PaymentMethod `json:"payment_method"`
	Pricing    pricing.Display     `json:"pricing"`
	Failures   map[string]string   `json:"validation_failures,omitempty"`
	Submitting bool                `json:"submitting"`
	Submitted  bool                `json:"submitted"`
	OrderID    *uuid.UUID          `json:"order_id,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
}

// Begin starts a checkout over items. An empty cart is refused with a
// precondition error that tells the caller to go back to the catalog.
func Begin(shopperID string, items []cart.LineItem, identity types.Identity) (*Session, error) {
	if strings.TrimSpace(shopperID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "cart is empty").WithDetails(map[string]string{
			"redirect": RedirectCatalog,
		})
	}

	now := func() time.Time { return time.Now().UTC() }
	s := &Session{
		id:        uuid.New(),
		shopperID: shopperID,
		items:     cloneLineItems(items),
		payment:   enums.DefaultPaymentMethod,
		step:      enums.CheckoutStepShipping,
		startedAt: now(),
		now:       now,
	}
	if !identity.IsZero() {
		s.shipping.FullName = strings.TrimSpace(identity.Name)
		s.shipping.Email = strings.TrimSpace(identity.Email)
	}
	return s, nil
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) ShopperID() string {
	return s.shopperID
}

func (s *Session) Step() enums.CheckoutStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) Shipping() types.ShippingInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shipping
}

func (s *Session) Payment() enums.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payment
}

// Items returns a copy of the cart snapshot taken at Begin.
func (s *Session) Items() []cart.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLineItems(s.items)
}

func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// Submitting reports whether an order is currently awaiting acknowledgement.
func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

func (s *Session) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Order returns the confirmed order, if any.
func (s *Session) Order() (orders.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order, s.submitted
}

// UpdateShipping replaces the shipping details. Only the shipping step edits them.
func (s *Session) UpdateShipping(info types.ShippingInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expectLocked(enums.CheckoutStepShipping); err != nil {
		return err
	}
	s.shipping = info
	s.failures = nil
	return nil
}

// SelectPayment records the payment choice. Only the payment step edits it.
func (s *Session) SelectPayment(method enums.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expectLocked(enums.CheckoutStepPayment); err != nil {
		return err
	}
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").WithDetails(map[string]string{
			"payment_method": "must be one of crypto, card, paypal",
		})
	}
	s.payment = method
	s.failures = nil
	return nil
}

// AdvanceToPayment moves shipping -> payment once every shipping field is filled in.
func (s *Session) AdvanceToPayment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceToPaymentLocked()
}

func (s *Session) advanceToPaymentLocked() error {
	if err := s.expectLocked(enums.CheckoutStepShipping); err != nil {
		return err
	}
	if failures := ValidateShipping(s.shipping); len(failures) > 0 {
		s.failures = failures
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping details incomplete").WithDetails(copyFailures(failures))
	}
	s.failures = nil
	s.step = enums.CheckoutStepPayment
	return nil
}

// AdvanceToReview moves payment -> review once a known payment method is selected.
func (s *Session) AdvanceToReview() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceToReviewLocked()
}

func (s *Session) advanceToReviewLocked() error {
	if err := s.expectLocked(enums.CheckoutStepPayment); err != nil {
		return err
	}
	if !s.payment.IsValid() {
		s.failures = map[string]string{"payment_method": "must be selected"}
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method required").WithDetails(copyFailures(s.failures))
	}
	s.failures = nil
	s.step = enums.CheckoutStepReview
	return nil
}

// BackToShipping returns from payment to shipping keeping everything entered.
func (s *Session) BackToShipping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backLocked(enums.CheckoutStepPayment, enums.CheckoutStepShipping)
}

// BackToPayment returns from review to payment keeping everything entered.
func (s *Session) BackToPayment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backLocked(enums.CheckoutStepReview, enums.CheckoutStepPayment)
}

func (s *Session) backLocked(from, to enums.CheckoutStep) error {
	if err := s.expectLocked(from); err != nil {
		return err
	}
	s.failures = nil
	s.step = to
	return nil
}

// Advance runs the forward transition for the current step.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.step {
	case enums.CheckoutStepShipping:
		return s.advanceToPaymentLocked()
	case enums.CheckoutStepPayment:
		return s.advanceToReviewLocked()
	}
	if err := s.activeLocked(); err != nil {
		return err
	}
	return stepConflict(s.step, "advance")
}

// Back runs the backward transition for the current step.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.step {
	case enums.CheckoutStepPayment:
		return s.backLocked(enums.CheckoutStepPayment, enums.CheckoutStepShipping)
	case enums.CheckoutStepReview:
		return s.backLocked(enums.CheckoutStepReview, enums.CheckoutStepPayment)
	}
	if err := s.activeLocked(); err != nil {
		return err
	}
	return stepConflict(s.step, "back")
}

// Abort ends the session without touching the cart.
func (s *Session) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return nil
	}
	if err := s.activeLocked(); err != nil {
		return err
	}
	s.aborted = true
	return nil
}

// View returns a copy safe to render.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:         s.id,
		Step:       s.step,
		StepNumber: s.step.Ordinal(),
		Items:      cloneLineItems(s.items),
		Shipping:   s.shipping,
		Payment:    s.payment,
		Pricing:    pricing.Compute(s.items).Display(),
		Failures:   copyFailures(s.failures),
		Submitting: s.submitting,
		Submitted:  s.submitted,
		StartedAt:  s.startedAt,
	}
	if s.submitted {
		id := s.order.ID
		v.OrderID = &id
	}
	return v
}

// prepareSubmission marks the session as submitting and builds the order to
// send. A confirmed session returns its order with replay set instead.
func (s *Session) prepareSubmission() (order orders.Order, replay bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitted {
		return s.order, true, nil
	}
	if err := s.expectLocked(enums.CheckoutStepReview); err != nil {
		return orders.Order{}, false, err
	}
	if s.orderID == uuid.Nil {
		s.orderID = uuid.New()
	}

	items := cloneLineItems(s.items)
	breakdown := pricing.Compute(items)
	s.submitting = true
	return orders.Order{
		ID:        s.orderID,
		ShopperID: s.shopperID,
		Items:     items,
		Shipping:  s.shipping.Trimmed(),
		Payment:   s.payment,
		Subtotal:  breakdown.Subtotal,
		Tax:       breakdown.Tax,
		Total:     breakdown.Total,
		PlacedAt:  s.now(),
	}, false, nil
}

func (s *Session) confirm(order orders.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	s.submitted = true
	s.order = order
	s.step = enums.CheckoutStepConfirmed
	s.failures = nil
}

func (s *Session) failSubmission() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
}

// activeLocked refuses any change while a submission is pending or after the
// session reached a terminal state.
func (s *Session) activeLocked() error {
	if s.submitting {
		return pkgerrors.New(pkgerrors.CodeConflict, "order submission in progress")
	}
	if s.submitted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already placed").WithDetails(map[string]string{
			"step": s.step.String(),
		})
	}
	if s.aborted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout was abandoned")
	}
	return nil
}

func (s *Session) expectLocked(step enums.CheckoutStep) error {
	if err := s.activeLocked(); err != nil {
		return err
	}
	if s.step != step {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not at the "+step.String()+" step").WithDetails(map[string]string{
			"step":     s.step.String(),
			"expected": step.String(),
		})
	}
	return nil
}

func stepConflict(step enums.CheckoutStep, action string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot "+action+" from the "+step.String()+" step").WithDetails(map[string]string{
		"step": step.String(),
	})
}

func copyFailures(failures map[string]string) map[string]string {
	if len(failures) == 0 {
		return nil
	}
	out := make(map[string]string, len(failures))
	for k, v := range failures {
		out[k] = v
	}
	return out
}

func cloneLineItems(items []cart.LineItem) []cart.LineItem {
	out := make([]cart.LineItem, len(items))
	for i, item := range items {
		out[i] = item
		out[i].Tags = item.Tags.Clone()
	}
	return out
}
