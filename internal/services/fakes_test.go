package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	stripe "github.com/stripe/stripe-go/v72"

	"member_portal_echo/internal/models"
)

func notFoundErr() error {
	return &stripe.Error{
		HTTPStatusCode: http.StatusNotFound,
		Code:           stripe.ErrorCodeResourceMissing,
		Msg:            "No such object",
	}
}

// fakeGateway is an in-memory PaymentGateway for tests.
type fakeGateway struct {
	customers map[string]*stripe.Customer
	invoices  map[string]*stripe.Invoice
	sources   map[string]*stripe.Source

	pendingItems []*stripe.InvoiceItem

	// nextAmountDue is assigned to the next created invoice.
	nextAmountDue int64

	createdCustomers int
	createdInvoices  int
	createdSources   int
	attachedSources  int
	createdItems     []InvoiceLine
	deletedInvoices  []string
	deletedItems     []string
	finalized        []string
	paidInvoices     []string
	paidSources      []string
	discountCleared  int
	discountSet      string

	payErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		customers: map[string]*stripe.Customer{},
		invoices:  map[string]*stripe.Invoice{},
		sources:   map[string]*stripe.Source{},
	}
}

func (g *fakeGateway) Customer(ctx context.Context, id string) (*stripe.Customer, error) {
	if customer, ok := g.customers[id]; ok {
		return customer, nil
	}
	return nil, notFoundErr()
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, user *models.User) (*stripe.Customer, error) {
	g.createdCustomers++
	customer := &stripe.Customer{ID: fmt.Sprintf("cus_%d", user.ID)}
	g.customers[customer.ID] = customer
	return customer, nil
}

func (g *fakeGateway) Invoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	if invoice, ok := g.invoices[id]; ok {
		return invoice, nil
	}
	return nil, notFoundErr()
}

func (g *fakeGateway) CreateInvoice(ctx context.Context, customerID, statementDescriptor string) (*stripe.Invoice, error) {
	g.createdInvoices++
	invoice := &stripe.Invoice{
		ID:                  fmt.Sprintf("in_%d", g.createdInvoices),
		AmountDue:           g.nextAmountDue,
		StatementDescriptor: statementDescriptor,
	}
	g.invoices[invoice.ID] = invoice
	return invoice, nil
}

func (g *fakeGateway) FinalizeInvoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	invoice, ok := g.invoices[id]
	if !ok {
		return nil, notFoundErr()
	}
	g.finalized = append(g.finalized, id)
	invoice.Status = stripe.InvoiceStatusOpen
	return invoice, nil
}

func (g *fakeGateway) PayInvoice(ctx context.Context, id, sourceID string) (*stripe.Invoice, error) {
	if g.payErr != nil {
		return nil, g.payErr
	}
	invoice, ok := g.invoices[id]
	if !ok {
		return nil, notFoundErr()
	}
	g.paidInvoices = append(g.paidInvoices, id)
	g.paidSources = append(g.paidSources, sourceID)
	invoice.Status = stripe.InvoiceStatusPaid
	return invoice, nil
}

func (g *fakeGateway) DeleteInvoice(ctx context.Context, id string) error {
	if _, ok := g.invoices[id]; !ok {
		return notFoundErr()
	}
	delete(g.invoices, id)
	g.deletedInvoices = append(g.deletedInvoices, id)
	return nil
}

func (g *fakeGateway) PendingInvoiceItems(ctx context.Context, customerID string) ([]*stripe.InvoiceItem, error) {
	return g.pendingItems, nil
}

func (g *fakeGateway) CreateInvoiceItem(ctx context.Context, customerID string, line InvoiceLine) error {
	g.createdItems = append(g.createdItems, line)
	return nil
}

func (g *fakeGateway) DeleteInvoiceItem(ctx context.Context, id string) error {
	g.deletedItems = append(g.deletedItems, id)
	return nil
}

func (g *fakeGateway) EnsureCoupon(ctx context.Context, activity *models.Activity) (*stripe.Coupon, error) {
	return &stripe.Coupon{ID: fmt.Sprintf("activity-%d-discount", activity.ID)}, nil
}

func (g *fakeGateway) DeleteDiscount(ctx context.Context, customerID string) error {
	g.discountCleared++
	return nil
}

func (g *fakeGateway) SetDiscount(ctx context.Context, customerID, couponID string) error {
	g.discountSet = couponID
	return nil
}

func (g *fakeGateway) Source(ctx context.Context, id string) (*stripe.Source, error) {
	if source, ok := g.sources[id]; ok {
		return source, nil
	}
	return nil, notFoundErr()
}

func (g *fakeGateway) CreateSource(ctx context.Context, req SourceRequest) (*stripe.Source, error) {
	g.createdSources++
	source := &stripe.Source{
		ID:     fmt.Sprintf("src_%d", g.createdSources),
		Status: stripe.SourceStatusPending,
		TypeData: map[string]interface{}{
			"bank": req.Bank,
		},
		Redirect: &stripe.RedirectFlow{
			Status: "pending",
			URL:    fmt.Sprintf("https://bank.example/%s", req.Bank),
		},
	}
	g.sources[source.ID] = source
	return source, nil
}

func (g *fakeGateway) AttachSource(ctx context.Context, customerID, sourceID string) (*stripe.Source, error) {
	source, ok := g.sources[sourceID]
	if !ok {
		return nil, notFoundErr()
	}
	g.attachedSources++
	return source, nil
}

// fakeStore keeps persisted enrollment state in memory, so a Reload after
// another caller's partial update behaves like the real repository.
type fakeStore struct {
	mu          sync.Mutex
	invoiceRefs map[string]string
	sourceRefs  map[string]string
	customerIDs map[uint]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		invoiceRefs: map[string]string{},
		sourceRefs:  map[string]string{},
		customerIDs: map[uint]string{},
	}
}

func (s *fakeStore) Reload(enrollment *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.invoiceRefs[enrollment.ID]; ok {
		enrollment.PaymentInvoice = &ref
	}
	if ref, ok := s.sourceRefs[enrollment.ID]; ok {
		enrollment.PaymentSource = &ref
	}
	if customerID, ok := s.customerIDs[enrollment.UserID]; ok {
		enrollment.User.StripeCustomerID = &customerID
	}
	return nil
}

func (s *fakeStore) SetPaymentInvoice(enrollment *models.Enrollment, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoiceRefs[enrollment.ID] = invoiceID
	enrollment.PaymentInvoice = &invoiceID
	return nil
}

func (s *fakeStore) SetPaymentSource(enrollment *models.Enrollment, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceRefs[enrollment.ID] = sourceID
	enrollment.PaymentSource = &sourceID
	return nil
}

func (s *fakeStore) SetStripeCustomerID(user *models.User, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customerIDs[user.ID] = customerID
	user.StripeCustomerID = &customerID
	return nil
}

// memoryLocker is a single-process Locker with the same bounded-wait
// contract as the Redis one.
type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: map[string]bool{}}
}

func (l *memoryLocker) Acquire(ctx context.Context, key string, hold, wait time.Duration) (func(), error) {
	deadline := time.Now().Add(wait)
	for {
		l.mu.Lock()
		if !l.held[key] {
			l.held[key] = true
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				delete(l.held, key)
				l.mu.Unlock()
			}, nil
		}
		l.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s: %w", key, ErrLockTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func int64p(v int64) *int64 {
	return &v
}

func testEnrollment() *models.Enrollment {
	return &models.Enrollment{
		ID:         "e0b4f0a2-0000-0000-0000-000000000001",
		UserID:     7,
		ActivityID: 3,
		State:      models.StateConfirmed,
		CreatedAt:  time.Now(),
		Price:      int64p(1000),
		TotalPrice: int64p(1050),
		User: models.User{
			ID:    7,
			Name:  "Test Member",
			Email: "member@example.com",
		},
		Activity: models.Activity{
			ID:            3,
			Name:          "Summer barbecue",
			Statement:     "Summer barbecue",
			Price:         int64p(1000),
			DiscountPrice: int64p(800),
		},
	}
}
