package services

import (
	"context"
	"fmt"
	"log"
	"time"

	stripe "github.com/stripe/stripe-go/v72"

	"member_portal_echo/internal/models"
)

const (
	// invoiceLockHold bounds worst-case staleness if a holder dies.
	invoiceLockHold = 60 * time.Second
	// invoiceLockWait bounds how long a second caller blocks before
	// giving up with ErrLockTimeout.
	invoiceLockWait = 15 * time.Second
)

// EnrollmentStore is the persistence surface the payment services need.
type EnrollmentStore interface {
	Reload(enrollment *models.Enrollment) error
	SetPaymentInvoice(enrollment *models.Enrollment, invoiceID string) error
	SetPaymentSource(enrollment *models.Enrollment, sourceID string) error
}

// InvoiceService creates, fetches and pays the external invoice for an
// enrollment. All invoice read-modify-write work happens under a per-user
// distributed lock so two concurrent requests cannot create duplicates.
type InvoiceService struct {
	gateway   PaymentGateway
	pricing   *PricingService
	customers *CustomerService
	store     EnrollmentStore
	locker    Locker
}

func NewInvoiceService(gateway PaymentGateway, pricing *PricingService, customers *CustomerService, store EnrollmentStore, locker Locker) *InvoiceService {
	return &InvoiceService{
		gateway:   gateway,
		pricing:   pricing,
		customers: customers,
		store:     store,
		locker:    locker,
	}
}

// Invoice returns the invoice for the enrollment, creating one if none
// exists or the previous one is unusable.
func (s *InvoiceService) Invoice(ctx context.Context, enrollment *models.Enrollment) (*stripe.Invoice, error) {
	release, err := s.locker.Acquire(ctx, invoiceLockKey(enrollment), invoiceLockHold, invoiceLockWait)
	if err != nil {
		return nil, fmt.Errorf("invoice lock for user %d: %w", enrollment.UserID, err)
	}
	defer release()

	// Reload inside the lock; another request may have created the invoice
	// while we were waiting.
	if err := s.store.Reload(enrollment); err != nil {
		return nil, err
	}

	if enrollment.PaymentInvoice != nil && *enrollment.PaymentInvoice != "" {
		invoice, err := s.gateway.Invoice(ctx, *enrollment.PaymentInvoice)
		if err == nil {
			return invoice, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
		// Gone on the provider side, fall through to recreation.
	}

	return s.createInvoice(ctx, enrollment)
}

// PayInvoice submits payment for the enrollment's invoice using the given
// source. Sources are single-use; a non-chargeable source is rejected
// before anything is touched.
func (s *InvoiceService) PayInvoice(ctx context.Context, enrollment *models.Enrollment, source *stripe.Source) (*stripe.Invoice, error) {
	if source.Status != stripe.SourceStatusChargeable {
		return nil, fmt.Errorf("source %s: %w", source.ID, ErrSourceConsumed)
	}

	invoice, err := s.Invoice(ctx, enrollment)
	if err != nil {
		return nil, err
	}
	return s.gateway.PayInvoice(ctx, invoice.ID, source.ID)
}

// createInvoice is only called while holding the user lock.
func (s *InvoiceService) createInvoice(ctx context.Context, enrollment *models.Enrollment) (*stripe.Invoice, error) {
	customer, err := s.customers.Customer(ctx, &enrollment.User)
	if err != nil {
		return nil, err
	}

	if err := s.clearPendingItems(ctx, customer.ID); err != nil {
		return nil, err
	}

	computed, err := s.pricing.ComputedInvoiceLines(ctx, enrollment)
	if err != nil {
		return nil, err
	}

	for _, line := range computed.Items {
		if err := s.gateway.CreateInvoiceItem(ctx, customer.ID, line); err != nil {
			return nil, err
		}
	}

	if err := s.updateDiscount(ctx, customer.ID, computed.Coupon); err != nil {
		return nil, err
	}

	invoice, err := s.gateway.CreateInvoice(ctx, customer.ID, enrollment.Activity.StatementDescriptor())
	if err != nil {
		return nil, err
	}

	// Never hand out an invoice whose amount disagrees with local records.
	var totalPrice int64
	if enrollment.TotalPrice != nil {
		totalPrice = *enrollment.TotalPrice
	}
	if invoice.AmountDue != totalPrice {
		log.Printf("Invoice %s amount %d does not match enrollment %s total %d, deleting",
			invoice.ID, invoice.AmountDue, enrollment.ID, totalPrice)
		if err := s.gateway.DeleteInvoice(ctx, invoice.ID); err != nil {
			log.Printf("Failed to delete mismatched invoice %s: %v", invoice.ID, err)
		}
		return nil, fmt.Errorf("invoice %s: %w", invoice.ID, ErrPriceMismatch)
	}

	invoice, err = s.gateway.FinalizeInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetPaymentInvoice(enrollment, invoice.ID); err != nil {
		return nil, err
	}

	return invoice, nil
}

// clearPendingItems drops line items left behind by an earlier attempt.
// Items already attached to an invoice are left alone.
func (s *InvoiceService) clearPendingItems(ctx context.Context, customerID string) error {
	items, err := s.gateway.PendingInvoiceItems(ctx, customerID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	for _, item := range items {
		if item.Invoice != nil {
			continue
		}
		if err := s.gateway.DeleteInvoiceItem(ctx, item.ID); err != nil {
			return err
		}
	}
	return nil
}

// updateDiscount clears any existing customer-level discount and applies
// the newly computed coupon, if any.
func (s *InvoiceService) updateDiscount(ctx context.Context, customerID string, coupon *stripe.Coupon) error {
	if err := s.gateway.DeleteDiscount(ctx, customerID); err != nil && !IsNotFound(err) {
		return err
	}
	if coupon != nil {
		return s.gateway.SetDiscount(ctx, customerID, coupon.ID)
	}
	return nil
}

func invoiceLockKey(enrollment *models.Enrollment) string {
	return fmt.Sprintf("stripe.invoice.%d", enrollment.UserID)
}
