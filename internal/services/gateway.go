package services

import (
	"context"
	"errors"
	"net/http"

	stripe "github.com/stripe/stripe-go/v72"

	"member_portal_echo/internal/models"
)

// InvoiceLine is one computed invoice line item.
type InvoiceLine struct {
	Amount       int64
	Description  string
	Discountable bool
}

// ComputedLines is the pricing calculator output: ordered line items plus
// an optional coupon to apply at the customer level.
type ComputedLines struct {
	Items  []InvoiceLine
	Coupon *stripe.Coupon
}

// SourceRequest describes a new bank-redirect payment source.
type SourceRequest struct {
	Amount              int64
	Bank                string
	ReturnURL           string
	StatementDescriptor string
	Metadata            map[string]string
}

// PaymentGateway is the billing provider surface used by the enrollment
// payment flow. All calls may fail with a provider error; use IsNotFound
// to classify absence on fetch/delete/list paths that tolerate it.
type PaymentGateway interface {
	Customer(ctx context.Context, id string) (*stripe.Customer, error)
	CreateCustomer(ctx context.Context, user *models.User) (*stripe.Customer, error)

	Invoice(ctx context.Context, id string) (*stripe.Invoice, error)
	CreateInvoice(ctx context.Context, customerID, statementDescriptor string) (*stripe.Invoice, error)
	FinalizeInvoice(ctx context.Context, id string) (*stripe.Invoice, error)
	PayInvoice(ctx context.Context, id, sourceID string) (*stripe.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error

	PendingInvoiceItems(ctx context.Context, customerID string) ([]*stripe.InvoiceItem, error)
	CreateInvoiceItem(ctx context.Context, customerID string, line InvoiceLine) error
	DeleteInvoiceItem(ctx context.Context, id string) error

	EnsureCoupon(ctx context.Context, activity *models.Activity) (*stripe.Coupon, error)
	DeleteDiscount(ctx context.Context, customerID string) error
	SetDiscount(ctx context.Context, customerID, couponID string) error

	Source(ctx context.Context, id string) (*stripe.Source, error)
	CreateSource(ctx context.Context, req SourceRequest) (*stripe.Source, error)
	AttachSource(ctx context.Context, customerID, sourceID string) (*stripe.Source, error)
}

// IsNotFound classifies a provider error as "the object does not exist".
// Calling logic with a defined fallback (recreate, skip) recovers these
// locally; everything else bubbles up unchanged.
func IsNotFound(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == http.StatusNotFound ||
			stripeErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}
