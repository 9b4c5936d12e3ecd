package services

import (
	"context"
	"fmt"
	"os"

	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"

	"member_portal_echo/internal/models"
)

const pendingItemsLimit = 100

// StripeGateway implements PaymentGateway against the Stripe API.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway() *StripeGateway {
	api := &client.API{}
	api.Init(os.Getenv("STRIPE_SECRET_KEY"), nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) Customer(ctx context.Context, id string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	return g.api.Customers.Get(id, params)
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, user *models.User) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(user.Name),
		Email: stripe.String(user.Email),
	}
	params.Context = ctx
	params.AddMetadata("user-id", fmt.Sprintf("%d", user.ID))
	return g.api.Customers.New(params)
}

func (g *StripeGateway) Invoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	return g.api.Invoices.Get(id, params)
}

func (g *StripeGateway) CreateInvoice(ctx context.Context, customerID, statementDescriptor string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceParams{
		Customer:            stripe.String(customerID),
		StatementDescriptor: stripe.String(statementDescriptor),
	}
	params.Context = ctx
	return g.api.Invoices.New(params)
}

func (g *StripeGateway) FinalizeInvoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceFinalizeParams{}
	params.Context = ctx
	return g.api.Invoices.FinalizeInvoice(id, params)
}

func (g *StripeGateway) PayInvoice(ctx context.Context, id, sourceID string) (*stripe.Invoice, error) {
	params := &stripe.InvoicePayParams{
		Source: stripe.String(sourceID),
	}
	params.Context = ctx
	return g.api.Invoices.Pay(id, params)
}

func (g *StripeGateway) DeleteInvoice(ctx context.Context, id string) error {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	_, err := g.api.Invoices.Del(id, params)
	return err
}

func (g *StripeGateway) PendingInvoiceItems(ctx context.Context, customerID string) ([]*stripe.InvoiceItem, error) {
	params := &stripe.InvoiceItemListParams{
		Customer: stripe.String(customerID),
		Pending:  stripe.Bool(true),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(pendingItemsLimit)

	var items []*stripe.InvoiceItem
	iter := g.api.InvoiceItems.List(params)
	for iter.Next() {
		items = append(items, iter.InvoiceItem())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (g *StripeGateway) CreateInvoiceItem(ctx context.Context, customerID string, line InvoiceLine) error {
	params := &stripe.InvoiceItemParams{
		Customer:     stripe.String(customerID),
		Currency:     stripe.String(string(stripe.CurrencyEUR)),
		Amount:       stripe.Int64(line.Amount),
		Description:  stripe.String(line.Description),
		Discountable: stripe.Bool(line.Discountable),
	}
	params.Context = ctx
	_, err := g.api.InvoiceItems.New(params)
	return err
}

func (g *StripeGateway) DeleteInvoiceItem(ctx context.Context, id string) error {
	params := &stripe.InvoiceItemParams{}
	params.Context = ctx
	_, err := g.api.InvoiceItems.Del(id, params)
	return err
}

// EnsureCoupon returns the standard discount coupon for the activity,
// creating it on first use. The coupon knocks the member discount off a
// full-price participation line, once.
func (g *StripeGateway) EnsureCoupon(ctx context.Context, activity *models.Activity) (*stripe.Coupon, error) {
	if activity.Price == nil || activity.DiscountPrice == nil {
		return nil, fmt.Errorf("activity %d has no discount tier", activity.ID)
	}

	couponID := fmt.Sprintf("activity-%d-discount", activity.ID)

	getParams := &stripe.CouponParams{}
	getParams.Context = ctx
	coupon, err := g.api.Coupons.Get(couponID, getParams)
	if err == nil {
		return coupon, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	params := &stripe.CouponParams{
		ID:        stripe.String(couponID),
		Name:      stripe.String(fmt.Sprintf("Member discount %s", activity.Name)),
		AmountOff: stripe.Int64(*activity.Price - *activity.DiscountPrice),
		Currency:  stripe.String(string(stripe.CurrencyEUR)),
		Duration:  stripe.String(string(stripe.CouponDurationOnce)),
	}
	params.Context = ctx
	return g.api.Coupons.New(params)
}

func (g *StripeGateway) DeleteDiscount(ctx context.Context, customerID string) error {
	params := &stripe.DiscountParams{}
	params.Context = ctx
	_, err := g.api.Discounts.Del(customerID, params)
	return err
}

func (g *StripeGateway) SetDiscount(ctx context.Context, customerID, couponID string) error {
	params := &stripe.CustomerParams{
		Coupon: stripe.String(couponID),
	}
	params.Context = ctx
	_, err := g.api.Customers.Update(customerID, params)
	return err
}

func (g *StripeGateway) Source(ctx context.Context, id string) (*stripe.Source, error) {
	params := &stripe.SourceObjectParams{}
	params.Context = ctx
	return g.api.Sources.Get(id, params)
}

func (g *StripeGateway) CreateSource(ctx context.Context, req SourceRequest) (*stripe.Source, error) {
	params := &stripe.SourceObjectParams{
		Type:     stripe.String("ideal"),
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(string(stripe.CurrencyEUR)),
		Flow:     stripe.String(string(stripe.SourceFlowRedirect)),
		Redirect: &stripe.RedirectParams{
			ReturnURL: stripe.String(req.ReturnURL),
		},
		TypeData: map[string]string{
			"bank": req.Bank,
		},
		StatementDescriptor: stripe.String(req.StatementDescriptor),
	}
	params.Context = ctx
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	return g.api.Sources.New(params)
}

// AttachSource binds the source to the customer's billing record and
// returns the source as the customer now sees it.
func (g *StripeGateway) AttachSource(ctx context.Context, customerID, sourceID string) (*stripe.Source, error) {
	params := &stripe.CustomerSourceParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	if err := params.SetSource(sourceID); err != nil {
		return nil, err
	}
	if _, err := g.api.PaymentSource.New(params); err != nil {
		return nil, err
	}
	return g.Source(ctx, sourceID)
}
