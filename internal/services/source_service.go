package services

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v72"

	"member_portal_echo/internal/models"
)

// SourceService creates and reuses bank-redirect payment sources for
// enrollments. A source is bound to one bank and is single-use.
type SourceService struct {
	gateway   PaymentGateway
	customers *CustomerService
	store     EnrollmentStore
	baseURL   string
}

func NewSourceService(gateway PaymentGateway, customers *CustomerService, store EnrollmentStore, baseURL string) *SourceService {
	return &SourceService{
		gateway:   gateway,
		customers: customers,
		store:     store,
		baseURL:   baseURL,
	}
}

// Source returns the enrollment's payment source. Without a bank filter
// the most recent source is returned as-is; with one, the existing source
// is only reused when its bank matches and it is still pending. A fresh
// source cannot be created without a target bank.
func (s *SourceService) Source(ctx context.Context, enrollment *models.Enrollment, bank string) (*stripe.Source, error) {
	if enrollment.PaymentSource != nil && *enrollment.PaymentSource != "" {
		source, err := s.gateway.Source(ctx, *enrollment.PaymentSource)
		if err == nil {
			if bank == "" {
				return source, nil
			}
			if sourceBank(source) == bank && source.Status == stripe.SourceStatusPending {
				return source, nil
			}
		} else if !IsNotFound(err) {
			return nil, err
		}
	}

	if bank == "" {
		return nil, ErrSourceNotFound
	}

	return s.createSource(ctx, enrollment, bank)
}

// SourceRedirect returns the URL the payer must visit to fulfill the
// source's payment, or "" when there is nothing to redirect to (the
// source already resolved, or the provider hasn't produced a URL yet).
// Responses built from it must be private and uncached.
func (s *SourceService) SourceRedirect(source *stripe.Source) string {
	if source.Redirect != nil && source.Redirect.Status == "pending" && source.Redirect.URL != "" {
		return source.Redirect.URL
	}
	return ""
}

func (s *SourceService) createSource(ctx context.Context, enrollment *models.Enrollment, bank string) (*stripe.Source, error) {
	var totalPrice int64
	if enrollment.TotalPrice != nil {
		totalPrice = *enrollment.TotalPrice
	}

	source, err := s.gateway.CreateSource(ctx, SourceRequest{
		Amount:              totalPrice,
		Bank:                bank,
		ReturnURL:           s.returnURL(enrollment),
		StatementDescriptor: enrollment.Activity.FullStatementDescriptor(),
		Metadata: map[string]string{
			"activity-id":   fmt.Sprintf("%d", enrollment.ActivityID),
			"enrollment-id": enrollment.ID,
			"user-id":       fmt.Sprintf("%d", enrollment.UserID),
		},
	})
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.Customer(ctx, &enrollment.User)
	if err != nil {
		return nil, err
	}

	source, err = s.gateway.AttachSource(ctx, customer.ID, source.ID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetPaymentSource(enrollment, source.ID); err != nil {
		return nil, err
	}

	return source, nil
}

func (s *SourceService) returnURL(enrollment *models.Enrollment) string {
	return fmt.Sprintf("%s/activities/%d/pay/return", s.baseURL, enrollment.ActivityID)
}

func sourceBank(source *stripe.Source) string {
	if source.TypeData == nil {
		return ""
	}
	bank, _ := source.TypeData["bank"].(string)
	return bank
}
