package services

import (
	"context"

	stripe "github.com/stripe/stripe-go/v72"

	"member_portal_echo/internal/models"
)

// CustomerStore persists the external billing customer reference.
type CustomerStore interface {
	SetStripeCustomerID(user *models.User, customerID string) error
}

// CustomerService resolves a user to their external billing customer,
// creating one on first use.
type CustomerService struct {
	gateway PaymentGateway
	users   CustomerStore
}

func NewCustomerService(gateway PaymentGateway, users CustomerStore) *CustomerService {
	return &CustomerService{gateway: gateway, users: users}
}

// Customer returns the billing customer for the user. A dangling
// reference (deleted on the provider side) is recreated transparently.
func (s *CustomerService) Customer(ctx context.Context, user *models.User) (*stripe.Customer, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		customer, err := s.gateway.Customer(ctx, *user.StripeCustomerID)
		if err == nil {
			return customer, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}

	customer, err := s.gateway.CreateCustomer(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetStripeCustomerID(user, customer.ID); err != nil {
		return nil, err
	}
	return customer, nil
}
