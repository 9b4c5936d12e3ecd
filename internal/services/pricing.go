package services

import (
	"context"
	"fmt"

	"member_portal_echo/internal/models"
)

// PricingService derives invoice line items from an enrollment and its
// activity. The line ordering and labels are what end up on the payer's
// statement, so they are fixed.
type PricingService struct {
	gateway PaymentGateway
}

func NewPricingService(gateway PaymentGateway) *PricingService {
	return &PricingService{gateway: gateway}
}

// ComputedInvoiceLines returns the ordered invoice lines for the
// enrollment, plus the standard coupon when the user pays exactly the
// discount tier. Any other price below or above the full price gets an
// explicit adjustment line instead; no further tiers are inferred.
func (s *PricingService) ComputedInvoiceLines(ctx context.Context, enrollment *models.Enrollment) (*ComputedLines, error) {
	activity := &enrollment.Activity

	var userPrice, totalPrice int64
	if enrollment.Price != nil {
		userPrice = *enrollment.Price
	}
	if enrollment.TotalPrice != nil {
		totalPrice = *enrollment.TotalPrice
	}
	transferPrice := totalPrice - userPrice

	var fullPrice int64
	if activity.Price != nil {
		fullPrice = *activity.Price
	}

	result := &ComputedLines{}

	// Always charge the participation cost at the full rate; discounts are
	// applied as separate lines or a coupon so the statement stays legible.
	result.Items = append(result.Items, InvoiceLine{
		Amount:       fullPrice,
		Description:  fmt.Sprintf("Participation cost: %s", activity.Name),
		Discountable: true,
	})

	if enrollment.Price != nil && *enrollment.Price != 0 {
		result.Items = append(result.Items, InvoiceLine{
			Amount:       transferPrice,
			Description:  "Transaction fee",
			Discountable: false,
		})
	}

	// Paying the full rate, nothing to adjust.
	if sameAmountValue(enrollment.Price, activity.Price) {
		return result, nil
	}

	// Paying exactly the discount tier: the standard coupon covers it.
	if sameAmountValue(enrollment.Price, activity.DiscountPrice) {
		coupon, err := s.gateway.EnsureCoupon(ctx, activity)
		if err != nil {
			return nil, err
		}
		result.Coupon = coupon
		return result, nil
	}

	// Manually overridden price outside the two standard tiers.
	adjustment := userPrice - fullPrice
	label := "Special discount"
	if adjustment > 0 {
		label = "Surcharge"
	}
	result.Items = append(result.Items, InvoiceLine{
		Amount:       adjustment,
		Description:  label,
		Discountable: true,
	})

	return result, nil
}

func sameAmountValue(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
