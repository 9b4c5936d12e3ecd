package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v72"

	"member_portal_echo/internal/models"
	"member_portal_echo/internal/repository"
)

// TransferFee is the bank-redirect transaction fee in minor currency
// units, passed on to the payer on top of the activity price.
const TransferFee int64 = 50

// enrollmentTTL is how long an unstable enrollment may linger before the
// expiry sweep cancels it.
const enrollmentTTL = 4 * time.Hour

var (
	// ErrEnrollmentClosed means the activity is not accepting enrollments
	// at this time.
	ErrEnrollmentClosed = errors.New("enrollment for this activity is closed")

	// ErrActivityFull means all seats are taken.
	ErrActivityFull = errors.New("activity has no seats left")

	// ErrBadTransferSecret means the ownership transfer token did not match.
	ErrBadTransferSecret = errors.New("transfer secret does not match")
)

// EnrollmentService drives the enrollment lifecycle: it creates
// enrollments, advances them along their wanted states, captures form
// data, and settles or cancels them.
type EnrollmentService struct {
	enrollments *repository.EnrollmentRepository
	activities  *repository.ActivityRepository
	mailer      *EmailService
}

func NewEnrollmentService(enrollments *repository.EnrollmentRepository, activities *repository.ActivityRepository, mailer *EmailService) *EnrollmentService {
	return &EnrollmentService{
		enrollments: enrollments,
		activities:  activities,
		mailer:      mailer,
	}
}

// Enroll registers the user for the activity and advances the new
// enrollment one step towards its resting state. Pricing (including the
// member discount) is snapshotted at this point.
func (s *EnrollmentService) Enroll(ctx context.Context, user *models.User, activity *models.Activity) (*models.Enrollment, error) {
	now := time.Now()
	if !activity.EnrollmentOpen(now) {
		return nil, ErrEnrollmentClosed
	}

	if activity.Seats != nil {
		taken, err := s.activities.CountActive(activity.ID)
		if err != nil {
			return nil, err
		}
		if taken >= int64(*activity.Seats) {
			return nil, ErrActivityFull
		}
	}

	expire := now.Add(enrollmentTTL)
	enrollment := &models.Enrollment{
		UserID:     user.ID,
		ActivityID: activity.ID,
		State:      models.StateCreated,
		UserType:   user.Type(),
		Expire:     &expire,
		User:       *user,
		Activity:   *activity,
	}

	if price := activity.PriceFor(user.IsMember); price != nil && *price != 0 {
		p := *price
		total := p + TransferFee
		enrollment.Price = &p
		enrollment.TotalPrice = &total
	}

	if err := s.enrollments.Create(enrollment); err != nil {
		return nil, err
	}

	if _, err := s.Advance(ctx, enrollment); err != nil {
		return nil, err
	}

	return enrollment, nil
}

// Advance moves the enrollment one step towards its wanted state and
// persists the result. The paid state is never entered here; it is only
// reached through the payment flow. Returns the state advanced to, or
// nil when the enrollment is already at its resting point.
func (s *EnrollmentService) Advance(ctx context.Context, enrollment *models.Enrollment) (*models.EnrollmentState, error) {
	wanted := enrollment.WantedState()
	if wanted == nil || *wanted == models.StatePaid {
		return nil, nil
	}

	if err := enrollment.TransitionTo(*wanted); err != nil {
		return nil, err
	}
	if *wanted == models.StateConfirmed {
		enrollment.Expire = nil
	}
	if err := s.enrollments.Save(enrollment); err != nil {
		return nil, err
	}

	if *wanted == models.StateConfirmed {
		s.sendMail(enrollment, "Enrollment confirmed",
			fmt.Sprintf("Your enrollment for %s is confirmed.", enrollment.Activity.Name))
	}

	return wanted, nil
}

// SubmitForm captures the activity's form values onto the enrollment and
// advances it past the seeded state.
func (s *EnrollmentService) SubmitForm(ctx context.Context, enrollment *models.Enrollment, values map[string]interface{}) error {
	if !enrollment.Activity.HasForm() {
		return fmt.Errorf("activity %d has no form", enrollment.ActivityID)
	}

	enrollment.SetFormData(values)
	if err := s.enrollments.Save(enrollment); err != nil {
		return err
	}

	_, err := s.Advance(ctx, enrollment)
	return err
}

// MarkPaid transitions the enrollment to paid after a settled invoice and
// records the payment for audit.
func (s *EnrollmentService) MarkPaid(ctx context.Context, enrollment *models.Enrollment, invoice *stripe.Invoice, sourceID string) error {
	if err := enrollment.TransitionTo(models.StatePaid); err != nil {
		return err
	}
	enrollment.Expire = nil
	if err := s.enrollments.Save(enrollment); err != nil {
		return err
	}

	now := time.Now()
	payment := &models.Payment{
		EnrollmentID: enrollment.ID,
		UserID:       enrollment.UserID,
		ActivityID:   enrollment.ActivityID,
		Amount:       invoice.AmountDue,
		Status:       models.PaymentStatusPaid,
		InvoiceID:    invoice.ID,
		SourceID:     sourceID,
		PaidAt:       &now,
	}
	if err := s.enrollments.CreatePayment(payment); err != nil {
		return err
	}

	s.sendMail(enrollment, "Payment received",
		fmt.Sprintf("Your payment for %s was received. See you there!", enrollment.Activity.Name))
	return nil
}

// Cancel moves the enrollment to cancelled. The row is kept for audit;
// reason is recorded on it.
func (s *EnrollmentService) Cancel(ctx context.Context, enrollment *models.Enrollment, reason string) error {
	if err := enrollment.TransitionTo(models.StateCancelled); err != nil {
		return err
	}
	enrollment.DeletedReason = reason
	return s.enrollments.Save(enrollment)
}

// Refund moves a paid or cancelled enrollment to refunded and records the
// counter-payment.
func (s *EnrollmentService) Refund(ctx context.Context, enrollment *models.Enrollment) error {
	if err := enrollment.TransitionTo(models.StateRefunded); err != nil {
		return err
	}
	if err := s.enrollments.UpdateState(enrollment); err != nil {
		return err
	}

	if enrollment.TotalPrice == nil || *enrollment.TotalPrice == 0 {
		return nil
	}
	now := time.Now()
	return s.enrollments.CreatePayment(&models.Payment{
		EnrollmentID: enrollment.ID,
		UserID:       enrollment.UserID,
		ActivityID:   enrollment.ActivityID,
		Amount:       -*enrollment.TotalPrice,
		Status:       models.PaymentStatusRefunded,
		PaidAt:       &now,
	})
}

// Transfer hands the enrollment to another user when the transfer secret
// matches, then rotates the secret.
func (s *EnrollmentService) Transfer(ctx context.Context, enrollment *models.Enrollment, secret string, to *models.User) error {
	if secret == "" || secret != enrollment.TransferSecret {
		return ErrBadTransferSecret
	}

	enrollment.UserID = to.ID
	enrollment.User = *to
	enrollment.UserType = to.Type()
	enrollment.TransferSecret = uuid.New().String()
	return s.enrollments.Save(enrollment)
}

// ExpireStale cancels unstable enrollments whose deadline passed and
// soft-deletes the rows. A user cancellation keeps its row visible; an
// expired one disappears from default queries but survives for audit.
// Returns how many were swept.
func (s *EnrollmentService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.enrollments.ExpiredUnstable(now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range stale {
		enrollment := &stale[i]
		if err := s.Cancel(ctx, enrollment, "enrollment expired"); err != nil {
			log.Printf("Failed to expire enrollment %s: %v", enrollment.ID, err)
			continue
		}
		if err := s.enrollments.SoftDelete(enrollment, "enrollment expired"); err != nil {
			log.Printf("Failed to remove expired enrollment %s: %v", enrollment.ID, err)
			continue
		}
		swept++
	}
	return swept, nil
}

// sendMail is best-effort; a failed mail never fails the flow.
func (s *EnrollmentService) sendMail(enrollment *models.Enrollment, subject, body string) {
	if s.mailer == nil || enrollment.User.Email == "" {
		return
	}
	if err := s.mailer.SendEmail([]string{enrollment.User.Email}, subject, body); err != nil {
		log.Printf("Failed to send %q mail for enrollment %s: %v", subject, enrollment.ID, err)
	}
}
