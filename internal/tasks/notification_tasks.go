package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"member_portal_echo/internal/models"
	"member_portal_echo/internal/repository"
	"member_portal_echo/internal/services"
)

// reminderAge is how old an unpaid enrollment must be before we nag.
const reminderAge = time.Hour

// PaymentReminderTaskDef mails users whose enrollment still requires
// payment, so they finish before the expiry sweep cancels it.
type PaymentReminderTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *PaymentReminderTaskDef) TaskID() string {
	return "payment_reminder"
}

// HandleExecution sends one reminder mail per unpaid enrollment. Send
// failures are counted but do not stop the run.
func (t *PaymentReminderTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	enrollments := repository.NewEnrollmentRepository(db)
	mailer := services.NewEmailService()

	pending, err := enrollments.AwaitingPayment(time.Now().Add(-reminderAge))
	if err != nil {
		return nil, err
	}

	sent := 0
	failed := 0
	for i := range pending {
		enrollment := &pending[i]
		if enrollment.User.Email == "" {
			continue
		}

		body := fmt.Sprintf(
			"Your enrollment for %s is waiting for payment. Complete it before the deadline or your spot will be released.",
			enrollment.Activity.Name,
		)
		if err := mailer.SendEmail([]string{enrollment.User.Email}, "Payment reminder", body); err != nil {
			log.Printf("Failed to send payment reminder for enrollment %s: %v", enrollment.ID, err)
			failed++
			continue
		}
		sent++
	}

	result := map[string]interface{}{
		"total":  len(pending),
		"sent":   sent,
		"failed": failed,
	}
	if failed > 0 && sent == 0 && len(pending) > 0 {
		return result, fmt.Errorf("all %d reminder mails failed", failed)
	}
	return result, nil
}

// PaymentReminderTask is the singleton instance of PaymentReminderTaskDef
var PaymentReminderTask = &PaymentReminderTaskDef{}
