package tasks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"member_portal_echo/internal/models"
	"member_portal_echo/internal/repository"
	"member_portal_echo/internal/services"
)

// ExpireEnrollmentsTaskDef sweeps unstable enrollments past their expiry
// deadline and cancels them, freeing the seat.
type ExpireEnrollmentsTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *ExpireEnrollmentsTaskDef) TaskID() string {
	return "expire_enrollments"
}

// HandleExecution cancels every expired unstable enrollment.
func (t *ExpireEnrollmentsTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	service := services.NewEnrollmentService(
		repository.NewEnrollmentRepository(db),
		repository.NewActivityRepository(db),
		nil,
	)

	swept, err := service.ExpireStale(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":  "success",
		"expired": swept,
	}, nil
}

// ExpireEnrollmentsTask is the singleton instance of ExpireEnrollmentsTaskDef
var ExpireEnrollmentsTask = &ExpireEnrollmentsTaskDef{}
