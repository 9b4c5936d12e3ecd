package handlers

import (
	"testing"
	"time"

	"member_portal_echo/internal/models"
)

func amount(v int64) *int64 {
	return &v
}

func TestActivityCacheKey(t *testing.T) {
	if got := activityCacheKey(42); got != "activity.42" {
		t.Errorf("activityCacheKey(42) = %q, want activity.42", got)
	}
}

func TestViewOf(t *testing.T) {
	paidActivity := models.Activity{ID: 1, Price: amount(1000)}

	tests := []struct {
		name       string
		enrollment models.Enrollment
		needsForm  bool
		needsPay   bool
	}{
		{
			name: "seeded enrollment without form data needs the form",
			enrollment: models.Enrollment{
				State:    models.StateSeeded,
				Activity: models.Activity{Form: []models.FormField{{Name: "size"}}},
			},
			needsForm: true,
			needsPay:  false,
		},
		{
			name: "confirmed unpaid enrollment needs payment",
			enrollment: models.Enrollment{
				State:      models.StateConfirmed,
				CreatedAt:  time.Now(),
				Price:      amount(1000),
				TotalPrice: amount(1050),
				Activity:   paidActivity,
			},
			needsForm: false,
			needsPay:  true,
		},
		{
			name: "paid enrollment needs nothing",
			enrollment: models.Enrollment{
				State:      models.StatePaid,
				CreatedAt:  time.Now(),
				Price:      amount(1000),
				TotalPrice: amount(1050),
				Activity:   paidActivity,
			},
			needsForm: false,
			needsPay:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			view := viewOf(&tc.enrollment)
			if view.NeedsForm != tc.needsForm {
				t.Errorf("NeedsForm = %v, want %v", view.NeedsForm, tc.needsForm)
			}
			if view.NeedsPay != tc.needsPay {
				t.Errorf("NeedsPay = %v, want %v", view.NeedsPay, tc.needsPay)
			}
			if view.State != tc.enrollment.State {
				t.Errorf("State = %s, want %s", view.State, tc.enrollment.State)
			}
		})
	}
}
