package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserType records what kind of user enrolled, snapshotted at creation.
type UserType string

const (
	UserTypeMember UserType = "member"
	UserTypeGuest  UserType = "guest"
)

// Enrollment is a user's registration for one activity. Optionally paid.
//
// At most one active (non-cancelled, non-refunded, non-deleted) enrollment
// exists per (user, activity) pair; the repository revalidates this inside
// the creating transaction.
type Enrollment struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	DeletedReason string `gorm:"type:varchar(255)" json:"deleted_reason,omitempty"`

	UserID     uint `gorm:"index:idx_enrollments_user_activity" json:"user_id"`
	ActivityID uint `gorm:"index:idx_enrollments_user_activity" json:"activity_id"`

	State EnrollmentState `gorm:"type:varchar(20);default:'created'" json:"state"`

	// Prices in minor currency units. Price is what the user owes for the
	// activity itself; TotalPrice includes the transfer fee and is only set
	// once Price is known.
	Price      *int64 `json:"price"`
	TotalPrice *int64 `json:"total_price"`

	// External payment references, owned by this enrollment.
	PaymentIntent  *string `gorm:"type:varchar(255)" json:"payment_intent,omitempty"`
	PaymentInvoice *string `gorm:"type:varchar(255)" json:"payment_invoice,omitempty"`
	PaymentSource  *string `gorm:"type:varchar(255)" json:"payment_source,omitempty"`

	UserType UserType `gorm:"type:varchar(20);default:'member'" json:"user_type"`

	// Expire is the deadline before unstable states are swept away.
	Expire *time.Time `json:"expire,omitempty"`

	TransferSecret string `gorm:"type:varchar(64)" json:"-"`

	// Data holds the encrypted form capture blob.
	Data SecureBlob `json:"-"`

	// Relationships
	User     User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Activity Activity  `gorm:"foreignKey:ActivityID" json:"activity,omitempty"`
	Payments []Payment `gorm:"foreignKey:EnrollmentID" json:"payments,omitempty"`
}

// BeforeCreate assigns the opaque id and transfer secret.
func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.TransferSecret == "" {
		e.TransferSecret = uuid.New().String()
	}
	if e.State == "" {
		e.State = StateCreated
	}
	return nil
}

// TransitionTo moves the enrollment along an allowed edge, or fails with
// an InvalidTransitionError.
func (e *Enrollment) TransitionTo(to EnrollmentState) error {
	if err := ValidateTransition(e.State, to); err != nil {
		return err
	}
	e.State = to
	return nil
}

// WantedState returns the next state this enrollment should advance to,
// given its own data. Returns nil when the enrollment is already at its
// natural resting point.
//
// Enrollments needing form data stay seeded until filled; paid activities
// require a price before advancing to paid; free activities go straight
// to confirmed.
func (e *Enrollment) WantedState() *EnrollmentState {
	if CanTransition(e.State, StateSeeded) && e.Activity.HasForm() {
		s := StateSeeded
		return &s
	}
	if CanTransition(e.State, StatePaid) && e.Price != nil && *e.Price != 0 {
		s := StatePaid
		return &s
	}
	if CanTransition(e.State, StateConfirmed) {
		s := StateConfirmed
		return &s
	}
	return nil
}

// IsStable reports whether the enrollment will not auto-expire.
func (e *Enrollment) IsStable() bool {
	return e.State.IsStable()
}

// IsDiscounted reports whether the enrollment got the discounted tier.
func (e *Enrollment) IsDiscounted() bool {
	return sameAmount(e.Price, e.Activity.DiscountPrice)
}

// RequiresPayment reports whether money must still be collected.
func (e *Enrollment) RequiresPayment() bool {
	return !e.CreatedAt.IsZero() &&
		e.TotalPrice != nil && *e.TotalPrice != 0 &&
		e.State != StateCancelled
}

// SetFormData captures submitted form values according to the activity's
// field definitions. Values are stored three ways: raw by field name,
// labels by field name, and an export-ready mapping keyed by label. The
// activity's medical flag is snapshotted so later redaction decisions do
// not depend on the activity being mutated afterwards.
func (e *Enrollment) SetFormData(values map[string]interface{}) {
	fields := map[string]interface{}{}
	labels := map[string]interface{}{}
	exportable := map[string]interface{}{}

	for _, field := range e.Activity.Form {
		raw := values[field.Name]
		label := field.Label()

		if field.Type == "checkbox" {
			raw = truthy(raw)
		}

		fields[field.Name] = raw
		labels[field.Name] = label
		exportable[label] = raw
	}

	if e.Data == nil {
		e.Data = SecureBlob{}
	}
	e.Data["form"] = map[string]interface{}{
		"fields":     fields,
		"labels":     labels,
		"exportable": exportable,
		"filled":     true,
		"medical":    e.Activity.FormIsMedical,
	}
}

// FormValues returns the captured raw values, keyed by field name.
func (e *Enrollment) FormValues() map[string]interface{} {
	return e.formSection("fields")
}

// FormExport returns the export-ready values, keyed by field label.
func (e *Enrollment) FormExport() map[string]interface{} {
	return e.formSection("exportable")
}

// FormFilled reports whether the form was ever captured.
func (e *Enrollment) FormFilled() bool {
	form, ok := e.Data["form"].(map[string]interface{})
	if !ok {
		return false
	}
	filled, _ := form["filled"].(bool)
	return filled
}

// IsFormExportable returns nil if no form was ever filled; otherwise true
// unless the form held medical data at capture time.
func (e *Enrollment) IsFormExportable() *bool {
	if !e.FormFilled() {
		return nil
	}
	form, _ := e.Data["form"].(map[string]interface{})
	medical, _ := form["medical"].(bool)
	exportable := !medical
	return &exportable
}

func (e *Enrollment) formSection(key string) map[string]interface{} {
	form, ok := e.Data["form"].(map[string]interface{})
	if !ok {
		return nil
	}
	section, _ := form[key].(map[string]interface{})
	return section
}

func sameAmount(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		// Loose form-input cast: only the empty string and "0" are falsy.
		return t != "" && t != "0"
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}
