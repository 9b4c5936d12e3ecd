package models

import (
	"strings"
	"time"

	"github.com/gosimple/unidecode"
	"gorm.io/gorm"
)

// Stripe caps statement descriptors at 22 characters.
const statementDescriptorMax = 22

// FormField is one field definition of an activity's enrollment form.
type FormField struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"` // e.g. "text", "checkbox", "select"
	Options map[string]interface{} `json:"options"`
}

// Label returns the display label for the field, falling back to its name.
func (f FormField) Label() string {
	if f.Options != nil {
		if label, ok := f.Options["label"].(string); ok && label != "" {
			return label
		}
	}
	return f.Name
}

// Activity represents an event members (and optionally guests) can enroll in
type Activity struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name string `gorm:"type:varchar(255)" json:"name"`
	Slug string `gorm:"type:varchar(255);uniqueIndex" json:"slug"`

	// Prices in minor currency units (cents). Nil means free.
	Price         *int64 `json:"price"`
	DiscountPrice *int64 `json:"discount_price"` // member price, nil if no discount tier

	Statement string `gorm:"type:varchar(100)" json:"statement"`

	Form          []FormField `gorm:"serializer:json" json:"form,omitempty"`
	FormIsMedical bool        `gorm:"default:false" json:"form_is_medical"`

	Seats           *int       `json:"seats"` // nil means unlimited
	EnrollmentStart *time.Time `json:"enrollment_start"`
	EnrollmentEnd   *time.Time `json:"enrollment_end"`

	// Relationships
	Enrollments []Enrollment `gorm:"foreignKey:ActivityID" json:"enrollments,omitempty"`
}

// HasForm reports whether enrolling requires filling in a form.
func (a *Activity) HasForm() bool {
	return len(a.Form) > 0
}

// IsFree reports whether the activity has no price tag at all.
func (a *Activity) IsFree() bool {
	return a.Price == nil || *a.Price == 0
}

// PriceFor returns the price applicable to the given membership status.
func (a *Activity) PriceFor(member bool) *int64 {
	if member && a.DiscountPrice != nil {
		return a.DiscountPrice
	}
	return a.Price
}

// StatementDescriptor returns the ASCII-safe descriptor placed on invoices.
func (a *Activity) StatementDescriptor() string {
	statement := a.Statement
	if statement == "" {
		statement = a.Name
	}
	return asciiDescriptor(statement)
}

// FullStatementDescriptor returns the descriptor used on bank redirect
// sources, which allows a longer activity reference.
func (a *Activity) FullStatementDescriptor() string {
	statement := a.Statement
	if statement == "" {
		statement = a.Name
	}
	return strings.TrimSpace(unidecode.Unidecode(statement))
}

// EnrollmentOpen reports whether enrollment is open at the given time.
func (a *Activity) EnrollmentOpen(at time.Time) bool {
	if a.EnrollmentStart != nil && at.Before(*a.EnrollmentStart) {
		return false
	}
	if a.EnrollmentEnd != nil && at.After(*a.EnrollmentEnd) {
		return false
	}
	return true
}

func asciiDescriptor(s string) string {
	out := strings.TrimSpace(unidecode.Unidecode(s))
	if len(out) > statementDescriptorMax {
		out = strings.TrimSpace(out[:statementDescriptorMax])
	}
	return out
}
