package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentStatus is the settlement status of a recorded payment.
type PaymentStatus string

const (
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment records a settled charge (or refund) for an enrollment. An
// enrollment can have multiple payments, e.g. when one attempt failed.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	EnrollmentID string `gorm:"type:uuid;index" json:"enrollment_id"`
	UserID       uint   `gorm:"index" json:"user_id"`
	ActivityID   uint   `gorm:"index" json:"activity_id"`

	Amount   int64         `json:"amount"` // minor currency units
	Currency string        `gorm:"type:varchar(3);default:'eur'" json:"currency"`
	Status   PaymentStatus `gorm:"type:varchar(20)" json:"status"`

	InvoiceID string `gorm:"type:varchar(255)" json:"invoice_id"`
	SourceID  string `gorm:"type:varchar(255)" json:"source_id"`

	PaidAt *time.Time `json:"paid_at"`

	// Relationships
	Enrollment Enrollment `gorm:"foreignKey:EnrollmentID" json:"enrollment,omitempty"`
	User       User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
