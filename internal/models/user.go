package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user in the system
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name        string `gorm:"type:varchar(255)" json:"name"`
	Email       string `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	FirebaseUID string `gorm:"type:varchar(128);uniqueIndex" json:"-"`

	// IsMember grants the discounted member tier on paid activities.
	IsMember bool `gorm:"default:false" json:"is_member"`

	// StripeCustomerID is the external billing customer reference, created
	// lazily the first time the user pays for something.
	StripeCustomerID *string `gorm:"type:varchar(255)" json:"-"`

	// Relationships
	Enrollments []Enrollment `gorm:"foreignKey:UserID" json:"enrollments,omitempty"`
	Payments    []Payment    `gorm:"foreignKey:UserID" json:"payments,omitempty"`
}

// Type returns the user type snapshotted onto new enrollments.
func (u *User) Type() UserType {
	if u.IsMember {
		return UserTypeMember
	}
	return UserTypeGuest
}
