package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"member_portal_echo/internal/models"
)

// ErrAlreadyEnrolled is returned when a user already holds an active
// enrollment for the activity.
var ErrAlreadyEnrolled = errors.New("user already has an active enrollment for this activity")

type EnrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindActive returns the user's active enrollment for the activity, or nil.
// Cancelled, refunded and soft-deleted enrollments do not count as active.
func (r *EnrollmentRepository) FindActive(userID, activityID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.
		Preload("Activity").
		Preload("User").
		Where("user_id = ? AND activity_id = ?", userID, activityID).
		Where("state NOT IN ?", []models.EnrollmentState{models.StateCancelled, models.StateRefunded}).
		Order("created_at desc").
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &enrollment, nil
}

// FindByID returns the enrollment with relations loaded.
func (r *EnrollmentRepository) FindByID(id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.Preload("Activity").Preload("User").First(&enrollment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create persists a new enrollment. The one-active-per-(user,activity)
// invariant is guaranteed by a partial unique index on active rows; the
// in-transaction count is only a fast path giving a clean error before
// the insert is attempted.
func (r *EnrollmentRepository) Create(enrollment *models.Enrollment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Enrollment{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND activity_id = ?", enrollment.UserID, enrollment.ActivityID).
			Where("state NOT IN ?", []models.EnrollmentState{models.StateCancelled, models.StateRefunded}).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyEnrolled
		}
		return translateCreateError(tx.Create(enrollment).Error)
	})
}

// translateCreateError maps the unique-index violation raised when a
// concurrent enroll won the race to the same error the count check gives.
func translateCreateError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyEnrolled
	}
	return err
}

// Save persists the full enrollment row.
func (r *EnrollmentRepository) Save(enrollment *models.Enrollment) error {
	return r.db.Save(enrollment).Error
}

// Reload refreshes the enrollment from storage, guarding against a stale
// in-memory view across concurrent requests.
func (r *EnrollmentRepository) Reload(enrollment *models.Enrollment) error {
	return r.db.Preload("Activity").Preload("User").
		First(enrollment, "id = ?", enrollment.ID).Error
}

// SetPaymentInvoice updates only the invoice reference.
func (r *EnrollmentRepository) SetPaymentInvoice(enrollment *models.Enrollment, invoiceID string) error {
	if err := r.db.Model(enrollment).Update("payment_invoice", invoiceID).Error; err != nil {
		return err
	}
	enrollment.PaymentInvoice = &invoiceID
	return nil
}

// SetPaymentSource updates only the source reference.
func (r *EnrollmentRepository) SetPaymentSource(enrollment *models.Enrollment, sourceID string) error {
	if err := r.db.Model(enrollment).Update("payment_source", sourceID).Error; err != nil {
		return err
	}
	enrollment.PaymentSource = &sourceID
	return nil
}

// UpdateState persists only the state column.
func (r *EnrollmentRepository) UpdateState(enrollment *models.Enrollment) error {
	return r.db.Model(enrollment).Update("state", enrollment.State).Error
}

// ExpiredUnstable returns enrollments whose expiry deadline has passed and
// whose state is still subject to cleanup.
func (r *EnrollmentRepository) ExpiredUnstable(now time.Time) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.
		Preload("Activity").
		Preload("User").
		Where("expire IS NOT NULL AND expire <= ?", now).
		Where("state IN ?", []models.EnrollmentState{models.StateCreated, models.StateSeeded}).
		Find(&enrollments).Error
	return enrollments, err
}

// AwaitingPayment returns enrollments that still require payment and were
// created before the given cutoff, for reminder mails.
func (r *EnrollmentRepository) AwaitingPayment(cutoff time.Time) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.
		Preload("Activity").
		Preload("User").
		Where("total_price IS NOT NULL AND total_price != 0").
		Where("state NOT IN ?", []models.EnrollmentState{models.StatePaid, models.StateCancelled, models.StateRefunded}).
		Where("created_at <= ?", cutoff).
		Find(&enrollments).Error
	return enrollments, err
}

// SoftDelete marks the enrollment as logically removed, keeping the row
// for audit.
func (r *EnrollmentRepository) SoftDelete(enrollment *models.Enrollment, reason string) error {
	if err := r.db.Model(enrollment).Update("deleted_reason", reason).Error; err != nil {
		return err
	}
	return r.db.Delete(enrollment).Error
}

// CreatePayment records a payment audit row.
func (r *EnrollmentRepository) CreatePayment(payment *models.Payment) error {
	return r.db.Create(payment).Error
}
