package repository

import (
	"gorm.io/gorm"

	"member_portal_echo/internal/models"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) FindByID(id uint) (*models.Activity, error) {
	var activity models.Activity
	if err := r.db.First(&activity, id).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *ActivityRepository) FindBySlug(slug string) (*models.Activity, error) {
	var activity models.Activity
	if err := r.db.Where("slug = ?", slug).First(&activity).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *ActivityRepository) List() ([]models.Activity, error) {
	var activities []models.Activity
	err := r.db.Order("created_at desc").Find(&activities).Error
	return activities, err
}

// CountActive counts enrollments holding a seat for the activity.
func (r *ActivityRepository) CountActive(activityID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Enrollment{}).
		Where("activity_id = ?", activityID).
		Where("state NOT IN ?", []models.EnrollmentState{models.StateCancelled, models.StateRefunded}).
		Count(&count).Error
	return count, err
}
