package repository

import (
	"gorm.io/gorm"

	"member_portal_echo/internal/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByFirebaseUID(uid string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("firebase_uid = ?", uid).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetStripeCustomerID updates only the billing customer reference.
func (r *UserRepository) SetStripeCustomerID(user *models.User, customerID string) error {
	if err := r.db.Model(user).Update("stripe_customer_id", customerID).Error; err != nil {
		return err
	}
	user.StripeCustomerID = &customerID
	return nil
}
