package repository

import (
	"backend/entity"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) FindByID(id uint) (*entity.User, error) {
	var user entity.User
	if err := r.DB.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByUtorid(utorid string) (*entity.User, error) {
	var user entity.User
	if err := r.DB.Where("utorid = ?", utorid).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByResetToken(token string) (*entity.User, error) {
	var user entity.User
	if err := r.DB.Where("reset_token = ?", token).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) ExistsByUtoridOrEmail(utorid, email string) (bool, error) {
	var cnt int64
	err := r.DB.Model(&entity.User{}).
		Where("utorid = ? OR email = ?", utorid, email).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *UserRepository) Create(user *entity.User) error {
	return r.DB.Create(user).Error
}

func (r *UserRepository) Update(userID uint, updates map[string]any) error {
	return r.DB.Model(&entity.User{}).Where("id = ?", userID).Updates(updates).Error
}

// IDsMatchingName finds users whose utorid or name contains the needle.
// Used to resolve the transaction list's name filter.
func (r *UserRepository) IDsMatchingName(name string) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&entity.User{}).
		Where("utorid LIKE ? OR name LIKE ?", "%"+name+"%", "%"+name+"%").
		Pluck("id", &ids).Error
	return ids, err
}

type UserFilter struct {
	Name      string
	Role      string
	Verified  *bool
	Activated *bool
	Page      int
	Limit     int
}

func (r *UserRepository) List(f UserFilter) (int64, []entity.User, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 10
	}

	q := r.DB.Model(&entity.User{})
	if f.Name != "" {
		q = q.Where("utorid LIKE ? OR name LIKE ?", "%"+f.Name+"%", "%"+f.Name+"%")
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Verified != nil {
		q = q.Where("verified = ?", *f.Verified)
	}
	if f.Activated != nil {
		if *f.Activated {
			q = q.Where("last_login IS NOT NULL")
		} else {
			q = q.Where("last_login IS NULL")
		}
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, nil, err
	}

	var users []entity.User
	err := q.Order("id").
		Limit(f.Limit).Offset((f.Page - 1) * f.Limit).
		Find(&users).Error
	return count, users, err
}

// ApplyPointsDelta adds delta (may be negative) to the user's balance.
// Callers must run this inside the same transaction that records the
// causing Transaction row.
func (r *UserRepository) ApplyPointsDelta(tx *gorm.DB, userID uint, delta int) error {
	return tx.Model(&entity.User{}).
		Where("id = ?", userID).
		Update("points", gorm.Expr("points + ?", delta)).Error
}

// DebitIfSufficient debits amount only when the stored balance still covers
// it. The balance check and the debit are one statement, so two concurrent
// debits cannot both pass a stale sufficiency check.
func (r *UserRepository) DebitIfSufficient(tx *gorm.DB, userID uint, amount int) (bool, error) {
	res := tx.Model(&entity.User{}).
		Where("id = ? AND points >= ?", userID, amount).
		Update("points", gorm.Expr("points - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
