package services

import (
	"errors"
	"time"

	"backend/entity"
	"backend/pkg/apperr"
	"backend/repository"
	"backend/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	DB    *gorm.DB
	Users *repository.UserRepository
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db, Users: repository.NewUserRepository(db)}
}

type RegisterInput struct {
	Utorid string
	Name   string
	Email  string
}

// Register creates a user on behalf of a cashier+. The account starts with a
// temporary password and a one-week reset token the new user activates with.
func (s *UserService) Register(in *RegisterInput) (*entity.User, error) {
	if in.Utorid == "" || in.Name == "" || in.Email == "" {
		return nil, apperr.Validation("Missing required fields")
	}
	if !utils.ValidUtorid(in.Utorid) {
		return nil, apperr.Validation("Invalid utorid format")
	}
	if !utils.ValidEmail(in.Email) {
		return nil, apperr.Validation("Invalid email format")
	}
	if len(in.Name) < 1 || len(in.Name) > 50 {
		return nil, apperr.Validation("Name must be 1-50 characters")
	}

	exists, err := s.Users.ExistsByUtoridOrEmail(in.Utorid, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("User with that utorid or email already exists")
	}

	tempHash, err := bcrypt.GenerateFromPassword([]byte("temp"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	resetToken := uuid.NewString()
	expiresAt := time.Now().Add(7 * 24 * time.Hour)

	user := entity.User{
		Utorid:         in.Utorid,
		Name:           in.Name,
		Email:          in.Email,
		Password:       string(tempHash),
		Role:           entity.RoleRegular,
		ResetToken:     &resetToken,
		ResetExpiresAt: &expiresAt,
	}
	if err := s.Users.Create(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) Get(id uint) (*entity.User, error) {
	user, err := s.Users.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(f repository.UserFilter) (int64, []entity.User, error) {
	return s.Users.List(f)
}

type ProfileUpdate struct {
	Name     *string
	Email    *string
	Birthday *string
}

func (s *UserService) UpdateProfile(userID uint, in *ProfileUpdate) (*entity.User, error) {
	updates := map[string]any{}

	if in.Name != nil {
		if len(*in.Name) < 1 || len(*in.Name) > 50 {
			return nil, apperr.Validation("Name must be 1-50 characters")
		}
		updates["name"] = *in.Name
	}
	if in.Email != nil {
		if !utils.ValidEmail(*in.Email) {
			return nil, apperr.Validation("Invalid email format")
		}
		updates["email"] = *in.Email
	}
	if in.Birthday != nil {
		if !utils.ValidDate(*in.Birthday) {
			return nil, apperr.Validation("Invalid date")
		}
		updates["birthday"] = *in.Birthday
	}

	if len(updates) == 0 {
		return nil, apperr.Validation("No fields to update")
	}
	if err := s.Users.Update(userID, updates); err != nil {
		return nil, err
	}
	return s.Get(userID)
}

func (s *UserService) ChangePassword(userID uint, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return apperr.Validation("Missing required fields")
	}
	if !utils.ValidPassword(newPassword) {
		return apperr.Validation("Password does not meet requirements")
	}

	user, err := s.Get(userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return apperr.Forbidden("Invalid current password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.Users.Update(userID, map[string]any{"password": string(hash)})
}

type AdminUserUpdate struct {
	Email      *string
	Verified   *bool
	Suspicious *bool
	Role       *string
}

// AdminUpdate applies a manager/superuser edit. Verified is one-way;
// managers may only grant regular/cashier and may not hand cashier to a
// suspicious user; promotion to cashier clears the suspicious flag.
func (s *UserService) AdminUpdate(actor *entity.User, userID uint, in *AdminUserUpdate) (*entity.User, error) {
	if in.Email == nil && in.Verified == nil && in.Suspicious == nil && in.Role == nil {
		return nil, apperr.Validation("No fields to update")
	}

	user, err := s.Get(userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}

	if in.Email != nil {
		if !utils.ValidEmail(*in.Email) {
			return nil, apperr.Validation("Invalid email format")
		}
		updates["email"] = *in.Email
	}
	if in.Verified != nil {
		// One-way transition; a false value is ignored rather than rejected.
		if *in.Verified {
			updates["verified"] = true
		}
	}
	if in.Suspicious != nil {
		updates["suspicious"] = *in.Suspicious
	}
	if in.Role != nil {
		role := entity.Role(*in.Role)
		if !role.Valid() {
			return nil, apperr.Validation("Invalid role")
		}
		if actor.Role == entity.RoleManager {
			if role != entity.RoleRegular && role != entity.RoleCashier {
				return nil, apperr.Forbidden("Forbidden")
			}
			if role == entity.RoleCashier &&
				(user.Suspicious || (in.Suspicious != nil && *in.Suspicious)) {
				return nil, apperr.Validation("Cannot promote suspicious user to cashier")
			}
		}
		updates["role"] = role
		if role == entity.RoleCashier {
			updates["suspicious"] = false
		}
	}

	if len(updates) == 0 {
		return nil, apperr.Validation("No fields to update")
	}
	if err := s.Users.Update(userID, updates); err != nil {
		return nil, err
	}
	return s.Get(userID)
}
