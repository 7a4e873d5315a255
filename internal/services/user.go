package services

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/taskforge-dev/taskforge/internal/apperr"
	"github.com/taskforge-dev/taskforge/internal/authz"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/trash"
)

// UserService orchestrates user management. Admins provision accounts and
// manage global roles; users edit their own profile, never their role.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UpdateUserInput carries optional profile changes. Nil fields are left
// untouched.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *string
}

func (s *UserService) store() *trash.Store[models.User] {
	return trash.NewStore[models.User](s.db, "User")
}

// Create provisions a user account. Admins only.
func (s *UserService) Create(principal authz.Principal, input CreateUserInput) (*models.User, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	var existing models.User
	err := s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, apperr.Conflict("Email already exists.")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal(err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	role := input.Role
	if role == "" {
		role = models.GlobalRoleUser
	}

	user := models.User{
		Name:         input.Name,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         role,
	}

	if err := s.db.Create(&user).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	return &user, nil
}

// Update applies the role matrix of the original system: an admin may change
// only a user's global role, a user may change their own profile but not
// their role, and nobody may touch anyone else.
func (s *UserService) Update(principal authz.Principal, userID uint, input UpdateUserInput) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User not found.")
		}
		return nil, apperr.Internal(err)
	}

	if principal.IsAdmin() {
		if input.Role == nil {
			return nil, apperr.Forbidden("Admins cannot update user profile information.")
		}
		if err := s.db.Model(&user).Update("role", *input.Role).Error; err != nil {
			return nil, apperr.Internal(err)
		}
		return s.reload(user.ID)
	}

	if principal.UserID != user.ID {
		return nil, apperr.Forbidden("Unauthorized to update this user.")
	}
	if input.Role != nil {
		return nil, apperr.Forbidden("Unauthorized to update role.")
	}

	updates := make(map[string]interface{})
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email != user.Email {
			var existing models.User
			err := s.db.Where("email = ? AND id != ?", email, user.ID).First(&existing).Error
			if err == nil {
				return nil, apperr.Conflict("Email already exists.")
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Internal(err)
			}
		}
		updates["email"] = email
	}
	if input.Password != nil {
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		updates["password_hash"] = string(passwordHash)
	}

	if len(updates) > 0 {
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			return nil, apperr.Internal(err)
		}
	}

	return s.reload(user.ID)
}

func (s *UserService) reload(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return &user, nil
}

// List returns every live user.
func (s *UserService) List() ([]models.User, error) {
	var users []models.User
	if err := s.db.Find(&users).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

// Get returns a user by id, trashed or not.
func (s *UserService) Get(userID uint) (*models.User, error) {
	return s.store().FindAny(userID)
}

// Delete trashes a user account. Admins only. No cascade: memberships and
// tasks are untouched.
func (s *UserService) Delete(principal authz.Principal, userID uint) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("User not found.")
		}
		return apperr.Internal(err)
	}

	return s.store().SoftDelete(user.ID)
}

// Restore revives a trashed user. Admins only.
func (s *UserService) Restore(principal authz.Principal, userID uint) (*models.User, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	return s.store().Restore(userID)
}

// ForceDelete permanently removes a trashed user. Admins only.
func (s *UserService) ForceDelete(principal authz.Principal, userID uint) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}
	return s.store().ForceDelete(userID)
}

// ListTrashed returns every trashed user. Admins only.
func (s *UserService) ListTrashed(principal authz.Principal) ([]models.User, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	return s.store().ListTrashed()
}
