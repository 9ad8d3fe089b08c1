package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"openpatrol/api/internal/model"
)

// UserService handles user provisioning and directory queries.
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Create validates and stores a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	if !model.ValidRole(req.Role) {
		return nil, newError(KindInvalidArgument, "invalid role %q", req.Role)
	}
	if err := s.checkServiceExists(ctx, req.ServiceID); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, newError(KindConflict, "email %q already registered", req.Email)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	user := model.User{
		Email:     req.Email,
		Password:  string(hashed),
		Name:      req.Name,
		Phone:     req.Phone,
		Role:      req.Role,
		ServiceID: req.ServiceID,
		Active:    active,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Update applies the non-nil fields of req to a user.
func (s *UserService) Update(ctx context.Context, id uint, req model.UpdateUserRequest) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Role != nil {
		if !model.ValidRole(*req.Role) {
			return nil, newError(KindInvalidArgument, "invalid role %q", *req.Role)
		}
		user.Role = *req.Role
	}

	if req.ServiceID != nil {
		if err := s.checkServiceExists(ctx, req.ServiceID); err != nil {
			return nil, err
		}
		user.ServiceID = req.ServiceID
	}

	if req.Email != nil && *req.Email != user.Email {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.User{}).
			Where("email = ? AND id <> ?", *req.Email, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, newError(KindConflict, "email %q already registered", *req.Email)
		}
		user.Email = *req.Email
	}

	if req.Password != nil {
		if len(*req.Password) < 8 {
			return nil, newError(KindInvalidArgument, "password must be at least 8 characters")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.Password = string(hashed)
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "user %d not found", id)
		}
		return nil, err
	}
	return &user, nil
}

// List returns users, optionally filtered by role and service.
func (s *UserService) List(ctx context.Context, role string, serviceID *uint) ([]model.User, error) {
	query := s.db.WithContext(ctx).Model(&model.User{})
	if role != "" {
		if !model.ValidRole(role) {
			return nil, newError(KindInvalidArgument, "invalid role %q", role)
		}
		query = query.Where("role = ?", role)
	}
	if serviceID != nil {
		query = query.Where("service_id = ?", *serviceID)
	}

	var users []model.User
	if err := query.Order("name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListGuards returns active guards visible to the caller: admins see all,
// supervisors the guards of their own service.
func (s *UserService) ListGuards(ctx context.Context, identity *model.User) ([]model.User, error) {
	query := s.db.WithContext(ctx).Model(&model.User{}).
		Where("role = ? AND active = ?", model.RoleGuard, true)

	switch identity.Role {
	case model.RoleAdmin:
	case model.RoleSupervisor:
		if identity.ServiceID == nil {
			return nil, newError(KindNoServiceAssigned, "supervisor has no service assigned")
		}
		query = query.Where("service_id = ?", *identity.ServiceID)
	default:
		return nil, newError(KindForbidden, "no permission to list guards")
	}

	var guards []model.User
	if err := query.Order("name ASC").Find(&guards).Error; err != nil {
		return nil, err
	}
	return guards, nil
}

// Delete soft-deletes a user. Callers may not delete themselves.
func (s *UserService) Delete(ctx context.Context, identity *model.User, id uint) error {
	if identity.ID == id {
		return newError(KindInvalidArgument, "cannot delete own account")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&model.User{}, id).Error
}

func (s *UserService) checkServiceExists(ctx context.Context, serviceID *uint) error {
	if serviceID == nil {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Service{}).Where("id = ?", *serviceID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return newError(KindNotFound, "service %d not found", *serviceID)
	}
	return nil
}
