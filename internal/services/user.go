package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/repos"
	"github.com/edugradelab/gradelab-backend/internal/requestdata"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

// UserUpdateInput carries the admin-editable fields. Nil means leave
// the field alone.
type UserUpdateInput struct {
	Username *string
	Role     *string
	IsActive *bool
}

type UserService interface {
	List(ctx context.Context, filter repos.UserFilter) ([]*types.User, int64, error)
	Get(ctx context.Context, id uint) (*types.User, error)
	Update(ctx context.Context, caller requestdata.RequestData, id uint, in UserUpdateInput) (*types.User, error)
	Delete(ctx context.Context, caller requestdata.RequestData, id uint) error
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
	audit    AuditService
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, audit AuditService) UserService {
	return &userService{
		db:       db,
		log:      log.With("service", "UserService"),
		userRepo: userRepo,
		audit:    audit,
	}
}

func (s *userService) List(ctx context.Context, filter repos.UserFilter) ([]*types.User, int64, error) {
	users, total, err := s.userRepo.List(ctx, nil, filter)
	if err != nil {
		return nil, 0, apierr.Persistence(err)
	}
	return users, total, nil
}

func (s *userService) Get(ctx context.Context, id uint) (*types.User, error) {
	user, err := s.userRepo.GetByID(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("user %d not found", id)
	}
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, caller requestdata.RequestData, id uint, in UserUpdateInput) (*types.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Role != nil {
		if *in.Role != types.RoleTeacher && *in.Role != types.RoleAdmin {
			return nil, apierr.Validation("unknown role %q", *in.Role)
		}
		user.Role = *in.Role
	}
	if in.Username != nil {
		if *in.Username == "" {
			return nil, apierr.Validation("username cannot be empty")
		}
		user.Username = *in.Username
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if err := s.userRepo.Update(ctx, nil, user); err != nil {
		return nil, apierr.Persistence(err)
	}
	s.audit.Record(ctx, nil, ActionAdminUserUpdate, &caller.UserID, map[string]interface{}{
		"targetUserId": user.ID,
	}, "", "")
	return user, nil
}

func (s *userService) Delete(ctx context.Context, caller requestdata.RequestData, id uint) error {
	if caller.UserID == id {
		return apierr.Validation("cannot delete your own account")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, nil, id); err != nil {
		return apierr.Persistence(err)
	}
	s.audit.Record(ctx, nil, ActionAdminUserDelete, &caller.UserID, map[string]interface{}{
		"deletedUserId": id,
	}, "", "")
	return nil
}
