package user

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/medbook/clinic-api/internal/model"
	"github.com/medbook/clinic-api/internal/repository"
	apperrors "github.com/medbook/clinic-api/pkg/errors"
)

const bcryptCost = 12

// Service manages the user directory: patients, doctors and admins.
type Service struct {
	repo repository.UserRepository
}

func NewService(repo repository.UserRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if req.Role == model.RoleDoctor && req.Specialty == nil {
		return nil, apperrors.BadRequest("doctors must have a specialty")
	}
	if req.Role != model.RoleDoctor && req.Specialty != nil {
		return nil, apperrors.BadRequest("only doctors can have a specialty")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		DocNumber:    req.DocNumber,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		Role:         req.Role,
		Specialty:    req.Specialty,
		Status:       model.UserStatusActive,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user.Sanitize(), nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Sanitize(), nil
}

func (s *Service) ListUsers(ctx context.Context, role model.Role) ([]*model.User, error) {
	var (
		users []*model.User
		err   error
	)
	if role != "" {
		if !role.Valid() {
			return nil, apperrors.BadRequest("invalid role filter")
		}
		users, err = s.repo.ListByRole(ctx, role)
	} else {
		users, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		u.Sanitize()
	}
	return users, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int64, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Specialty != nil {
		if user.Role != model.RoleDoctor {
			return nil, apperrors.BadRequest("only doctors can have a specialty")
		}
		user.Specialty = req.Specialty
	}
	if req.Status != nil {
		user.Status = *req.Status
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user.Sanitize(), nil
}

// DeactivateUser soft-disables a directory entry; records referencing
// it are untouched.
func (s *Service) DeactivateUser(ctx context.Context, id int64) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	user.Status = model.UserStatusInactive
	return s.repo.Update(ctx, user)
}
