package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medbook/clinic-api/internal/model"
	apperrors "github.com/medbook/clinic-api/pkg/errors"
)

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			doc_number, name, email, password_hash, role, specialty,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	err := r.db.QueryRowContext(ctx, query,
		user.DocNumber,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Specialty,
		user.Status,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, doc_number, name, email, password_hash, role, specialty,
			   status, created_at, updated_at
		FROM users
		WHERE id = $1 AND status = $2
	`
	var user model.User
	err := r.db.GetContext(ctx, &user, query, id, model.UserStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, doc_number, name, email, password_hash, role, specialty,
			   status, created_at, updated_at
		FROM users
		WHERE email = $1 AND status = $2
	`
	var user model.User
	err := r.db.GetContext(ctx, &user, query, email, model.UserStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role model.Role) ([]*model.User, error) {
	query := `
		SELECT id, doc_number, name, email, password_hash, role, specialty,
			   status, created_at, updated_at
		FROM users
		WHERE role = $1 AND status = $2
		ORDER BY id ASC
	`
	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, role, model.UserStatusActive); err != nil {
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	return users, nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	query := `
		SELECT id, doc_number, name, email, password_hash, role, specialty,
			   status, created_at, updated_at
		FROM users
		WHERE status = $1
		ORDER BY id ASC
	`
	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, model.UserStatusActive); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET name = $1, email = $2, specialty = $3, status = $4, updated_at = $5
		WHERE id = $6
	`
	user.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.Specialty,
		user.Status,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("user")
	}
	return nil
}
