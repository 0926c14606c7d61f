package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/medbook/clinic-api/internal/model"
	apperrors "github.com/medbook/clinic-api/pkg/errors"
)

// Postgres error code raised by the range-exclusion constraint on
// appointments (see migrations/schema.sql). The constraint is the
// source of truth for the no-overlap invariant under concurrent
// writers; the engine's read-then-check pass is only a fast path.
const exclusionViolation = "23P01"

func isExclusionViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == exclusionViolation
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			patient_id, doctor_id, start_date, end_date, reason,
			description, specialty, status, created_by, updated_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt

	err := r.db.QueryRowContext(ctx, query,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.StartDate,
		appointment.EndDate,
		appointment.Reason,
		appointment.Description,
		appointment.Specialty,
		appointment.Status,
		appointment.CreatedBy,
		appointment.UpdatedBy,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	).Scan(&appointment.ID)
	if isExclusionViolation(err) {
		return apperrors.Conflict("this doctor is already scheduled for the selected date and time")
	}
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_date, end_date, reason,
			   description, specialty, status, created_by, updated_by,
			   created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET patient_id = $1, doctor_id = $2, start_date = $3, end_date = $4,
			reason = $5, description = $6, specialty = $7, status = $8,
			updated_by = $9, updated_at = $10
		WHERE id = $11
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.StartDate,
		appointment.EndDate,
		appointment.Reason,
		appointment.Description,
		appointment.Specialty,
		appointment.Status,
		appointment.UpdatedBy,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if isExclusionViolation(err) {
		return apperrors.Conflict("this doctor is already scheduled for the selected date and time")
	}
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment")
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_date, end_date, reason,
			   description, specialty, status, created_by, updated_by,
			   created_at, updated_at
		FROM appointments
		WHERE status = $1
	`
	args := []interface{}{model.AppointmentStatusActive}
	argCount := 2

	if filters != nil {
		if filters.PatientID != 0 {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, filters.PatientID)
			argCount++
		}
		if filters.ParticipantID != 0 {
			query += fmt.Sprintf(" AND (patient_id = $%d OR doctor_id = $%d)", argCount, argCount)
			args = append(args, filters.ParticipantID)
			argCount++
		}
		if filters.StartDate != nil {
			query += fmt.Sprintf(" AND start_date >= $%d", argCount)
			args = append(args, *filters.StartDate)
			argCount++
		}
		if filters.EndDate != nil {
			query += fmt.Sprintf(" AND end_date <= $%d", argCount)
			args = append(args, *filters.EndDate)
			argCount++
		}
		if filters.Specialty != "" {
			query += fmt.Sprintf(" AND specialty = $%d", argCount)
			args = append(args, filters.Specialty)
			argCount++
		}
		if filters.Reason != "" {
			// LIKE is case-sensitive in Postgres, which is the contract here.
			query += fmt.Sprintf(" AND reason LIKE $%d", argCount)
			args = append(args, "%"+filters.Reason+"%")
			argCount++
		}
	}

	query += " ORDER BY id ASC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID int64) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_date, end_date, reason,
			   description, specialty, status, created_by, updated_by,
			   created_at, updated_at
		FROM appointments
		WHERE patient_id = $1
		ORDER BY id ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list patient appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) FindConflict(ctx context.Context, doctorID int64, start, end time.Time, excludeID int64) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_date, end_date, reason,
			   description, specialty, status, created_by, updated_by,
			   created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		  AND status = $2
		  AND start_date <= $3
		  AND end_date >= $4
	`
	args := []interface{}{doctorID, model.AppointmentStatusActive, end, start}

	if excludeID > 0 {
		query += " AND id != $5"
		args = append(args, excludeID)
	}

	query += " LIMIT 1"

	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conflicting appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) ListOverlapping(ctx context.Context, start, end time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, start_date, end_date, reason,
			   description, specialty, status, created_by, updated_by,
			   created_at, updated_at
		FROM appointments
		WHERE status = $1
		  AND start_date <= $2
		  AND end_date >= $3
		ORDER BY id ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, model.AppointmentStatusActive, end, start); err != nil {
		return nil, fmt.Errorf("failed to list overlapping appointments: %w", err)
	}
	return appointments, nil
}
