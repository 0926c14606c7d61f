package repository

import (
	"context"
	"time"

	"github.com/medbook/clinic-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository is the user directory: lookup by id, email and
	// role plus mechanical CRUD.
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id int64) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		ListByRole(ctx context.Context, role model.Role) ([]*model.User, error)
		List(ctx context.Context) ([]*model.User, error)
		Update(ctx context.Context, user *model.User) error
	}

	// AppointmentRepository provides CRUD plus the overlap queries the
	// scheduling engine needs. Create and Update surface a Conflict
	// error when the store-level range-exclusion guard rejects an
	// overlapping booking.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id int64) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		ListByPatient(ctx context.Context, patientID int64) ([]*model.Appointment, error)
		// FindConflict returns the first active appointment of the doctor
		// overlapping [start, end], or nil. excludeID > 0 removes the
		// appointment's own row from the comparison set during updates.
		FindConflict(ctx context.Context, doctorID int64, start, end time.Time, excludeID int64) (*model.Appointment, error)
		// ListOverlapping returns all active appointments overlapping
		// [start, end], any doctor.
		ListOverlapping(ctx context.Context, start, end time.Time) ([]*model.Appointment, error)
	}
)
