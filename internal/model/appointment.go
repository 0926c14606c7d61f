package model

import (
	"time"
)

// AppointmentStatus is the appointment lifecycle tag. Cancellation is
// the only transition out of active and is permanent; cancelled
// records are kept for history, never erased.
type AppointmentStatus string

const (
	AppointmentStatusActive    AppointmentStatus = "active"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment represents one booked 59-minute slot between a patient
// and a doctor.
type Appointment struct {
	ID          int64             `json:"id" db:"id"`
	PatientID   int64             `json:"patient_id" db:"patient_id"`
	DoctorID    int64             `json:"doctor_id" db:"doctor_id"`
	StartDate   time.Time         `json:"start_date" db:"start_date"`
	EndDate     time.Time         `json:"end_date" db:"end_date"`
	Reason      string            `json:"reason" db:"reason"`
	Description string            `json:"description" db:"description"`
	Specialty   Specialty         `json:"specialty" db:"specialty"`
	Status      AppointmentStatus `json:"status" db:"status"`
	CreatedBy   int64             `json:"created_by" db:"created_by"`
	UpdatedBy   int64             `json:"updated_by" db:"updated_by"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`

	// Related records, attached by the service layer.
	Patient *User `json:"patient,omitempty" db:"-"`
	Doctor  *User `json:"doctor,omitempty" db:"-"`
}

// CreateAppointmentRequest represents appointment creation parameters.
// StartDate is the slot start; the end is derived from the fixed slot
// length, never supplied by the client.
type CreateAppointmentRequest struct {
	PatientID   int64     `json:"patient_id" binding:"required"`
	DoctorID    int64     `json:"doctor_id" binding:"required"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	Reason      string    `json:"reason" binding:"required"`
	Description string    `json:"description" binding:"required"`
	Specialty   Specialty `json:"specialty" binding:"required,specialty"`
}

// UpdateAppointmentRequest is a partial field replacement; nil fields
// are left untouched.
type UpdateAppointmentRequest struct {
	PatientID   *int64     `json:"patient_id"`
	DoctorID    *int64     `json:"doctor_id"`
	StartDate   *time.Time `json:"start_date"`
	Reason      *string    `json:"reason"`
	Description *string    `json:"description"`
	Specialty   *Specialty `json:"specialty" binding:"omitempty,specialty"`
}

// AppointmentFilters narrows listing queries. PatientID and
// ParticipantID are set by the engine from the actor's role, not by
// callers.
type AppointmentFilters struct {
	StartDate     *time.Time `form:"start_date"`
	EndDate       *time.Time `form:"end_date"`
	Specialty     Specialty  `form:"specialty"`
	Reason        string     `form:"reason"`
	PatientID     int64      `form:"-"`
	ParticipantID int64      `form:"-"`
}
