package scheduling

import (
	"github.com/medbook/clinic-api/internal/model"
	apperrors "github.com/medbook/clinic-api/pkg/errors"
)

// Action is an operation an actor attempts on an appointment.
type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionCancel Action = "cancel"
)

// authorize is the single permission gate for appointment records.
// PATIENT actors may only read appointments where they are the
// patient. Update and cancel require the actor to be a participant,
// with ADMIN as the universal override.
func authorize(actor *model.User, action Action, apt *model.Appointment) error {
	switch action {
	case ActionRead:
		if actor.Role == model.RolePatient && apt.PatientID != actor.ID {
			return apperrors.Forbidden("you can only access your own appointments")
		}
		return nil
	case ActionUpdate, ActionCancel:
		if actor.Role == model.RoleAdmin {
			return nil
		}
		if apt.PatientID == actor.ID || apt.DoctorID == actor.ID {
			return nil
		}
		return apperrors.Forbidden("you do not have permission to modify this appointment")
	default:
		return apperrors.Forbidden("unknown action")
	}
}
