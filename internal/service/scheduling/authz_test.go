package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medbook/clinic-api/internal/model"
	apperrors "github.com/medbook/clinic-api/pkg/errors"
)

func TestAuthorize(t *testing.T) {
	apt := &model.Appointment{ID: 1, PatientID: 10, DoctorID: 20}

	tests := []struct {
		name      string
		actor     *model.User
		action    Action
		forbidden bool
	}{
		{
			name:   "patient reads own appointment",
			actor:  &model.User{ID: 10, Role: model.RolePatient},
			action: ActionRead,
		},
		{
			name:      "patient reads someone else's appointment",
			actor:     &model.User{ID: 11, Role: model.RolePatient},
			action:    ActionRead,
			forbidden: true,
		},
		{
			name:   "doctor reads any appointment",
			actor:  &model.User{ID: 99, Role: model.RoleDoctor},
			action: ActionRead,
		},
		{
			name:   "admin reads any appointment",
			actor:  &model.User{ID: 99, Role: model.RoleAdmin},
			action: ActionRead,
		},
		{
			name:   "patient updates own appointment",
			actor:  &model.User{ID: 10, Role: model.RolePatient},
			action: ActionUpdate,
		},
		{
			name:      "patient updates someone else's appointment",
			actor:     &model.User{ID: 11, Role: model.RolePatient},
			action:    ActionUpdate,
			forbidden: true,
		},
		{
			name:   "assigned doctor cancels",
			actor:  &model.User{ID: 20, Role: model.RoleDoctor},
			action: ActionCancel,
		},
		{
			name:      "unrelated doctor cancels",
			actor:     &model.User{ID: 21, Role: model.RoleDoctor},
			action:    ActionCancel,
			forbidden: true,
		},
		{
			name:   "admin cancels any appointment",
			actor:  &model.User{ID: 99, Role: model.RoleAdmin},
			action: ActionCancel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorize(tt.actor, tt.action, apt)
			if tt.forbidden {
				assert.True(t, apperrors.IsForbidden(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
