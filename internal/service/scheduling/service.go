package scheduling

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/medbook/clinic-api/internal/model"
	"github.com/medbook/clinic-api/internal/repository"
	apperrors "github.com/medbook/clinic-api/pkg/errors"
	"github.com/medbook/clinic-api/pkg/messaging"
	"github.com/medbook/clinic-api/pkg/metrics"
)

// Notifier delivers appointment notifications to participants.
// Delivery is best effort: failures are logged, never surfaced.
type Notifier interface {
	AppointmentBooked(ctx context.Context, apt *model.Appointment) error
	AppointmentCancelled(ctx context.Context, apt *model.Appointment) error
}

// Service is the scheduling engine: it orchestrates appointment
// create/read/update/cancel over the record store, enforcing the
// timing, conflict and authorization rules.
type Service struct {
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	clock        Clock
	publisher    messaging.Publisher
	notifier     Notifier
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// Option configures optional collaborators.
type Option func(*Service)

func WithPublisher(p messaging.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(appointments repository.AppointmentRepository, users repository.UserRepository, clock Clock, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		appointments: appointments,
		users:        users,
		clock:        clock,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create books a new appointment for the requested patient/doctor
// pair. Validation order: same-person check (before any store access),
// participant resolution, specialty match, lead time, conflict scan,
// persist. The store's exclusion constraint backstops the conflict
// scan under concurrent writers.
func (s *Service) Create(ctx context.Context, req *model.CreateAppointmentRequest, actorID int64) (*model.Appointment, error) {
	apt, err := s.create(ctx, req, actorID)
	s.countOp("create", err)
	return apt, err
}

func (s *Service) create(ctx context.Context, req *model.CreateAppointmentRequest, actorID int64) (*model.Appointment, error) {
	if req.PatientID == req.DoctorID {
		return nil, apperrors.BadRequest("patient and doctor cannot be the same")
	}

	patient, err := s.users.Get(ctx, req.PatientID)
	if err != nil {
		return nil, resourceErr(err, "patient")
	}

	doctor, err := s.users.Get(ctx, req.DoctorID)
	if err != nil || doctor.Role != model.RoleDoctor {
		return nil, resourceErr(err, "doctor")
	}

	if doctor.Specialty == nil || *doctor.Specialty != req.Specialty {
		return nil, apperrors.NotFoundMsg("this doctor is not assigned to this specialty")
	}

	if err := validateLeadTime(req.StartDate, s.clock.Now()); err != nil {
		s.countConflict()
		return nil, err
	}

	endDate := req.StartDate.Add(SlotLength)

	conflict, err := s.appointments.FindConflict(ctx, doctor.ID, req.StartDate, endDate, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	if conflict != nil {
		s.countConflict()
		return nil, apperrors.Conflict("this doctor is already scheduled for the selected date and time")
	}

	apt := &model.Appointment{
		PatientID:   patient.ID,
		DoctorID:    doctor.ID,
		StartDate:   req.StartDate,
		EndDate:     endDate,
		Reason:      req.Reason,
		Description: req.Description,
		Specialty:   req.Specialty,
		Status:      model.AppointmentStatusActive,
		CreatedBy:   actorID,
		UpdatedBy:   actorID,
	}

	if err := s.appointments.Create(ctx, apt); err != nil {
		if apperrors.IsConflict(err) {
			s.countConflict()
		}
		return nil, err
	}

	apt.Patient = patient.Sanitize()
	apt.Doctor = doctor.Sanitize()

	s.publish(ctx, messaging.ChannelAppointmentCreated, apt)
	s.notify(ctx, apt, s.notifierBooked)

	return apt, nil
}

// FindAll lists appointments visible to the actor. PATIENT actors are
// unconditionally restricted to their own records; DOCTOR and ADMIN
// actors see everything unless they ask for own-only.
func (s *Service) FindAll(ctx context.Context, filters *model.AppointmentFilters, actorID int64, ownOnly bool) ([]*model.Appointment, error) {
	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if filters == nil {
		filters = &model.AppointmentFilters{}
	}
	if actor.Role == model.RolePatient {
		filters.PatientID = actorID
		filters.ParticipantID = 0
	} else if ownOnly {
		filters.ParticipantID = actorID
	}

	appointments, err := s.appointments.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	if err := s.attachParticipants(ctx, appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

// FindByID returns a single appointment with participants attached.
func (s *Service) FindByID(ctx context.Context, id, actorID int64) (*model.Appointment, error) {
	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}

	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := authorize(actor, ActionRead, apt); err != nil {
		return nil, err
	}

	if err := s.attachParticipants(ctx, []*model.Appointment{apt}); err != nil {
		return nil, err
	}
	return apt, nil
}

// Update applies a partial patch to an appointment. Doctor and
// specialty changes must stay consistent; timing or doctor changes
// re-run the full lead-time and conflict validation, excluding the
// appointment's own prior interval.
func (s *Service) Update(ctx context.Context, id int64, patch *model.UpdateAppointmentRequest, actorID int64) (*model.Appointment, error) {
	apt, err := s.update(ctx, id, patch, actorID)
	s.countOp("update", err)
	return apt, err
}

func (s *Service) update(ctx context.Context, id int64, patch *model.UpdateAppointmentRequest, actorID int64) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if err := authorize(actor, ActionUpdate, apt); err != nil {
		return nil, err
	}

	if patch.StartDate != nil {
		if err := validateLeadTime(*patch.StartDate, s.clock.Now()); err != nil {
			s.countConflict()
			return nil, err
		}
	}

	if patch.DoctorID != nil {
		newDoctor, err := s.users.Get(ctx, *patch.DoctorID)
		if err != nil || newDoctor.Role != model.RoleDoctor {
			return nil, resourceErr(err, "doctor")
		}

		if patch.Specialty != nil && (newDoctor.Specialty == nil || *newDoctor.Specialty != *patch.Specialty) {
			return nil, apperrors.BadRequest("the new doctor does not match the required specialty")
		}
		if patch.Specialty == nil && (newDoctor.Specialty == nil || *newDoctor.Specialty != apt.Specialty) {
			return nil, apperrors.BadRequest("the new doctor does not match the current specialty of the appointment")
		}
		apt.DoctorID = newDoctor.ID
	}

	if patch.Specialty != nil {
		if patch.DoctorID == nil {
			doctor, err := s.users.Get(ctx, apt.DoctorID)
			if err != nil {
				return nil, resourceErr(err, "doctor")
			}
			if doctor.Specialty == nil || *doctor.Specialty != *patch.Specialty {
				return nil, apperrors.BadRequest("the current doctor does not match the new specialty")
			}
		}
		apt.Specialty = *patch.Specialty
	}

	if patch.PatientID != nil {
		apt.PatientID = *patch.PatientID
	}
	if patch.StartDate != nil {
		apt.StartDate = *patch.StartDate
		apt.EndDate = patch.StartDate.Add(SlotLength)
	}
	if patch.Reason != nil {
		apt.Reason = *patch.Reason
	}
	if patch.Description != nil {
		apt.Description = *patch.Description
	}

	if apt.PatientID == apt.DoctorID {
		return nil, apperrors.BadRequest("patient and doctor cannot be the same")
	}

	if patch.StartDate != nil || patch.DoctorID != nil {
		conflict, err := s.appointments.FindConflict(ctx, apt.DoctorID, apt.StartDate, apt.EndDate, apt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check conflicts: %w", err)
		}
		if conflict != nil {
			s.countConflict()
			return nil, apperrors.Conflict("this doctor is already scheduled for the selected date and time")
		}
	}

	apt.UpdatedBy = actorID

	if err := s.appointments.Update(ctx, apt); err != nil {
		if apperrors.IsConflict(err) {
			s.countConflict()
		}
		return nil, err
	}

	if err := s.attachParticipants(ctx, []*model.Appointment{apt}); err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.ChannelAppointmentUpdated, apt)

	return apt, nil
}

// Remove cancels an appointment. Cancellation is time-gated the same
// way as creation: an imminent or past appointment cannot be
// cancelled. The record is kept for history.
func (s *Service) Remove(ctx context.Context, id, actorID int64) error {
	err := s.remove(ctx, id, actorID)
	s.countOp("cancel", err)
	return err
}

func (s *Service) remove(ctx context.Context, id, actorID int64) error {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return err
	}

	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return err
	}

	if err := authorize(actor, ActionCancel, apt); err != nil {
		return err
	}

	if err := validateLeadTime(apt.StartDate, s.clock.Now()); err != nil {
		s.countConflict()
		return err
	}

	apt.Status = model.AppointmentStatusCancelled
	apt.UpdatedBy = actorID

	if err := s.appointments.Update(ctx, apt); err != nil {
		return err
	}

	if err := s.attachParticipants(ctx, []*model.Appointment{apt}); err != nil {
		s.logger.Error().Err(err).Int64("appointment_id", apt.ID).Msg("failed to attach participants after cancellation")
	}

	s.publish(ctx, messaging.ChannelAppointmentCancelled, apt)
	s.notify(ctx, apt, s.notifierCancelled)

	return nil
}

// FindHistory lists every appointment of a patient, cancelled ones
// included. Role gating for this lookup lives at the transport layer.
func (s *Service) FindHistory(ctx context.Context, patientID, actorID int64) ([]*model.Appointment, error) {
	if _, err := s.users.Get(ctx, actorID); err != nil {
		return nil, err
	}

	appointments, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(appointments) == 0 {
		return nil, apperrors.NotFoundMsg("this patient has no appointments")
	}

	if err := s.attachParticipants(ctx, appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

// AvailableDoctors returns the doctors with no active appointment
// overlapping the current hour-aligned slot. The snapshot is computed
// on demand and never cached.
func (s *Service) AvailableDoctors(ctx context.Context) ([]*model.User, error) {
	start, end := availabilityWindow(s.clock.Now())

	occupied, err := s.appointments.ListOverlapping(ctx, start, end)
	if err != nil {
		return nil, err
	}

	occupiedIDs := make(map[int64]struct{}, len(occupied))
	for _, apt := range occupied {
		occupiedIDs[apt.DoctorID] = struct{}{}
	}

	doctors, err := s.users.ListByRole(ctx, model.RoleDoctor)
	if err != nil {
		return nil, err
	}

	available := make([]*model.User, 0, len(doctors))
	for _, doctor := range doctors {
		if _, busy := occupiedIDs[doctor.ID]; !busy {
			available = append(available, doctor.Sanitize())
		}
	}
	return available, nil
}

// attachParticipants loads and sanitizes the patient and doctor
// records referenced by each appointment. Lookups are deduplicated
// within the call; nothing is cached across calls.
func (s *Service) attachParticipants(ctx context.Context, appointments []*model.Appointment) error {
	loaded := make(map[int64]*model.User)

	lookup := func(id int64) (*model.User, error) {
		if u, ok := loaded[id]; ok {
			return u, nil
		}
		u, err := s.users.Get(ctx, id)
		if err != nil {
			if apperrors.IsNotFound(err) {
				// Participant directory entry removed after booking;
				// the appointment itself is still returned.
				loaded[id] = nil
				return nil, nil
			}
			return nil, err
		}
		u.Sanitize()
		loaded[id] = u
		return u, nil
	}

	for _, apt := range appointments {
		patient, err := lookup(apt.PatientID)
		if err != nil {
			return err
		}
		doctor, err := lookup(apt.DoctorID)
		if err != nil {
			return err
		}
		apt.Patient = patient
		apt.Doctor = doctor
	}
	return nil
}

// resourceErr renames a repository not-found to the resource the
// caller asked about; other errors pass through untouched.
func resourceErr(err error, resource string) error {
	if err == nil || apperrors.IsNotFound(err) {
		return apperrors.NotFound(resource)
	}
	return err
}

func (s *Service) publish(ctx context.Context, channel string, apt *model.Appointment) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, channel, apt); err != nil {
		s.logger.Error().Err(err).Str("channel", channel).Int64("appointment_id", apt.ID).Msg("failed to publish appointment event")
	}
}

func (s *Service) notifierBooked(ctx context.Context, apt *model.Appointment) error {
	return s.notifier.AppointmentBooked(ctx, apt)
}

func (s *Service) notifierCancelled(ctx context.Context, apt *model.Appointment) error {
	return s.notifier.AppointmentCancelled(ctx, apt)
}

func (s *Service) notify(ctx context.Context, apt *model.Appointment, send func(context.Context, *model.Appointment) error) {
	if s.notifier == nil {
		return
	}
	if err := send(ctx, apt); err != nil {
		s.logger.Error().Err(err).Int64("appointment_id", apt.ID).Msg("failed to send appointment notification")
	}
}

func (s *Service) countOp(operation string, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.SchedulingOperations.WithLabelValues(operation, status).Inc()
}

func (s *Service) countConflict() {
	if s.metrics != nil {
		s.metrics.SchedulingConflicts.Inc()
	}
}
