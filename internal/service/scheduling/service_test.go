package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/clinic-api/internal/model"
	apperrors "github.com/medbook/clinic-api/pkg/errors"
)

// fixedClock pins "now" for deterministic timing rules.
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// memUserRepo is an in-memory user directory.
type memUserRepo struct {
	mu    sync.Mutex
	users map[int64]*model.User
	gets  int
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	r := &memUserRepo{users: make(map[int64]*model.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = int64(len(r.users) + 1)
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) Get(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user")
	}
	copied := *u
	return &copied, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("user")
}

func (r *memUserRepo) ListByRole(_ context.Context, role model.Role) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, u := range r.users {
		if u.Role == role {
			copied := *u
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memUserRepo) List(_ context.Context) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, u := range r.users {
		copied := *u
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memUserRepo) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

// memAppointmentRepo is an in-memory record store. Create and Update
// enforce the same doctor/time-range exclusion guard the real store
// does, so concurrent-writer behavior is representable in tests.
type memAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[int64]*model.Appointment
	nextID       int64
}

func newMemAppointmentRepo() *memAppointmentRepo {
	return &memAppointmentRepo{appointments: make(map[int64]*model.Appointment), nextID: 1}
}

func overlaps(a *model.Appointment, doctorID int64, start, end time.Time, excludeID int64) bool {
	if a.DoctorID != doctorID || a.Status != model.AppointmentStatusActive {
		return false
	}
	if excludeID > 0 && a.ID == excludeID {
		return false
	}
	return !a.StartDate.After(end) && !a.EndDate.Before(start)
}

func (r *memAppointmentRepo) Create(_ context.Context, apt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appointments {
		if overlaps(existing, apt.DoctorID, apt.StartDate, apt.EndDate, 0) {
			return apperrors.Conflict("this doctor is already scheduled for the selected date and time")
		}
	}
	apt.ID = r.nextID
	r.nextID++
	copied := *apt
	r.appointments[apt.ID] = &copied
	return nil
}

func (r *memAppointmentRepo) Get(_ context.Context, id int64) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apt, ok := r.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment")
	}
	copied := *apt
	return &copied, nil
}

func (r *memAppointmentRepo) Update(_ context.Context, apt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[apt.ID]; !ok {
		return apperrors.NotFound("appointment")
	}
	for _, existing := range r.appointments {
		if apt.Status == model.AppointmentStatusActive && overlaps(existing, apt.DoctorID, apt.StartDate, apt.EndDate, apt.ID) {
			return apperrors.Conflict("this doctor is already scheduled for the selected date and time")
		}
	}
	copied := *apt
	r.appointments[apt.ID] = &copied
	return nil
}

func (r *memAppointmentRepo) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, apt := range r.appointments {
		if apt.Status != model.AppointmentStatusActive {
			continue
		}
		if filters.PatientID > 0 && apt.PatientID != filters.PatientID {
			continue
		}
		if filters.ParticipantID > 0 && apt.PatientID != filters.ParticipantID && apt.DoctorID != filters.ParticipantID {
			continue
		}
		if filters.Specialty != "" && apt.Specialty != filters.Specialty {
			continue
		}
		if filters.StartDate != nil && apt.StartDate.Before(*filters.StartDate) {
			continue
		}
		if filters.EndDate != nil && apt.EndDate.After(*filters.EndDate) {
			continue
		}
		copied := *apt
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memAppointmentRepo) ListByPatient(_ context.Context, patientID int64) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, apt := range r.appointments {
		if apt.PatientID == patientID {
			copied := *apt
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memAppointmentRepo) FindConflict(_ context.Context, doctorID int64, start, end time.Time, excludeID int64) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, apt := range r.appointments {
		if overlaps(apt, doctorID, start, end, excludeID) {
			copied := *apt
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memAppointmentRepo) ListOverlapping(_ context.Context, start, end time.Time) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, apt := range r.appointments {
		if apt.Status == model.AppointmentStatusActive && !apt.StartDate.After(end) && !apt.EndDate.Before(start) {
			copied := *apt
			out = append(out, &copied)
		}
	}
	return out, nil
}

var (
	cardiology = model.SpecialtyCardiology
	neurology  = model.SpecialtyNeurology
)

// testNow is 09:00 on a fixed day; appointments are booked from 10:00.
var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	service      *Service
	users        *memUserRepo
	appointments *memAppointmentRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := newMemUserRepo(
		&model.User{ID: 1, Name: "Alice", Email: "alice@example.com", Role: model.RolePatient, Status: model.UserStatusActive},
		&model.User{ID: 2, Name: "Bob", Email: "bob@example.com", Role: model.RolePatient, Status: model.UserStatusActive},
		&model.User{ID: 10, Name: "Dr. Carol", Email: "carol@example.com", Role: model.RoleDoctor, Specialty: &cardiology, Status: model.UserStatusActive},
		&model.User{ID: 11, Name: "Dr. Dave", Email: "dave@example.com", Role: model.RoleDoctor, Specialty: &cardiology, Status: model.UserStatusActive},
		&model.User{ID: 12, Name: "Dr. Erin", Email: "erin@example.com", Role: model.RoleDoctor, Specialty: &neurology, Status: model.UserStatusActive},
		&model.User{ID: 99, Name: "Root", Email: "root@example.com", Role: model.RoleAdmin, Status: model.UserStatusActive},
	)
	appointments := newMemAppointmentRepo()

	svc := NewService(appointments, users, fixedClock{now: testNow}, zerolog.Nop())
	return &fixture{service: svc, users: users, appointments: appointments}
}

func createRequest(start time.Time) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		PatientID:   1,
		DoctorID:    10,
		StartDate:   start,
		Reason:      "checkup",
		Description: "annual checkup",
		Specialty:   model.SpecialtyCardiology,
	}
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)
	start := testNow.Add(time.Hour)

	apt, err := f.service.Create(context.Background(), createRequest(start), 1)
	require.NoError(t, err)

	assert.Equal(t, start, apt.StartDate)
	assert.Equal(t, start.Add(59*time.Minute), apt.EndDate)
	assert.Equal(t, model.AppointmentStatusActive, apt.Status)
	assert.Equal(t, int64(1), apt.CreatedBy)
	require.NotNil(t, apt.Patient)
	require.NotNil(t, apt.Doctor)
	assert.Equal(t, "Alice", apt.Patient.Name)
	assert.Empty(t, apt.Doctor.PasswordHash)
}

func TestCreateSamePatientAndDoctor(t *testing.T) {
	f := newFixture(t)
	req := createRequest(testNow.Add(time.Hour))
	req.DoctorID = req.PatientID

	_, err := f.service.Create(context.Background(), req, 1)

	assert.True(t, apperrors.IsKind(err, apperrors.KindBadRequest))
	assert.Zero(t, f.users.gets, "identity check must run before any store access")
}

func TestCreateUnknownParticipants(t *testing.T) {
	f := newFixture(t)

	req := createRequest(testNow.Add(time.Hour))
	req.PatientID = 404
	_, err := f.service.Create(context.Background(), req, 1)
	assert.True(t, apperrors.IsNotFound(err))
	assert.EqualError(t, err, "patient not found")

	req = createRequest(testNow.Add(time.Hour))
	req.DoctorID = 404
	_, err = f.service.Create(context.Background(), req, 1)
	assert.True(t, apperrors.IsNotFound(err))
	assert.EqualError(t, err, "doctor not found")
}

func TestCreatePatientAsDoctor(t *testing.T) {
	f := newFixture(t)
	req := createRequest(testNow.Add(time.Hour))
	req.DoctorID = 2

	_, err := f.service.Create(context.Background(), req, 1)

	assert.True(t, apperrors.IsNotFound(err))
	assert.EqualError(t, err, "doctor not found")
}

func TestCreateSpecialtyMismatch(t *testing.T) {
	f := newFixture(t)
	req := createRequest(testNow.Add(time.Hour))
	req.DoctorID = 12 // neurologist

	_, err := f.service.Create(context.Background(), req, 1)

	assert.True(t, apperrors.IsNotFound(err))
	assert.EqualError(t, err, "this doctor is not assigned to this specialty")
}

func TestCreateInsideLeadTimeWindow(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), createRequest(testNow.Add(10*time.Minute)), 1)

	assert.True(t, apperrors.IsConflict(err))
}

func TestCreateInThePast(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), createRequest(testNow.Add(-time.Hour)), 1)

	assert.True(t, apperrors.IsConflict(err))
}

func TestCreateDoubleBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := testNow.Add(time.Hour) // 10:00

	_, err := f.service.Create(ctx, createRequest(start), 1)
	require.NoError(t, err)

	// 10:30 overlaps the 10:00-10:59 slot.
	req := createRequest(start.Add(30 * time.Minute))
	req.PatientID = 2
	_, err = f.service.Create(ctx, req, 2)
	assert.True(t, apperrors.IsConflict(err))

	// 11:00 starts after the 10:59 end; back-to-back is allowed.
	req = createRequest(start.Add(time.Hour))
	req.PatientID = 2
	_, err = f.service.Create(ctx, req, 2)
	assert.NoError(t, err)
}

func TestCreateSameSlotDifferentDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := testNow.Add(time.Hour)

	_, err := f.service.Create(ctx, createRequest(start), 1)
	require.NoError(t, err)

	req := createRequest(start)
	req.PatientID = 2
	req.DoctorID = 11
	_, err = f.service.Create(ctx, req, 2)
	assert.NoError(t, err)
}

func TestFindByIDAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.service.Create(ctx, createRequest(testNow.Add(time.Hour)), 1)
	require.NoError(t, err)

	// Owning patient can read it.
	_, err = f.service.FindByID(ctx, apt.ID, 1)
	assert.NoError(t, err)

	// Another patient cannot.
	_, err = f.service.FindByID(ctx, apt.ID, 2)
	assert.True(t, apperrors.IsForbidden(err))

	// Doctors and admins can.
	_, err = f.service.FindByID(ctx, apt.ID, 12)
	assert.NoError(t, err)
	_, err = f.service.FindByID(ctx, apt.ID, 99)
	assert.NoError(t, err)
}

func TestFindAllScopesPatients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, createRequest(testNow.Add(time.Hour)), 1)
	require.NoError(t, err)

	req := createRequest(testNow.Add(3 * time.Hour))
	req.PatientID = 2
	_, err = f.service.Create(ctx, req, 2)
	require.NoError(t, err)

	// A patient only ever sees their own, even with no filters.
	mine, err := f.service.FindAll(ctx, nil, 1, false)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(1), mine[0].PatientID)

	// Admin sees everything.
	all, err := f.service.FindAll(ctx, nil, 99, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// A doctor asking for own-only sees only their participations.
	reqOther := createRequest(testNow.Add(5 * time.Hour))
	reqOther.PatientID = 2
	reqOther.DoctorID = 11
	_, err = f.service.Create(ctx, reqOther, 2)
	require.NoError(t, err)

	own, err := f.service.FindAll(ctx, nil, 11, true)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, int64(11), own[0].DoctorID)
}

func TestUpdateRechecksConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Create(ctx, createRequest(testNow.Add(time.Hour)), 1)
	require.NoError(t, err)

	req := createRequest(testNow.Add(3 * time.Hour))
	req.PatientID = 2
	second, err := f.service.Create(ctx, req, 2)
	require.NoError(t, err)

	// Moving the second onto the first's slot is rejected.
	clash := first.StartDate.Add(30 * time.Minute)
	_, err = f.service.Update(ctx, second.ID, &model.UpdateAppointmentRequest{StartDate: &clash}, 99)
	assert.True(t, apperrors.IsConflict(err))

	// Moving it to a free slot succeeds and does not collide with its
	// own previous interval.
	free := testNow.Add(5 * time.Hour)
	updated, err := f.service.Update(ctx, second.ID, &model.UpdateAppointmentRequest{StartDate: &free}, 99)
	require.NoError(t, err)
	assert.Equal(t, free, updated.StartDate)
	assert.Equal(t, free.Add(59*time.Minute), updated.EndDate)
	assert.Equal(t, int64(99), updated.UpdatedBy)
}

func TestUpdateRescheduleSameSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.service.Create(ctx, createRequest(testNow.Add(time.Hour)), 1)
	require.NoError(t, err)

	// Re-submitting the appointment's own start must not conflict with
	// itself.
	same := apt.StartDate
	_, err = f.service.Update(ctx, apt.ID, &model.UpdateAppointmentRequest{StartDate: &same}, 1)
	assert.NoError(t, err)
}

func TestUpdateDoctorSpecialtyRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.service.Create(ctx, createRequest(testNow.Add(time.Hour)), 1)
	require.NoError(t, err)

	// New doctor must match the appointment's current specialty.
	neurologist := int64(12)
	_, err = f.service.Update(ctx, apt.ID, &model.UpdateAppointmentRequest{DoctorID: &neurologist}, 99)
	assert.True(t, apperrors.IsKind(err, apperrors.KindBadRequest))

	// New specialty must match the current doctor.
	_, err = f.service.Update(ctx, apt.ID, &model.UpdateAppointmentRequest{Specialty: &neurology}, 99)
	assert.True(t, apperrors.IsKind(err, apperrors.KindBadRequest))

	// Changing doctor and specialty together works when they agree.
	updated, err := f.service.Update(ctx, apt.ID, &model.UpdateAppointmentRequest{DoctorID: &neurologist, Specialty: &neurology}, 99)
	require.NoError(t, err)
	assert.Equal(t, neurologist, updated.DoctorID)
	assert.Equal(t, neurology, updated.Specialty)
}

func TestUpdateForbiddenForOutsiders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.service.Create(ctx, createRequest(testNow.Add(time.Hour)), 1)
	require.NoError(t, err)

	reason := "changed my mind"
	_, err = f.service.Update(ctx, apt.ID, &model.UpdateAppointmentRequest{Reason: &reason}, 2)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestUpdateLeadTimeGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.service.Create(ctx, createRequest(testNow.Add(time.Hour)), 1)
	require.NoError(t, err)

	tooSoon := testNow.Add(5 * time.Minute)
	_, err = f.service.Update(ctx, apt.ID, &model.UpdateAppointmentRequest{StartDate: &tooSoon}, 1)
	assert.True(t, apperrors.IsConflict(err))
}

func TestRemoveCancelsAndKeepsRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := testNow.Add(time.Hour)

	apt, err := f.service.Create(ctx, createRequest(start), 1)
	require.NoError(t, err)

	require.NoError(t, f.service.Remove(ctx, apt.ID, 1))

	stored, err := f.appointments.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, stored.Status)

	// The freed slot is bookable again.
	req := createRequest(start)
	req.PatientID = 2
	_, err = f.service.Create(ctx, req, 2)
	assert.NoError(t, err)
}

func TestRemoveInsideLeadTimeWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.service.Create(ctx, createRequest(testNow.Add(time.Hour)), 1)
	require.NoError(t, err)

	// Move the clock to five minutes before the start.
	f.service.clock = fixedClock{now: apt.StartDate.Add(-5 * time.Minute)}

	err = f.service.Remove(ctx, apt.ID, 1)
	assert.True(t, apperrors.IsConflict(err))

	stored, getErr := f.appointments.Get(ctx, apt.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.AppointmentStatusActive, stored.Status)
}

func TestFindHistoryIncludesCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Create(ctx, createRequest(testNow.Add(time.Hour)), 1)
	require.NoError(t, err)
	require.NoError(t, f.service.Remove(ctx, first.ID, 1))

	_, err = f.service.Create(ctx, createRequest(testNow.Add(3*time.Hour)), 1)
	require.NoError(t, err)

	history, err := f.service.FindHistory(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestFindHistoryEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.FindHistory(context.Background(), 2, 10)

	assert.True(t, apperrors.IsNotFound(err))
	assert.EqualError(t, err, "this patient has no appointments")
}

func TestAvailableDoctors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Clock at 09:00; book Dr. Carol into the current 09:00-09:59 slot
	// via a store write, bypassing the lead-time gate.
	require.NoError(t, f.appointments.Create(ctx, &model.Appointment{
		PatientID: 1,
		DoctorID:  10,
		StartDate: testNow,
		EndDate:   testNow.Add(59 * time.Minute),
		Specialty: model.SpecialtyCardiology,
		Status:    model.AppointmentStatusActive,
	}))

	available, err := f.service.AvailableDoctors(ctx)
	require.NoError(t, err)

	ids := make(map[int64]bool)
	for _, d := range available {
		ids[d.ID] = true
		assert.Empty(t, d.PasswordHash)
	}
	assert.False(t, ids[10], "doctor with an active overlapping appointment is occupied")
	assert.True(t, ids[11])
	assert.True(t, ids[12])
}

func TestAvailableDoctorsIgnoresCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.appointments.Create(ctx, &model.Appointment{
		PatientID: 1,
		DoctorID:  10,
		StartDate: testNow,
		EndDate:   testNow.Add(59 * time.Minute),
		Specialty: model.SpecialtyCardiology,
		Status:    model.AppointmentStatusCancelled,
	}))

	available, err := f.service.AvailableDoctors(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 3)
}

func TestStoreGuardBacksConcurrentCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := testNow.Add(time.Hour)

	// Two writers racing for the same slot: exactly one wins.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := createRequest(start)
			if i == 1 {
				req.PatientID = 2
			}
			_, errs[i] = f.service.Create(ctx, req, req.PatientID)
		}(i)
	}
	wg.Wait()

	var conflicts int
	for _, err := range errs {
		if err != nil {
			assert.True(t, apperrors.IsConflict(err))
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)
}
