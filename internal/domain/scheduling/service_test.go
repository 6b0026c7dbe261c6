package scheduling

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

// -- Mock Repositories --

type mockScheduleRepo struct {
	scheds map[uuid.UUID]*DoctorSchedule
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{scheds: make(map[uuid.UUID]*DoctorSchedule)}
}

func (m *mockScheduleRepo) Create(_ context.Context, s *DoctorSchedule) error {
	for _, existing := range m.scheds {
		if existing.DoctorID == s.DoctorID && existing.DayOfWeek == s.DayOfWeek {
			return hmserr.Conflict("schedule for this doctor and weekday already exists")
		}
	}
	s.ID = uuid.New()
	m.scheds[s.ID] = s
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*DoctorSchedule, error) {
	s, ok := m.scheds[id]
	if !ok {
		return nil, hmserr.NotFound("doctor schedule", id.String())
	}
	return s, nil
}

func (m *mockScheduleRepo) GetByDoctorDay(_ context.Context, doctorID uuid.UUID, day int) (*DoctorSchedule, error) {
	for _, s := range m.scheds {
		if s.DoctorID == doctorID && s.DayOfWeek == day && s.Active {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockScheduleRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*DoctorSchedule, error) {
	var items []*DoctorSchedule
	for _, s := range m.scheds {
		if s.DoctorID == doctorID {
			items = append(items, s)
		}
	}
	return items, nil
}

func (m *mockScheduleRepo) Update(_ context.Context, s *DoctorSchedule) error {
	m.scheds[s.ID] = s
	return nil
}

func (m *mockScheduleRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.scheds, id)
	return nil
}

type mockBlockedRepo struct {
	blocks map[uuid.UUID]*BlockedTime
}

func newMockBlockedRepo() *mockBlockedRepo {
	return &mockBlockedRepo{blocks: make(map[uuid.UUID]*BlockedTime)}
}

func (m *mockBlockedRepo) Create(_ context.Context, b *BlockedTime) error {
	b.ID = uuid.New()
	m.blocks[b.ID] = b
	return nil
}

func (m *mockBlockedRepo) GetByID(_ context.Context, id uuid.UUID) (*BlockedTime, error) {
	b, ok := m.blocks[id]
	if !ok {
		return nil, hmserr.NotFound("blocked time", id.String())
	}
	return b, nil
}

func (m *mockBlockedRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*BlockedTime, int, error) {
	var items []*BlockedTime
	for _, b := range m.blocks {
		if b.DoctorID == doctorID {
			items = append(items, b)
		}
	}
	return items, len(items), nil
}

func (m *mockBlockedRepo) ListOverlapping(_ context.Context, doctorID uuid.UUID, start, end time.Time) ([]*BlockedTime, error) {
	var items []*BlockedTime
	for _, b := range m.blocks {
		if b.DoctorID == doctorID && b.StartTime.Before(end) && b.EndTime.After(start) {
			items = append(items, b)
		}
	}
	return items, nil
}

func (m *mockBlockedRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.blocks, id)
	return nil
}

type mockApptRepo struct {
	appts        map[uuid.UUID]*Appointment
	patientNames map[uuid.UUID]string
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{
		appts:        make(map[uuid.UUID]*Appointment),
		patientNames: make(map[uuid.UUID]string),
	}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	for _, existing := range m.appts {
		if existing.DoctorID == a.DoctorID && existing.StartTime.Equal(a.StartTime) &&
			activeStatuses[existing.Status] {
			return hmserr.Conflict("appointment slot was booked concurrently")
		}
	}
	a.ID = uuid.New()
	m.appts[a.ID] = a
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, hmserr.NotFound("appointment", id.String())
	}
	return a, nil
}

func (m *mockApptRepo) Update(_ context.Context, a *Appointment) error {
	m.appts[a.ID] = a
	return nil
}

func (m *mockApptRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string, cancelReason *string) error {
	a, ok := m.appts[id]
	if !ok {
		return hmserr.NotFound("appointment", id.String())
	}
	a.Status = status
	if cancelReason != nil {
		a.CancelReason = cancelReason
	}
	return nil
}

func (m *mockApptRepo) ListActiveOverlapping(_ context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*AppointmentConflict, error) {
	var items []*AppointmentConflict
	for _, a := range m.appts {
		if a.DoctorID != doctorID || !activeStatuses[a.Status] {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.StartTime.Before(end) && a.EndTime().After(start) {
			name := m.patientNames[a.PatientID]
			if name == "" {
				name = "Unknown Patient"
			}
			items = append(items, &AppointmentConflict{Appointment: *a, PatientName: name})
		}
	}
	return items, nil
}

func (m *mockApptRepo) Search(_ context.Context, params SearchParams, limit, offset int) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range m.appts {
		if params.DoctorID != nil && a.DoctorID != *params.DoctorID {
			continue
		}
		if params.Status != "" && a.Status != params.Status {
			continue
		}
		items = append(items, a)
	}
	return items, len(items), nil
}

// -- Fixture --

type fixture struct {
	svc    *Service
	scheds *mockScheduleRepo
	blocks *mockBlockedRepo
	appts  *mockApptRepo
}

func newFixture() *fixture {
	scheds := newMockScheduleRepo()
	blocks := newMockBlockedRepo()
	appts := newMockApptRepo()
	svc := NewService(scheds, blocks, appts, db.PassthroughTxRunner(), cache.NewNoop(), Options{
		DefaultWindow: Window{StartMinute: 9 * 60, EndMinute: 17 * 60},
		SlotMinutes:   30,
	})
	return &fixture{svc: svc, scheds: scheds, blocks: blocks, appts: appts}
}

// monday is a Monday at midnight UTC.
var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(base time.Time, hour, min int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), hour, min, 0, 0, time.UTC)
}

// -- Availability --

func TestAvailabilityEmptyScheduleIsAvailable(t *testing.T) {
	f := newFixture()
	doctorID := uuid.New()

	result, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 10, 0), at(monday, 10, 30), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if !result.Available {
		t.Errorf("expected available against an empty schedule, conflicts: %v", result.Conflicts)
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("expected no conflicts, got %v", result.Conflicts)
	}
}

func TestAvailabilityOverlapNamesPatient(t *testing.T) {
	f := newFixture()
	doctorID := uuid.New()
	patientID := uuid.New()
	f.appts.patientNames[patientID] = "Asha Rao"

	appt := &Appointment{
		DoctorID:        doctorID,
		PatientID:       patientID,
		StartTime:       at(monday, 10, 0),
		DurationMinutes: 30,
	}
	if err := f.svc.BookAppointment(context.Background(), appt); err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}

	result, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 10, 15), at(monday, 10, 45), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if result.Available {
		t.Fatal("expected overlap to make the slot unavailable")
	}
	found := false
	for _, c := range result.Conflicts {
		if strings.Contains(c, "Asha Rao") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a conflict naming the patient, got %v", result.Conflicts)
	}
}

func TestAvailabilityWorkingHoursBoundaries(t *testing.T) {
	f := newFixture()
	doctorID := uuid.New()
	if err := f.svc.CreateSchedule(context.Background(), &DoctorSchedule{
		DoctorID:    doctorID,
		DayOfWeek:   1, // Monday
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
	}); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	before, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 8, 30), at(monday, 9, 0), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if before.Available {
		t.Error("expected 08:30-09:00 to violate working hours")
	}

	atOpen, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 9, 0), at(monday, 9, 30), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if !atOpen.Available {
		t.Errorf("expected 09:00-09:30 at the window start to be available, conflicts: %v", atOpen.Conflicts)
	}
}

func TestAvailabilityBlockedTimeConflicts(t *testing.T) {
	f := newFixture()
	doctorID := uuid.New()
	if err := f.svc.CreateBlockedTime(context.Background(), &BlockedTime{
		DoctorID:  doctorID,
		Reason:    "ward rounds",
		StartTime: at(monday, 11, 0),
		EndTime:   at(monday, 12, 0),
	}); err != nil {
		t.Fatalf("CreateBlockedTime: %v", err)
	}

	result, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 11, 30), at(monday, 12, 0), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if result.Available {
		t.Fatal("expected blocked time to conflict")
	}
	if !strings.Contains(result.Conflicts[0], "ward rounds") {
		t.Errorf("expected conflict to carry the block reason, got %v", result.Conflicts)
	}
}

func TestAvailabilityRejectsInvertedRange(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CheckDoctorAvailability(context.Background(), uuid.New(),
		at(monday, 10, 0), at(monday, 9, 0), nil)
	if !hmserr.IsKind(err, hmserr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// -- Slot suggestion --

func TestSuggestSlotsCapAndConsistency(t *testing.T) {
	f := newFixture()
	doctorID := uuid.New()
	if err := f.svc.CreateSchedule(context.Background(), &DoctorSchedule{
		DoctorID:    doctorID,
		DayOfWeek:   1,
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
	}); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	slots, err := f.svc.SuggestSlots(context.Background(), doctorID, monday)
	if err != nil {
		t.Fatalf("SuggestSlots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected suggestions")
	}
	if len(slots) > 5 {
		t.Errorf("expected at most 5 slots, got %d", len(slots))
	}
	for _, slot := range slots {
		result, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID, slot.Start, slot.End, nil)
		if err != nil {
			t.Fatalf("CheckDoctorAvailability: %v", err)
		}
		if !result.Available {
			t.Errorf("suggested slot %v-%v has conflicts %v", slot.Start, slot.End, result.Conflicts)
		}
	}
}

func TestSuggestSlotsSkipBookedSlots(t *testing.T) {
	f := newFixture()
	doctorID := uuid.New()
	if err := f.svc.CreateSchedule(context.Background(), &DoctorSchedule{
		DoctorID:    doctorID,
		DayOfWeek:   1,
		StartMinute: 9 * 60,
		EndMinute:   11 * 60,
	}); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if err := f.svc.BookAppointment(context.Background(), &Appointment{
		DoctorID:        doctorID,
		PatientID:       uuid.New(),
		StartTime:       at(monday, 9, 0),
		DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}

	slots, err := f.svc.SuggestSlots(context.Background(), doctorID, monday)
	if err != nil {
		t.Fatalf("SuggestSlots: %v", err)
	}
	for _, slot := range slots {
		if slot.Start.Equal(at(monday, 9, 0)) {
			t.Error("expected the booked 09:00 slot to be skipped")
		}
	}
}

func TestSuggestSlotsFallsBackToDefaultWindow(t *testing.T) {
	f := newFixture()
	doctorID := uuid.New()

	slots, err := f.svc.SuggestSlots(context.Background(), doctorID, monday)
	if err != nil {
		t.Fatalf("SuggestSlots: %v", err)
	}
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots from the default window, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(monday, 9, 0)) {
		t.Errorf("expected first slot at the default window open, got %v", slots[0].Start)
	}
}

// -- Booking --

func TestBookAppointmentEndToEnd(t *testing.T) {
	f := newFixture()
	doctorID := uuid.New()
	if err := f.svc.CreateSchedule(context.Background(), &DoctorSchedule{
		DoctorID:    doctorID,
		DayOfWeek:   1,
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
	}); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	first := &Appointment{
		DoctorID:        doctorID,
		PatientID:       uuid.New(),
		StartTime:       at(monday, 9, 0),
		DurationMinutes: 30,
	}
	if err := f.svc.BookAppointment(context.Background(), first); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if first.Status != StatusScheduled {
		t.Errorf("expected status scheduled, got %s", first.Status)
	}

	duplicate := &Appointment{
		DoctorID:        doctorID,
		PatientID:       uuid.New(),
		StartTime:       at(monday, 9, 0),
		DurationMinutes: 30,
	}
	err := f.svc.BookAppointment(context.Background(), duplicate)
	if !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Errorf("expected conflict for identical slot, got %v", err)
	}

	adjacent := &Appointment{
		DoctorID:        doctorID,
		PatientID:       uuid.New(),
		StartTime:       at(monday, 9, 30),
		DurationMinutes: 30,
	}
	if err := f.svc.BookAppointment(context.Background(), adjacent); err != nil {
		t.Errorf("expected adjacent non-overlapping slot to book, got %v", err)
	}
}

func TestBookAppointmentDefaultsDuration(t *testing.T) {
	f := newFixture()
	a := &Appointment{
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		StartTime: at(monday, 14, 0),
	}
	if err := f.svc.BookAppointment(context.Background(), a); err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}
	if a.DurationMinutes != 30 {
		t.Errorf("expected default duration 30, got %d", a.DurationMinutes)
	}
}

func TestBookAppointmentNormalizesToUTC(t *testing.T) {
	f := newFixture()
	ist := time.FixedZone("IST", 5*3600+1800)
	a := &Appointment{
		DoctorID:        uuid.New(),
		PatientID:       uuid.New(),
		StartTime:       time.Date(2024, 1, 1, 15, 0, 0, 0, ist),
		DurationMinutes: 30,
	}
	if err := f.svc.BookAppointment(context.Background(), a); err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}
	if a.StartTime.Location() != time.UTC {
		t.Errorf("expected UTC storage, got %v", a.StartTime.Location())
	}
	if a.StartTime.Hour() != 9 || a.StartTime.Minute() != 30 {
		t.Errorf("expected 09:30 UTC, got %s", a.StartTime.Format("15:04"))
	}
}

// -- Lifecycle --

func TestAppointmentTransitions(t *testing.T) {
	f := newFixture()
	a := &Appointment{
		DoctorID:        uuid.New(),
		PatientID:       uuid.New(),
		StartTime:       at(monday, 9, 0),
		DurationMinutes: 30,
	}
	if err := f.svc.BookAppointment(context.Background(), a); err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}

	if err := f.svc.StartAppointment(context.Background(), a.ID); err != nil {
		t.Fatalf("StartAppointment: %v", err)
	}
	if err := f.svc.CompleteAppointment(context.Background(), a.ID); err != nil {
		t.Fatalf("CompleteAppointment: %v", err)
	}

	// Completed is terminal.
	err := f.svc.CancelAppointment(context.Background(), a.ID, "changed plans")
	if !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Errorf("expected conflict when cancelling a completed appointment, got %v", err)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	f := newFixture()
	err := f.svc.CancelAppointment(context.Background(), uuid.New(), "")
	if !hmserr.IsKind(err, hmserr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCancelledSlotBecomesBookable(t *testing.T) {
	f := newFixture()
	doctorID := uuid.New()
	a := &Appointment{
		DoctorID:        doctorID,
		PatientID:       uuid.New(),
		StartTime:       at(monday, 9, 0),
		DurationMinutes: 30,
	}
	if err := f.svc.BookAppointment(context.Background(), a); err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}
	if err := f.svc.CancelAppointment(context.Background(), a.ID, "patient request"); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}

	result, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 9, 0), at(monday, 9, 30), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if !result.Available {
		t.Errorf("expected cancelled slot to be available again, conflicts: %v", result.Conflicts)
	}
}

func TestRescheduleExcludesSelf(t *testing.T) {
	f := newFixture()
	doctorID := uuid.New()
	a := &Appointment{
		DoctorID:        doctorID,
		PatientID:       uuid.New(),
		StartTime:       at(monday, 9, 0),
		DurationMinutes: 30,
	}
	if err := f.svc.BookAppointment(context.Background(), a); err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}

	// Shifting by 15 minutes overlaps the appointment's own old slot; the
	// exclusion must keep that from counting as a conflict.
	updated, err := f.svc.RescheduleAppointment(context.Background(), a.ID, at(monday, 9, 15), 30)
	if err != nil {
		t.Fatalf("RescheduleAppointment: %v", err)
	}
	if !updated.StartTime.Equal(at(monday, 9, 15)) {
		t.Errorf("expected appointment moved to 09:15, got %v", updated.StartTime)
	}
}

func TestScheduleValidation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name  string
		sched *DoctorSchedule
	}{
		{"missing doctor", &DoctorSchedule{DayOfWeek: 1, StartMinute: 540, EndMinute: 1020}},
		{"bad weekday", &DoctorSchedule{DoctorID: uuid.New(), DayOfWeek: 7, StartMinute: 540, EndMinute: 1020}},
		{"inverted window", &DoctorSchedule{DoctorID: uuid.New(), DayOfWeek: 1, StartMinute: 1020, EndMinute: 540}},
		{"window past midnight", &DoctorSchedule{DoctorID: uuid.New(), DayOfWeek: 1, StartMinute: 540, EndMinute: 25 * 60}},
	}
	for _, tt := range tests {
		err := f.svc.CreateSchedule(context.Background(), tt.sched)
		if !hmserr.IsKind(err, hmserr.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", tt.name, err)
		}
	}
}

// -- Availability caching --

// newCachedFixture uses a live in-process cache instead of the no-op so the
// cached availability path is exercised.
func newCachedFixture() *fixture {
	scheds := newMockScheduleRepo()
	blocks := newMockBlockedRepo()
	appts := newMockApptRepo()
	svc := NewService(scheds, blocks, appts, db.PassthroughTxRunner(), cache.NewMemory(), Options{
		DefaultWindow: Window{StartMinute: 9 * 60, EndMinute: 17 * 60},
		SlotMinutes:   30,
	})
	return &fixture{svc: svc, scheds: scheds, blocks: blocks, appts: appts}
}

func TestAvailabilityCacheServesRepeatedChecks(t *testing.T) {
	f := newCachedFixture()
	doctorID := uuid.New()

	first, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 10, 0), at(monday, 10, 30), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if !first.Available {
		t.Fatalf("expected available, conflicts: %v", first.Conflicts)
	}

	// Insert directly into the repo, bypassing the service. A repeat of the
	// same check within the TTL must come from the cache and not see it.
	a := &Appointment{DoctorID: doctorID, PatientID: uuid.New(),
		StartTime: at(monday, 10, 0), DurationMinutes: 30, Status: StatusScheduled}
	if err := f.appts.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	second, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 10, 0), at(monday, 10, 30), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if !second.Available {
		t.Error("expected the repeated check to be served from the cache")
	}
}

func TestBookingInvalidatesOverlappingCachedChecks(t *testing.T) {
	f := newCachedFixture()
	doctorID := uuid.New()
	patientID := uuid.New()
	f.appts.patientNames[patientID] = "Asha Rao"

	// Prime the cache with an availability result for 10:15-10:45.
	primed, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 10, 15), at(monday, 10, 45), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if !primed.Available {
		t.Fatalf("expected available, conflicts: %v", primed.Conflicts)
	}

	// Book a different range that overlaps the cached one.
	if err := f.svc.BookAppointment(context.Background(), &Appointment{
		DoctorID:        doctorID,
		PatientID:       patientID,
		StartTime:       at(monday, 10, 0),
		DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}

	result, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 10, 15), at(monday, 10, 45), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if result.Available {
		t.Fatal("expected the booking to invalidate the overlapping cached result")
	}
	found := false
	for _, c := range result.Conflicts {
		if strings.Contains(c, "Asha Rao") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a conflict naming the patient, got %v", result.Conflicts)
	}
}

func TestRescheduleInvalidatesCachedChecks(t *testing.T) {
	f := newCachedFixture()
	doctorID := uuid.New()

	a := &Appointment{DoctorID: doctorID, PatientID: uuid.New(),
		StartTime: at(monday, 11, 0), DurationMinutes: 30}
	if err := f.svc.BookAppointment(context.Background(), a); err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}

	primed, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 10, 0), at(monday, 10, 30), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if !primed.Available {
		t.Fatalf("expected available, conflicts: %v", primed.Conflicts)
	}

	if _, err := f.svc.RescheduleAppointment(context.Background(), a.ID, at(monday, 10, 0), 30); err != nil {
		t.Fatalf("RescheduleAppointment: %v", err)
	}

	result, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 10, 0), at(monday, 10, 30), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if result.Available {
		t.Error("expected the reschedule to invalidate the cached result")
	}
}

func TestCancelInvalidatesCachedChecks(t *testing.T) {
	f := newCachedFixture()
	doctorID := uuid.New()

	a := &Appointment{DoctorID: doctorID, PatientID: uuid.New(),
		StartTime: at(monday, 10, 0), DurationMinutes: 30}
	if err := f.svc.BookAppointment(context.Background(), a); err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}

	primed, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 10, 15), at(monday, 10, 45), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if primed.Available {
		t.Fatal("expected the booked slot to conflict")
	}

	if err := f.svc.CancelAppointment(context.Background(), a.ID, "patient request"); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}

	result, err := f.svc.CheckDoctorAvailability(context.Background(), doctorID,
		at(monday, 10, 15), at(monday, 10, 45), nil)
	if err != nil {
		t.Fatalf("CheckDoctorAvailability: %v", err)
	}
	if !result.Available {
		t.Errorf("expected availability back after cancellation, conflicts: %v", result.Conflicts)
	}
}
