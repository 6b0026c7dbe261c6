package ot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

type mockTheatreRepo struct {
	theatres map[uuid.UUID]*OperationTheatre
}

func newMockTheatreRepo() *mockTheatreRepo {
	return &mockTheatreRepo{theatres: make(map[uuid.UUID]*OperationTheatre)}
}

func (m *mockTheatreRepo) Create(_ context.Context, t *OperationTheatre) error {
	t.ID = uuid.New()
	m.theatres[t.ID] = t
	return nil
}

func (m *mockTheatreRepo) GetByID(_ context.Context, id uuid.UUID) (*OperationTheatre, error) {
	t, ok := m.theatres[id]
	if !ok {
		return nil, hmserr.NotFound("operation theatre", id.String())
	}
	return t, nil
}

func (m *mockTheatreRepo) List(_ context.Context) ([]*OperationTheatre, error) {
	var out []*OperationTheatre
	for _, t := range m.theatres {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTheatreRepo) Update(_ context.Context, t *OperationTheatre) error {
	if _, ok := m.theatres[t.ID]; !ok {
		return hmserr.NotFound("operation theatre", t.ID.String())
	}
	m.theatres[t.ID] = t
	return nil
}

func (m *mockTheatreRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	t, ok := m.theatres[id]
	if !ok {
		return hmserr.NotFound("operation theatre", id.String())
	}
	t.Status = status
	return nil
}

func (m *mockTheatreRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.theatres[id]; !ok {
		return hmserr.NotFound("operation theatre", id.String())
	}
	delete(m.theatres, id)
	return nil
}

type mockSurgeryTypeRepo struct {
	types map[uuid.UUID]*SurgeryType
}

func newMockSurgeryTypeRepo() *mockSurgeryTypeRepo {
	return &mockSurgeryTypeRepo{types: make(map[uuid.UUID]*SurgeryType)}
}

func (m *mockSurgeryTypeRepo) Create(_ context.Context, st *SurgeryType) error {
	st.ID = uuid.New()
	m.types[st.ID] = st
	return nil
}

func (m *mockSurgeryTypeRepo) GetByID(_ context.Context, id uuid.UUID) (*SurgeryType, error) {
	st, ok := m.types[id]
	if !ok {
		return nil, hmserr.NotFound("surgery type", id.String())
	}
	return st, nil
}

func (m *mockSurgeryTypeRepo) List(_ context.Context) ([]*SurgeryType, error) {
	var out []*SurgeryType
	for _, st := range m.types {
		out = append(out, st)
	}
	return out, nil
}

func (m *mockSurgeryTypeRepo) Update(_ context.Context, st *SurgeryType) error {
	if _, ok := m.types[st.ID]; !ok {
		return hmserr.NotFound("surgery type", st.ID.String())
	}
	m.types[st.ID] = st
	return nil
}

type mockBookingRepo struct {
	bookings map[uuid.UUID]*Booking
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{bookings: make(map[uuid.UUID]*Booking)}
}

func (m *mockBookingRepo) Create(_ context.Context, b *Booking) error {
	for _, existing := range m.bookings {
		if existing.TheatreID == b.TheatreID && existing.StartTime.Equal(b.StartTime) &&
			activeStatuses[existing.Status] {
			return hmserr.Conflict("theatre slot was booked concurrently")
		}
	}
	b.ID = uuid.New()
	m.bookings[b.ID] = b
	return nil
}

func (m *mockBookingRepo) GetByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, hmserr.NotFound("theatre booking", id.String())
	}
	return b, nil
}

func (m *mockBookingRepo) Search(_ context.Context, params BookingSearchParams, limit, offset int) ([]*Booking, int, error) {
	var out []*Booking
	for _, b := range m.bookings {
		if params.Status != "" && b.Status != params.Status {
			continue
		}
		out = append(out, b)
	}
	return out, len(out), nil
}

func (m *mockBookingRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	b, ok := m.bookings[id]
	if !ok {
		return hmserr.NotFound("theatre booking", id.String())
	}
	b.Status = status
	return nil
}

func (m *mockBookingRepo) ListActiveOverlappingTheatre(_ context.Context, theatreID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Booking, error) {
	return m.overlapping(func(b *Booking) bool { return b.TheatreID == theatreID }, start, end, excludeID), nil
}

func (m *mockBookingRepo) ListActiveOverlappingSurgeon(_ context.Context, surgeonID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Booking, error) {
	return m.overlapping(func(b *Booking) bool { return b.SurgeonID == surgeonID }, start, end, excludeID), nil
}

func (m *mockBookingRepo) overlapping(match func(*Booking) bool, start, end time.Time, excludeID *uuid.UUID) []*Booking {
	var out []*Booking
	for _, b := range m.bookings {
		if !match(b) || !activeStatuses[b.Status] {
			continue
		}
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		if b.StartTime.Before(end) && b.EndTime().After(start) {
			out = append(out, b)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	theatres *mockTheatreRepo
}

func newFixture() *fixture {
	theatres := newMockTheatreRepo()
	svc := NewService(theatres, newMockSurgeryTypeRepo(), newMockBookingRepo(),
		db.PassthroughTxRunner())
	return &fixture{svc: svc, theatres: theatres}
}

func (f *fixture) theatre(t *testing.T) *OperationTheatre {
	t.Helper()
	theatre := &OperationTheatre{Name: "OT-" + uuid.New().String()[:8]}
	if err := f.svc.CreateTheatre(context.Background(), theatre); err != nil {
		t.Fatalf("CreateTheatre: %v", err)
	}
	return theatre
}

func (f *fixture) surgeryType(t *testing.T, duration int) *SurgeryType {
	t.Helper()
	st := &SurgeryType{Name: "Appendectomy " + uuid.New().String()[:8], DefaultDuration: duration}
	if err := f.svc.CreateSurgeryType(context.Background(), st); err != nil {
		t.Fatalf("CreateSurgeryType: %v", err)
	}
	return st
}

var day = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, time.UTC)
}

func (f *fixture) book(t *testing.T, theatreID, surgeonID uuid.UUID, start time.Time, duration int) *Booking {
	t.Helper()
	st := f.surgeryType(t, duration)
	b := &Booking{
		TheatreID:     theatreID,
		PatientID:     uuid.New(),
		SurgeonID:     surgeonID,
		SurgeryTypeID: st.ID,
		StartTime:     start,
	}
	if _, err := f.svc.Book(context.Background(), b); err != nil {
		t.Fatalf("Book: %v", err)
	}
	return b
}

func TestBookTheatreOverlapConflicts(t *testing.T) {
	f := newFixture()
	theatre := f.theatre(t)
	f.book(t, theatre.ID, uuid.New(), at(9, 0), 120)

	st := f.surgeryType(t, 60)
	alt, err := f.svc.Book(context.Background(), &Booking{
		TheatreID:     theatre.ID,
		PatientID:     uuid.New(),
		SurgeonID:     uuid.New(),
		SurgeryTypeID: st.ID,
		StartTime:     at(10, 0),
	})
	if !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(alt) == 0 {
		t.Error("expected alternative slots alongside the conflict")
	}
	for _, slot := range alt {
		if slot.Start.Before(at(11, 0)) {
			t.Errorf("alternative slot %v overlaps the existing booking", slot.Start)
		}
	}
}

func TestBookSurgeonOverlapConflictsAcrossTheatres(t *testing.T) {
	f := newFixture()
	first := f.theatre(t)
	second := f.theatre(t)
	surgeon := uuid.New()
	f.book(t, first.ID, surgeon, at(9, 0), 60)

	st := f.surgeryType(t, 60)
	_, err := f.svc.Book(context.Background(), &Booking{
		TheatreID:     second.ID,
		PatientID:     uuid.New(),
		SurgeonID:     surgeon,
		SurgeryTypeID: st.ID,
		StartTime:     at(9, 30),
	})
	if !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Errorf("expected surgeon double-booking conflict, got %v", err)
	}
}

func TestBookAdjacentSlotsSucceed(t *testing.T) {
	f := newFixture()
	theatre := f.theatre(t)
	surgeon := uuid.New()
	f.book(t, theatre.ID, surgeon, at(9, 0), 60)
	f.book(t, theatre.ID, surgeon, at(10, 0), 60)
}

func TestBookUsesSurgeryTypeDefaultDuration(t *testing.T) {
	f := newFixture()
	theatre := f.theatre(t)
	st := f.surgeryType(t, 90)
	b := &Booking{
		TheatreID:     theatre.ID,
		PatientID:     uuid.New(),
		SurgeonID:     uuid.New(),
		SurgeryTypeID: st.ID,
		StartTime:     at(14, 0),
	}
	if _, err := f.svc.Book(context.Background(), b); err != nil {
		t.Fatalf("Book: %v", err)
	}
	if b.DurationMinutes != 90 {
		t.Errorf("expected default duration 90, got %d", b.DurationMinutes)
	}
}

func TestBookMaintenanceTheatreConflicts(t *testing.T) {
	f := newFixture()
	theatre := f.theatre(t)
	theatre.Status = TheatreMaintenance

	st := f.surgeryType(t, 60)
	_, err := f.svc.Book(context.Background(), &Booking{
		TheatreID:     theatre.ID,
		PatientID:     uuid.New(),
		SurgeonID:     uuid.New(),
		SurgeryTypeID: st.ID,
		StartTime:     at(9, 0),
	})
	if !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Errorf("expected conflict booking a maintenance theatre, got %v", err)
	}
}

func TestSurgeryLifecycleFlipsTheatreStatus(t *testing.T) {
	f := newFixture()
	theatre := f.theatre(t)
	b := f.book(t, theatre.ID, uuid.New(), at(9, 0), 60)

	if err := f.svc.StartSurgery(context.Background(), b.ID); err != nil {
		t.Fatalf("StartSurgery: %v", err)
	}
	if theatre.Status != TheatreInUse {
		t.Errorf("expected theatre in-use, got %s", theatre.Status)
	}

	if err := f.svc.CompleteSurgery(context.Background(), b.ID); err != nil {
		t.Fatalf("CompleteSurgery: %v", err)
	}
	if theatre.Status != TheatreCleaning {
		t.Errorf("expected theatre cleaning, got %s", theatre.Status)
	}

	if err := f.svc.MarkTheatreReady(context.Background(), theatre.ID); err != nil {
		t.Fatalf("MarkTheatreReady: %v", err)
	}
	if theatre.Status != TheatreAvailable {
		t.Errorf("expected theatre available, got %s", theatre.Status)
	}

	// Completed is terminal.
	if err := f.svc.StartSurgery(context.Background(), b.ID); !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Errorf("expected conflict restarting a completed surgery, got %v", err)
	}
}

func TestCancelScheduledLeavesTheatreAlone(t *testing.T) {
	f := newFixture()
	theatre := f.theatre(t)
	b := f.book(t, theatre.ID, uuid.New(), at(9, 0), 60)

	if err := f.svc.CancelBooking(context.Background(), b.ID); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if theatre.Status != TheatreAvailable {
		t.Errorf("expected theatre untouched, got %s", theatre.Status)
	}

	// The slot opens up again.
	f.book(t, theatre.ID, uuid.New(), at(9, 0), 60)
}

func TestCancelInProgressSendsTheatreToCleaning(t *testing.T) {
	f := newFixture()
	theatre := f.theatre(t)
	b := f.book(t, theatre.ID, uuid.New(), at(9, 0), 60)
	if err := f.svc.StartSurgery(context.Background(), b.ID); err != nil {
		t.Fatalf("StartSurgery: %v", err)
	}
	if err := f.svc.CancelBooking(context.Background(), b.ID); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if theatre.Status != TheatreCleaning {
		t.Errorf("expected theatre cleaning after aborted surgery, got %s", theatre.Status)
	}
}

func TestSuggestSlotsSkipBusyTheatreAndSurgeon(t *testing.T) {
	f := newFixture()
	theatre := f.theatre(t)
	surgeon := uuid.New()
	f.book(t, theatre.ID, surgeon, at(9, 0), 60)

	slots, err := f.svc.SuggestSlots(context.Background(), theatre.ID, surgeon, at(9, 0), 60)
	if err != nil {
		t.Fatalf("SuggestSlots: %v", err)
	}
	if len(slots) == 0 || len(slots) > 5 {
		t.Fatalf("expected 1 to 5 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(10, 0)) {
		t.Errorf("expected first open slot at 10:00, got %v", slots[0].Start)
	}
}

func TestDeleteTheatreWithBookingsConflicts(t *testing.T) {
	f := newFixture()
	theatre := f.theatre(t)
	f.book(t, theatre.ID, uuid.New(), time.Now().UTC().Add(time.Hour), 60)

	if err := f.svc.DeleteTheatre(context.Background(), theatre.ID); !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Errorf("expected conflict deleting a theatre with bookings, got %v", err)
	}
}
