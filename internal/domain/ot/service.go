package ot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

const (
	// Alternative slots are searched on a half-hour grid over the next
	// two days of theatre time.
	altSlotMinutes  = 30
	altSearchHours  = 48
	maxAltSlots     = 5
	defaultDuration = 60
)

type Service struct {
	theatres TheatreRepository
	types    SurgeryTypeRepository
	bookings BookingRepository
	runTx    db.TxRunner
}

func NewService(theatres TheatreRepository, types SurgeryTypeRepository, bookings BookingRepository, runTx db.TxRunner) *Service {
	return &Service{theatres: theatres, types: types, bookings: bookings, runTx: runTx}
}

// -- Theatres --

func (s *Service) CreateTheatre(ctx context.Context, t *OperationTheatre) error {
	if t.Name == "" {
		return hmserr.Validation("theatre name is required")
	}
	t.Status = TheatreAvailable
	return s.theatres.Create(ctx, t)
}

func (s *Service) GetTheatre(ctx context.Context, id uuid.UUID) (*OperationTheatre, error) {
	return s.theatres.GetByID(ctx, id)
}

func (s *Service) ListTheatres(ctx context.Context) ([]*OperationTheatre, error) {
	return s.theatres.List(ctx)
}

func (s *Service) UpdateTheatre(ctx context.Context, t *OperationTheatre) error {
	if t.Name == "" {
		return hmserr.Validation("theatre name is required")
	}
	if !validTheatreStatuses[t.Status] {
		return hmserr.Validation("invalid theatre status %q", t.Status)
	}
	return s.theatres.Update(ctx, t)
}

func (s *Service) DeleteTheatre(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	upcoming, err := s.bookings.ListActiveOverlappingTheatre(ctx, id, now, now.AddDate(1, 0, 0), nil)
	if err != nil {
		return err
	}
	if len(upcoming) > 0 {
		return hmserr.Conflict("theatre has %d active bookings", len(upcoming))
	}
	return s.theatres.Delete(ctx, id)
}

// -- Surgery types --

func (s *Service) CreateSurgeryType(ctx context.Context, st *SurgeryType) error {
	if st.Name == "" {
		return hmserr.Validation("surgery type name is required")
	}
	if st.DefaultDuration <= 0 {
		st.DefaultDuration = defaultDuration
	}
	return s.types.Create(ctx, st)
}

func (s *Service) GetSurgeryType(ctx context.Context, id uuid.UUID) (*SurgeryType, error) {
	return s.types.GetByID(ctx, id)
}

func (s *Service) ListSurgeryTypes(ctx context.Context) ([]*SurgeryType, error) {
	return s.types.List(ctx)
}

func (s *Service) UpdateSurgeryType(ctx context.Context, st *SurgeryType) error {
	if st.Name == "" {
		return hmserr.Validation("surgery type name is required")
	}
	if st.DefaultDuration <= 0 {
		return hmserr.Validation("default duration must be positive")
	}
	return s.types.Update(ctx, st)
}

// -- Bookings --

// conflictsFor collects scheduling conflicts for a theatre slot, checking
// both the theatre and the lead surgeon.
func (s *Service) conflictsFor(ctx context.Context, theatreID, surgeonID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]string, error) {
	var conflicts []string

	theatre, err := s.theatres.GetByID(ctx, theatreID)
	if err != nil {
		return nil, err
	}
	if theatre.Status == TheatreMaintenance {
		conflicts = append(conflicts, fmt.Sprintf("theatre %s is under maintenance", theatre.Name))
	}

	busy, err := s.bookings.ListActiveOverlappingTheatre(ctx, theatreID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	for _, b := range busy {
		conflicts = append(conflicts, fmt.Sprintf("theatre booked from %s to %s",
			b.StartTime.Format("2006-01-02 15:04"), b.EndTime().Format("15:04")))
	}

	surgeonBusy, err := s.bookings.ListActiveOverlappingSurgeon(ctx, surgeonID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	for _, b := range surgeonBusy {
		// A clash already reported for this theatre covers the surgeon too.
		if b.TheatreID == theatreID {
			continue
		}
		conflicts = append(conflicts, fmt.Sprintf("surgeon has a booking from %s to %s",
			b.StartTime.Format("2006-01-02 15:04"), b.EndTime().Format("15:04")))
	}
	return conflicts, nil
}

// SuggestSlots scans forward on a half-hour grid for open slots of the
// given duration in the theatre, also requiring the surgeon to be free.
func (s *Service) SuggestSlots(ctx context.Context, theatreID, surgeonID uuid.UUID, from time.Time, durationMinutes int) ([]TimeSlot, error) {
	if durationMinutes <= 0 {
		durationMinutes = defaultDuration
	}
	from = from.UTC().Truncate(time.Minute)
	if rem := from.Minute() % altSlotMinutes; rem != 0 {
		from = from.Add(time.Duration(altSlotMinutes-rem) * time.Minute)
	}

	var slots []TimeSlot
	for offset := 0; offset < altSearchHours*60 && len(slots) < maxAltSlots; offset += altSlotMinutes {
		start := from.Add(time.Duration(offset) * time.Minute)
		end := start.Add(time.Duration(durationMinutes) * time.Minute)
		conflicts, err := s.conflictsFor(ctx, theatreID, surgeonID, start, end, nil)
		if err != nil {
			return nil, err
		}
		if len(conflicts) == 0 {
			slots = append(slots, TimeSlot{TheatreID: theatreID, Start: start, End: end})
		}
	}
	return slots, nil
}

// Book schedules a surgery. The conflict check runs inside the insert
// transaction and the partial unique index on (theatre_id, start_time)
// closes the remaining race.
func (s *Service) Book(ctx context.Context, b *Booking) ([]TimeSlot, error) {
	if b.TheatreID == uuid.Nil {
		return nil, hmserr.Validation("theatre_id is required")
	}
	if b.PatientID == uuid.Nil {
		return nil, hmserr.Validation("patient_id is required")
	}
	if b.SurgeonID == uuid.Nil {
		return nil, hmserr.Validation("surgeon_id is required")
	}
	if b.StartTime.IsZero() {
		return nil, hmserr.Validation("start_time is required")
	}
	b.StartTime = b.StartTime.UTC()
	if b.DurationMinutes <= 0 {
		st, err := s.types.GetByID(ctx, b.SurgeryTypeID)
		if err != nil {
			return nil, err
		}
		b.DurationMinutes = st.DefaultDuration
	}
	b.Status = BookingScheduled

	err := s.runTx(ctx, func(txCtx context.Context) error {
		conflicts, err := s.conflictsFor(txCtx, b.TheatreID, b.SurgeonID, b.StartTime, b.EndTime(), nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return hmserr.ConflictWithDetails("theatre slot is not available", conflicts)
		}
		return s.bookings.Create(txCtx, b)
	})
	if err == nil {
		return nil, nil
	}
	if !hmserr.IsKind(err, hmserr.KindConflict) {
		return nil, err
	}
	// Offer alternatives alongside the conflict.
	alternatives, altErr := s.SuggestSlots(ctx, b.TheatreID, b.SurgeonID, b.StartTime, b.DurationMinutes)
	if altErr != nil {
		return nil, err
	}
	return alternatives, err
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *Service) SearchBookings(ctx context.Context, params BookingSearchParams, limit, offset int) ([]*Booking, int, error) {
	return s.bookings.Search(ctx, params, limit, offset)
}

// StartSurgery moves the booking to in-progress and flips the theatre to
// in-use in the same transaction.
func (s *Service) StartSurgery(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, BookingInProgress, TheatreInUse)
}

// CompleteSurgery finishes the booking and sends the theatre to cleaning.
func (s *Service) CompleteSurgery(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, BookingCompleted, TheatreCleaning)
}

// CancelBooking releases the slot. The theatre status is left alone since
// a scheduled booking never held the room.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID) error {
	return s.runTx(ctx, func(txCtx context.Context) error {
		b, err := s.bookings.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !transitionAllowed(b.Status, BookingCancelled) {
			return hmserr.Conflict("cannot cancel a booking in status %s", b.Status)
		}
		if err := s.bookings.UpdateStatus(txCtx, id, BookingCancelled); err != nil {
			return err
		}
		// An interrupted surgery leaves the room needing turnover.
		if b.Status == BookingInProgress {
			return s.theatres.UpdateStatus(txCtx, b.TheatreID, TheatreCleaning)
		}
		return nil
	})
}

// MarkTheatreReady returns a cleaned theatre to service.
func (s *Service) MarkTheatreReady(ctx context.Context, id uuid.UUID) error {
	t, err := s.theatres.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Status == TheatreInUse {
		return hmserr.Conflict("theatre is in use")
	}
	return s.theatres.UpdateStatus(ctx, id, TheatreAvailable)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, bookingStatus, theatreStatus string) error {
	return s.runTx(ctx, func(txCtx context.Context) error {
		b, err := s.bookings.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !transitionAllowed(b.Status, bookingStatus) {
			return hmserr.Conflict("cannot move booking from %s to %s", b.Status, bookingStatus)
		}
		if err := s.bookings.UpdateStatus(txCtx, id, bookingStatus); err != nil {
			return err
		}
		return s.theatres.UpdateStatus(txCtx, b.TheatreID, theatreStatus)
	})
}
