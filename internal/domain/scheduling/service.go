package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

// Window is the facility default working window used for days without a
// schedule row. Minutes from midnight, end exclusive.
type Window struct {
	StartMinute int
	EndMinute   int
}

// Options configure the scheduling service from the environment.
type Options struct {
	DefaultWindow Window
	SlotMinutes   int
}

const (
	suggestionDays    = 7
	maxSuggestedSlots = 5
	availabilityTTL   = 30 * time.Second
)

type Service struct {
	schedules    ScheduleRepository
	blocked      BlockedTimeRepository
	appointments AppointmentRepository
	runTx        db.TxRunner
	cache        cache.Cache
	opts         Options
}

func NewService(schedules ScheduleRepository, blocked BlockedTimeRepository,
	appointments AppointmentRepository, runTx db.TxRunner, c cache.Cache, opts Options) *Service {
	if opts.SlotMinutes <= 0 {
		opts.SlotMinutes = 30
	}
	return &Service{
		schedules:    schedules,
		blocked:      blocked,
		appointments: appointments,
		runTx:        runTx,
		cache:        c,
		opts:         opts,
	}
}

// -- DoctorSchedule --

func (s *Service) CreateSchedule(ctx context.Context, sched *DoctorSchedule) error {
	if err := validateScheduleWindow(sched); err != nil {
		return err
	}
	sched.Active = true
	return s.schedules.Create(ctx, sched)
}

func validateScheduleWindow(sched *DoctorSchedule) error {
	if sched.DoctorID == uuid.Nil {
		return hmserr.Validation("doctor_id is required")
	}
	if sched.DayOfWeek < 0 || sched.DayOfWeek > 6 {
		return hmserr.Validation("day_of_week must be 0-6")
	}
	if sched.StartMinute < 0 || sched.EndMinute > 24*60 {
		return hmserr.Validation("working window must lie within the day")
	}
	if sched.EndMinute <= sched.StartMinute {
		return hmserr.Validation("end_minute must be after start_minute")
	}
	return nil
}

func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID) (*DoctorSchedule, error) {
	return s.schedules.GetByID(ctx, id)
}

func (s *Service) ListSchedules(ctx context.Context, doctorID uuid.UUID) ([]*DoctorSchedule, error) {
	return s.schedules.ListByDoctor(ctx, doctorID)
}

func (s *Service) UpdateSchedule(ctx context.Context, sched *DoctorSchedule) error {
	if err := validateScheduleWindow(sched); err != nil {
		return err
	}
	return s.schedules.Update(ctx, sched)
}

func (s *Service) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	return s.schedules.Delete(ctx, id)
}

// -- BlockedTime --

func (s *Service) CreateBlockedTime(ctx context.Context, b *BlockedTime) error {
	if b.DoctorID == uuid.Nil {
		return hmserr.Validation("doctor_id is required")
	}
	if b.Reason == "" {
		return hmserr.Validation("reason is required")
	}
	if b.StartTime.IsZero() || b.EndTime.IsZero() {
		return hmserr.Validation("start_time and end_time are required")
	}
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	if !b.EndTime.After(b.StartTime) {
		return hmserr.Validation("end_time must be after start_time")
	}
	return s.blocked.Create(ctx, b)
}

func (s *Service) GetBlockedTime(ctx context.Context, id uuid.UUID) (*BlockedTime, error) {
	return s.blocked.GetByID(ctx, id)
}

func (s *Service) ListBlockedTimes(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*BlockedTime, int, error) {
	return s.blocked.ListByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) DeleteBlockedTime(ctx context.Context, id uuid.UUID) error {
	return s.blocked.Delete(ctx, id)
}

// -- Availability --

// CheckDoctorAvailability reports whether [start, end) is bookable for the
// doctor. When it is not, Conflicts names each clash and SuggestedSlots
// carries up to five alternatives.
func (s *Service) CheckDoctorAvailability(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeApptID *uuid.UUID) (*AvailabilityResult, error) {
	start, end = start.UTC(), end.UTC()
	if doctorID == uuid.Nil {
		return nil, hmserr.Validation("doctor_id is required")
	}
	if !end.After(start) {
		return nil, hmserr.Validation("end must be after start")
	}

	cacheKey := s.availabilityCacheKey(ctx, doctorID, start, end)
	if excludeApptID == nil {
		var cached AvailabilityResult
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	conflicts, err := s.conflictsFor(ctx, doctorID, start, end, excludeApptID)
	if err != nil {
		return nil, err
	}

	result := &AvailabilityResult{
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}
	if !result.Available {
		slots, err := s.SuggestSlots(ctx, doctorID, start)
		if err != nil {
			return nil, err
		}
		result.SuggestedSlots = slots
	}

	if excludeApptID == nil {
		_ = s.cache.Set(ctx, cacheKey, result, availabilityTTL)
	}
	return result, nil
}

// Cached availability is keyed by the exact requested range, so single-key
// deletes cannot reach entries for other ranges overlapping a new booking.
// Instead every key embeds a per-doctor generation token and each write to
// the doctor's calendar replaces the token, orphaning all earlier entries at
// once. A result computed concurrently with a bump lands under the old token
// and is never read again.
func (s *Service) availabilityCacheKey(ctx context.Context, doctorID uuid.UUID, start, end time.Time) string {
	var gen string
	if err := s.cache.Get(ctx, availabilityGenKey(doctorID), &gen); err != nil {
		gen = "0"
	}
	return fmt.Sprintf("avail:%s:%s:%d:%d", doctorID, gen, start.Unix(), end.Unix())
}

// The token TTL matches the result TTL so entries under a stale token always
// expire no later than the token itself.
func (s *Service) invalidateAvailability(ctx context.Context, doctorID uuid.UUID) {
	gen := fmt.Sprintf("%d", time.Now().UnixNano())
	_ = s.cache.Set(ctx, availabilityGenKey(doctorID), gen, availabilityTTL)
}

func availabilityGenKey(doctorID uuid.UUID) string {
	return fmt.Sprintf("avail:gen:%s", doctorID)
}

// conflictsFor gathers every reason [start, end) cannot be booked: overlapping
// active appointments, blocked time, and working-hours violations.
func (s *Service) conflictsFor(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeApptID *uuid.UUID) ([]string, error) {
	var conflicts []string

	overlapping, err := s.appointments.ListActiveOverlapping(ctx, doctorID, start, end, excludeApptID)
	if err != nil {
		return nil, err
	}
	for _, appt := range overlapping {
		conflicts = append(conflicts, fmt.Sprintf(
			"existing appointment for %s from %s to %s",
			appt.PatientName,
			appt.StartTime.UTC().Format("15:04"),
			appt.EndTime().UTC().Format("15:04")))
	}

	blocks, err := s.blocked.ListOverlapping(ctx, doctorID, start, end)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		conflicts = append(conflicts, fmt.Sprintf(
			"blocked time (%s) from %s to %s",
			b.Reason,
			b.StartTime.UTC().Format("15:04"),
			b.EndTime.UTC().Format("15:04")))
	}

	hoursConflict, err := s.workingHoursConflict(ctx, doctorID, start, end)
	if err != nil {
		return nil, err
	}
	if hoursConflict != "" {
		conflicts = append(conflicts, hoursConflict)
	}

	return conflicts, nil
}

// workingHoursConflict checks [start, end) against the doctor's schedule row
// for the start's weekday. A missing row places no constraint; the slot start
// boundary is inclusive and the end boundary exclusive.
func (s *Service) workingHoursConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (string, error) {
	sched, err := s.schedules.GetByDoctorDay(ctx, doctorID, int(start.Weekday()))
	if err != nil {
		return "", err
	}
	if sched == nil {
		return "", nil
	}

	startMin := start.Hour()*60 + start.Minute()
	endMin := startMin + int(end.Sub(start).Minutes())
	if startMin < sched.StartMinute || endMin > sched.EndMinute {
		return fmt.Sprintf("outside working hours (%s-%s)",
			minuteClock(sched.StartMinute), minuteClock(sched.EndMinute)), nil
	}
	return "", nil
}

// SuggestSlots scans up to seven days from preferredDate and returns up to
// five conflict-free slots of the configured length. Days without a schedule
// row fall back to the facility default window.
func (s *Service) SuggestSlots(ctx context.Context, doctorID uuid.UUID, preferredDate time.Time) ([]TimeSlot, error) {
	if doctorID == uuid.Nil {
		return nil, hmserr.Validation("doctor_id is required")
	}
	preferredDate = preferredDate.UTC()
	slotLen := time.Duration(s.opts.SlotMinutes) * time.Minute

	var slots []TimeSlot
	for day := 0; day < suggestionDays && len(slots) < maxSuggestedSlots; day++ {
		date := preferredDate.AddDate(0, 0, day)
		midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

		window := s.opts.DefaultWindow
		sched, err := s.schedules.GetByDoctorDay(ctx, doctorID, int(date.Weekday()))
		if err != nil {
			return nil, err
		}
		if sched != nil {
			window = Window{StartMinute: sched.StartMinute, EndMinute: sched.EndMinute}
		}

		for m := window.StartMinute; m+s.opts.SlotMinutes <= window.EndMinute && len(slots) < maxSuggestedSlots; m += s.opts.SlotMinutes {
			slotStart := midnight.Add(time.Duration(m) * time.Minute)
			if slotStart.Before(preferredDate) {
				continue
			}
			slotEnd := slotStart.Add(slotLen)

			conflicts, err := s.conflictsFor(ctx, doctorID, slotStart, slotEnd, nil)
			if err != nil {
				return nil, err
			}
			if len(conflicts) == 0 {
				slots = append(slots, TimeSlot{Start: slotStart, End: slotEnd})
			}
		}
	}
	return slots, nil
}

// -- Appointments --

// BookAppointment validates the request, re-checks availability, and inserts
// inside one transaction. The partial unique index on (doctor_id, start_time)
// turns a lost race into a Conflict instead of a double booking.
func (s *Service) BookAppointment(ctx context.Context, a *Appointment) error {
	if a.DoctorID == uuid.Nil {
		return hmserr.Validation("doctor_id is required")
	}
	if a.PatientID == uuid.Nil {
		return hmserr.Validation("patient_id is required")
	}
	if a.StartTime.IsZero() {
		return hmserr.Validation("start_time is required")
	}
	if a.DurationMinutes <= 0 {
		a.DurationMinutes = s.opts.SlotMinutes
	}
	a.StartTime = a.StartTime.UTC()
	a.Status = StatusScheduled

	err := s.runTx(ctx, func(txCtx context.Context) error {
		conflicts, err := s.conflictsFor(txCtx, a.DoctorID, a.StartTime, a.EndTime(), nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return hmserr.ConflictWithDetails("appointment slot is not available", conflicts)
		}
		return s.appointments.Create(txCtx, a)
	})
	if err != nil {
		return err
	}

	s.invalidateAvailability(ctx, a.DoctorID)
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) SearchAppointments(ctx context.Context, params SearchParams, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.Search(ctx, params, limit, offset)
}

// RescheduleAppointment moves an appointment to a new slot, excluding itself
// from the overlap check.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, start time.Time, durationMinutes int) (*Appointment, error) {
	if start.IsZero() {
		return nil, hmserr.Validation("start_time is required")
	}
	start = start.UTC()

	var updated *Appointment
	err := s.runTx(ctx, func(txCtx context.Context) error {
		a, err := s.appointments.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !activeStatuses[a.Status] {
			return hmserr.Conflict("cannot reschedule a %s appointment", a.Status)
		}
		a.StartTime = start
		if durationMinutes > 0 {
			a.DurationMinutes = durationMinutes
		}

		conflicts, err := s.conflictsFor(txCtx, a.DoctorID, a.StartTime, a.EndTime(), &a.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return hmserr.ConflictWithDetails("appointment slot is not available", conflicts)
		}
		if err := s.appointments.Update(txCtx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateAvailability(ctx, updated.DoctorID)
	return updated, nil
}

// StartAppointment marks a scheduled appointment in-progress.
func (s *Service) StartAppointment(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, StatusInProgress, nil)
}

// CompleteAppointment marks an in-progress appointment completed.
func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, StatusCompleted, nil)
}

// CancelAppointment cancels an active appointment, recording the reason.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) error {
	if reason == "" {
		return hmserr.Validation("cancellation reason is required")
	}
	return s.transition(ctx, id, StatusCancelled, &reason)
}

// MarkNoShow records that the patient did not arrive.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, StatusNoShow, nil)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to string, cancelReason *string) error {
	return s.runTx(ctx, func(txCtx context.Context) error {
		a, err := s.appointments.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !transitionAllowed(a.Status, to) {
			return hmserr.Conflict("cannot move appointment from %s to %s", a.Status, to)
		}
		if err := s.appointments.UpdateStatus(txCtx, id, to, cancelReason); err != nil {
			return err
		}
		s.invalidateAvailability(txCtx, a.DoctorID)
		return nil
	})
}
