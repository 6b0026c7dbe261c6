package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScheduleRepository persists per-doctor weekly working windows.
type ScheduleRepository interface {
	Create(ctx context.Context, s *DoctorSchedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*DoctorSchedule, error)
	// GetByDoctorDay returns the active schedule row for the doctor on the
	// given weekday, or nil when none exists.
	GetByDoctorDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*DoctorSchedule, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*DoctorSchedule, error)
	Update(ctx context.Context, s *DoctorSchedule) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// BlockedTimeRepository persists explicit exclusion windows.
type BlockedTimeRepository interface {
	Create(ctx context.Context, b *BlockedTime) error
	GetByID(ctx context.Context, id uuid.UUID) (*BlockedTime, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*BlockedTime, int, error)
	// ListOverlapping returns blocks whose window overlaps [start, end).
	ListOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*BlockedTime, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AppointmentRepository persists appointments. Rows are never deleted; cancel
// is a status change.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, cancelReason *string) error
	// ListActiveOverlapping returns scheduled/in-progress appointments of the
	// doctor overlapping [start, end), joined with the patient name, excluding
	// excludeID when editing an existing appointment.
	ListActiveOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*AppointmentConflict, error)
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Appointment, int, error)
}

// SearchParams narrows an appointment search. Zero values mean unfiltered.
type SearchParams struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    string
	From      *time.Time
	To        *time.Time
}
