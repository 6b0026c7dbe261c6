package ot

import (
	"time"

	"github.com/google/uuid"
)

const (
	TheatreAvailable   = "available"
	TheatreInUse       = "in-use"
	TheatreMaintenance = "maintenance"
	TheatreCleaning    = "cleaning"
)

var validTheatreStatuses = map[string]bool{
	TheatreAvailable:   true,
	TheatreInUse:       true,
	TheatreMaintenance: true,
	TheatreCleaning:    true,
}

const (
	BookingScheduled  = "scheduled"
	BookingInProgress = "in-progress"
	BookingCompleted  = "completed"
	BookingCancelled  = "cancelled"
)

// activeStatuses are the booking states that hold a theatre slot.
var activeStatuses = map[string]bool{
	BookingScheduled:  true,
	BookingInProgress: true,
}

var bookingTransitions = map[string][]string{
	BookingScheduled:  {BookingInProgress, BookingCancelled},
	BookingInProgress: {BookingCompleted, BookingCancelled},
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range bookingTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type OperationTheatre struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type SurgeryType struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Specialty       *string   `db:"specialty" json:"specialty,omitempty"`
	DefaultDuration int       `db:"default_duration" json:"default_duration"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

type Booking struct {
	ID              uuid.UUID `db:"id" json:"id"`
	TheatreID       uuid.UUID `db:"theatre_id" json:"theatre_id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	SurgeonID       uuid.UUID `db:"surgeon_id" json:"surgeon_id"`
	SurgeryTypeID   uuid.UUID `db:"surgery_type_id" json:"surgery_type_id"`
	StartTime       time.Time `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Status          string    `db:"status" json:"status"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

func (b *Booking) EndTime() time.Time {
	return b.StartTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// TimeSlot is an open candidate slot in a theatre.
type TimeSlot struct {
	TheatreID uuid.UUID `json:"theatre_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}
