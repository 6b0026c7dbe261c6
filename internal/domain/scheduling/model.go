package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/fhir"
)

// Appointment statuses. Cancellation is a status change; rows are never
// deleted.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no-show"
)

// activeStatuses are the statuses that occupy a doctor's time.
var activeStatuses = map[string]bool{
	StatusScheduled:  true,
	StatusInProgress: true,
}

// legalTransitions is the appointment lifecycle. Completed, cancelled, and
// no-show are terminal.
var legalTransitions = map[string][]string{
	StatusScheduled:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func transitionAllowed(from, to string) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// DoctorSchedule maps to the doctor_schedule table: one row per doctor per
// weekday giving the working window in minutes from midnight.
type DoctorSchedule struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	StartMinute int       `db:"start_minute" json:"start_minute"`
	EndMinute   int       `db:"end_minute" json:"end_minute"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (ds *DoctorSchedule) ToFHIR() map[string]interface{} {
	return map[string]interface{}{
		"resourceType": "Schedule",
		"id":           ds.ID.String(),
		"active":       ds.Active,
		"actor": []fhir.Reference{{
			Reference: fhir.FormatReference("Practitioner", ds.DoctorID.String()),
		}},
		"comment": weekdayName(ds.DayOfWeek) + " " +
			minuteClock(ds.StartMinute) + "-" + minuteClock(ds.EndMinute),
		"meta": fhir.Meta{LastUpdated: ds.UpdatedAt},
	}
}

func weekdayName(d int) string {
	if d < 0 || d > 6 {
		return "unknown"
	}
	return time.Weekday(d).String()
}

func minuteClock(m int) string {
	return time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC).Format("15:04")
}

// BlockedTime maps to the blocked_time table: an explicit exclusion window
// for a doctor (leave, rounds, conference).
type BlockedTime struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Reason    string    `db:"reason" json:"reason"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	StartTime       time.Time `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Status          string    `db:"status" json:"status"`
	Reason          *string   `db:"reason" json:"reason,omitempty"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CancelReason    *string   `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// EndTime is the exclusive end of the appointment's slot.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a *Appointment) ToFHIR() map[string]interface{} {
	end := a.EndTime()
	result := map[string]interface{}{
		"resourceType": "Appointment",
		"id":           a.ID.String(),
		"status":       fhirStatus(a.Status),
		"start":        a.StartTime.UTC().Format(time.RFC3339),
		"end":          end.UTC().Format(time.RFC3339),
		"minutesDuration": a.DurationMinutes,
		"participant": []map[string]interface{}{
			{
				"actor":  fhir.NewReference("Patient", a.PatientID.String(), ""),
				"status": "accepted",
			},
			{
				"actor":  fhir.NewReference("Practitioner", a.DoctorID.String(), ""),
				"status": "accepted",
			},
		},
		"meta": fhir.Meta{LastUpdated: a.UpdatedAt},
	}
	if a.Reason != nil {
		result["description"] = *a.Reason
	}
	if a.CancelReason != nil {
		result["cancelationReason"] = fhir.CodeableConcept{Text: *a.CancelReason}
	}
	return result
}

// fhirStatus maps internal appointment statuses to FHIR Appointment codes.
func fhirStatus(status string) string {
	switch status {
	case StatusScheduled:
		return "booked"
	case StatusInProgress:
		return "arrived"
	case StatusCompleted:
		return "fulfilled"
	case StatusCancelled:
		return "cancelled"
	case StatusNoShow:
		return "noshow"
	}
	return "booked"
}

// TimeSlot is a bookable window returned by slot suggestion.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AvailabilityResult is the outcome of a doctor availability check.
type AvailabilityResult struct {
	Available      bool       `json:"available"`
	Conflicts      []string   `json:"conflicts"`
	SuggestedSlots []TimeSlot `json:"suggested_slots,omitempty"`
}

// AppointmentConflict pairs an overlapping appointment with the patient's
// display name for conflict messages.
type AppointmentConflict struct {
	Appointment
	PatientName string `db:"patient_name" json:"patient_name"`
}
