package ipd

import (
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/fhir"
)

const (
	BedFree        = "free"
	BedOccupied    = "occupied"
	BedMaintenance = "maintenance"
)

var validBedStatuses = map[string]bool{
	BedFree:        true,
	BedOccupied:    true,
	BedMaintenance: true,
}

const (
	AdmissionActive     = "admitted"
	AdmissionDischarged = "discharged"
)

type Ward struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Floor     *string   `db:"floor" json:"floor,omitempty"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Bed struct {
	ID          uuid.UUID `db:"id" json:"id"`
	WardID      uuid.UUID `db:"ward_id" json:"ward_id"`
	Number      string    `db:"number" json:"number"`
	Status      string    `db:"status" json:"status"`
	DailyTariff float64   `db:"daily_tariff" json:"daily_tariff"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type Admission struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID     uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	BedID        uuid.UUID  `db:"bed_id" json:"bed_id"`
	Diagnosis    string     `db:"diagnosis" json:"diagnosis"`
	Status       string     `db:"status" json:"status"`
	AdmittedAt   time.Time  `db:"admitted_at" json:"admitted_at"`
	DischargedAt *time.Time `db:"discharged_at" json:"discharged_at,omitempty"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

type VitalSign struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AdmissionID uuid.UUID `db:"admission_id" json:"admission_id"`
	RecordedBy  uuid.UUID `db:"recorded_by" json:"recorded_by"`
	Temperature *float64  `db:"temperature" json:"temperature,omitempty"`
	PulseRate   *int      `db:"pulse_rate" json:"pulse_rate,omitempty"`
	RespRate    *int      `db:"resp_rate" json:"resp_rate,omitempty"`
	SystolicBP  *int      `db:"systolic_bp" json:"systolic_bp,omitempty"`
	DiastolicBP *int      `db:"diastolic_bp" json:"diastolic_bp,omitempty"`
	SpO2        *int      `db:"spo2" json:"spo2,omitempty"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}

type NursingNote struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AdmissionID uuid.UUID `db:"admission_id" json:"admission_id"`
	RecordedBy  uuid.UUID `db:"recorded_by" json:"recorded_by"`
	Note        string    `db:"note" json:"note"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}

type ProgressNote struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AdmissionID uuid.UUID `db:"admission_id" json:"admission_id"`
	RecordedBy  uuid.UUID `db:"recorded_by" json:"recorded_by"`
	Note        string    `db:"note" json:"note"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}

// ToFHIR renders the admission as a FHIR R4 Encounter resource.
func (a *Admission) ToFHIR() map[string]interface{} {
	status := "in-progress"
	if a.Status == AdmissionDischarged {
		status = "finished"
	}
	period := map[string]interface{}{"start": a.AdmittedAt.Format(time.RFC3339)}
	if a.DischargedAt != nil {
		period["end"] = a.DischargedAt.Format(time.RFC3339)
	}
	return map[string]interface{}{
		"resourceType": "Encounter",
		"id":           a.ID.String(),
		"status":       status,
		"class": fhir.Coding{
			System: "http://terminology.hl7.org/CodeSystem/v3-ActCode",
			Code:   "IMP",
		},
		"subject": fhir.NewReference("Patient", a.PatientID.String(), ""),
		"participant": []map[string]interface{}{
			{"individual": fhir.NewReference("Practitioner", a.DoctorID.String(), "")},
		},
		"period": period,
		"reasonCode": []fhir.CodeableConcept{
			{Text: a.Diagnosis},
		},
	}
}
