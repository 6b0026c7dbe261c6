package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/fhir"
)

// Patient maps to the patient table. MRN is the hospital-issued medical
// record number and is unique across the facility.
type Patient struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	MRN              string     `db:"mrn" json:"mrn"`
	FirstName        string     `db:"first_name" json:"first_name"`
	LastName         string     `db:"last_name" json:"last_name"`
	BirthDate        *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender           *string    `db:"gender" json:"gender,omitempty"`
	Phone            *string    `db:"phone" json:"phone,omitempty"`
	Email            *string    `db:"email" json:"email,omitempty"`
	AddressLine      *string    `db:"address_line" json:"address_line,omitempty"`
	City             *string    `db:"city" json:"city,omitempty"`
	State            *string    `db:"state" json:"state,omitempty"`
	PostalCode       *string    `db:"postal_code" json:"postal_code,omitempty"`
	BloodGroup       *string    `db:"blood_group" json:"blood_group,omitempty"`
	EmergencyContact *string    `db:"emergency_contact" json:"emergency_contact,omitempty"`
	EmergencyPhone   *string    `db:"emergency_phone" json:"emergency_phone,omitempty"`
	Active           bool       `db:"active" json:"active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName renders "First Last" for conflict messages and FHIR display.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

func (p *Patient) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "Patient",
		"id":           p.ID.String(),
		"active":       p.Active,
		"identifier": []fhir.Identifier{{
			Use:    "usual",
			System: "urn:hms:mrn",
			Value:  p.MRN,
		}},
		"name": []fhir.HumanName{{
			Use:    "official",
			Family: p.LastName,
			Given:  []string{p.FirstName},
		}},
		"meta": fhir.Meta{LastUpdated: p.UpdatedAt},
	}
	if p.Gender != nil {
		result["gender"] = *p.Gender
	}
	if p.BirthDate != nil {
		result["birthDate"] = p.BirthDate.Format("2006-01-02")
	}
	var telecom []fhir.ContactPoint
	if p.Phone != nil {
		telecom = append(telecom, fhir.ContactPoint{System: "phone", Value: *p.Phone})
	}
	if p.Email != nil {
		telecom = append(telecom, fhir.ContactPoint{System: "email", Value: *p.Email})
	}
	if len(telecom) > 0 {
		result["telecom"] = telecom
	}
	if p.AddressLine != nil || p.City != nil {
		addr := fhir.Address{}
		if p.AddressLine != nil {
			addr.Line = []string{*p.AddressLine}
		}
		if p.City != nil {
			addr.City = *p.City
		}
		if p.State != nil {
			addr.State = *p.State
		}
		if p.PostalCode != nil {
			addr.PostalCode = *p.PostalCode
		}
		result["address"] = []fhir.Address{addr}
	}
	return result
}
