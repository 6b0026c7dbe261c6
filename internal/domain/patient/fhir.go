package patient

import (
	"time"
)

// fhirPatient is the subset of the FHIR Patient resource accepted on create.
type fhirPatient struct {
	ResourceType string `json:"resourceType"`
	Identifier   []struct {
		System string `json:"system"`
		Value  string `json:"value"`
	} `json:"identifier"`
	Name []struct {
		Family string   `json:"family"`
		Given  []string `json:"given"`
	} `json:"name"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birthDate"`
	Telecom   []struct {
		System string `json:"system"`
		Value  string `json:"value"`
	} `json:"telecom"`
}

// fromFHIR maps an inbound FHIR Patient onto the registry model. Returns nil
// when the resource carries no usable name.
func (f *fhirPatient) toPatient() *Patient {
	p := &Patient{}
	if len(f.Name) > 0 {
		p.LastName = f.Name[0].Family
		if len(f.Name[0].Given) > 0 {
			p.FirstName = f.Name[0].Given[0]
		}
	}
	if f.Gender != "" {
		g := f.Gender
		p.Gender = &g
	}
	if f.BirthDate != "" {
		if bd, err := time.Parse("2006-01-02", f.BirthDate); err == nil {
			p.BirthDate = &bd
		}
	}
	for _, t := range f.Telecom {
		v := t.Value
		switch t.System {
		case "phone":
			p.Phone = &v
		case "email":
			p.Email = &v
		}
	}
	for _, id := range f.Identifier {
		if id.System == "urn:hms:mrn" {
			p.MRN = id.Value
		}
	}
	return p
}
