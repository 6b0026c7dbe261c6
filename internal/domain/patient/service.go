package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/hmserr"
)

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true, "unknown": true,
}

var validBloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

func (s *Service) Register(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.FirstName) == "" {
		return hmserr.Validation("first_name is required")
	}
	if strings.TrimSpace(p.LastName) == "" {
		return hmserr.Validation("last_name is required")
	}
	if p.Gender != nil && !validGenders[*p.Gender] {
		return hmserr.Validation("invalid gender: %s", *p.Gender)
	}
	if p.BloodGroup != nil && !validBloodGroups[*p.BloodGroup] {
		return hmserr.Validation("invalid blood group: %s", *p.BloodGroup)
	}
	if p.MRN == "" {
		p.MRN = generateMRN()
	}
	p.Active = true
	return s.patients.Create(ctx, p)
}

// generateMRN issues a readable record number from a fresh UUID. The unique
// index on mrn guards against the unlikely collision.
func generateMRN() string {
	u := uuid.New()
	return fmt.Sprintf("MRN-%s", strings.ToUpper(u.String()[:8]))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return s.patients.GetByMRN(ctx, mrn)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.FirstName) == "" {
		return hmserr.Validation("first_name is required")
	}
	if strings.TrimSpace(p.LastName) == "" {
		return hmserr.Validation("last_name is required")
	}
	if p.Gender != nil && !validGenders[*p.Gender] {
		return hmserr.Validation("invalid gender: %s", *p.Gender)
	}
	return s.patients.Update(ctx, p)
}

// Remove deletes a patient with no clinical history and deactivates one that
// has appointments, admissions, or invoices on record.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) (deactivated bool, err error) {
	hasData, err := s.patients.HasClinicalData(ctx, id)
	if err != nil {
		return false, err
	}
	if hasData {
		return true, s.patients.Deactivate(ctx, id)
	}
	return false, s.patients.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, params, limit, offset)
}
