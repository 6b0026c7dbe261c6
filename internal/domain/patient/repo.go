package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for patient records.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Patient, int, error)
	HasClinicalData(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SearchParams narrows a patient search. Zero values mean unfiltered.
type SearchParams struct {
	Name   string
	MRN    string
	Active *bool
}
