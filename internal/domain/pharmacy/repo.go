package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type ItemSearchParams struct {
	Query        string
	BelowReorder bool
}

type ItemRepository interface {
	Create(ctx context.Context, item *MedicationItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicationItem, error)
	// GetByIDForUpdate locks the item row for the enclosing transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*MedicationItem, error)
	Search(ctx context.Context, params ItemSearchParams, limit, offset int) ([]*MedicationItem, int, error)
	Update(ctx context.Context, item *MedicationItem) error
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error
}

type DispenseRepository interface {
	Create(ctx context.Context, rec *DispenseRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*DispenseRecord, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DispenseRecord, int, error)
}
