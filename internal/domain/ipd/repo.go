package ipd

import (
	"context"

	"github.com/google/uuid"
)

type WardRepository interface {
	Create(ctx context.Context, w *Ward) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ward, error)
	List(ctx context.Context, limit, offset int) ([]*Ward, int, error)
	Update(ctx context.Context, w *Ward) error
}

type BedRepository interface {
	Create(ctx context.Context, b *Bed) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bed, error)
	// GetByIDForUpdate locks the bed row for the enclosing transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error)
	ListByWard(ctx context.Context, wardID uuid.UUID, status string) ([]*Bed, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type AdmissionSearchParams struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
}

type AdmissionRepository interface {
	Create(ctx context.Context, a *Admission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)
	Search(ctx context.Context, params AdmissionSearchParams, limit, offset int) ([]*Admission, int, error)
	Update(ctx context.Context, a *Admission) error
}

// ObservationRepository persists the bedside records hanging off an
// admission: vitals, nursing notes, and doctor progress notes.
type ObservationRepository interface {
	CreateVitalSign(ctx context.Context, v *VitalSign) error
	ListVitalSigns(ctx context.Context, admissionID uuid.UUID) ([]*VitalSign, error)
	CreateNursingNote(ctx context.Context, n *NursingNote) error
	ListNursingNotes(ctx context.Context, admissionID uuid.UUID) ([]*NursingNote, error)
	CreateProgressNote(ctx context.Context, n *ProgressNote) error
	ListProgressNotes(ctx context.Context, admissionID uuid.UUID) ([]*ProgressNote, error)
}
