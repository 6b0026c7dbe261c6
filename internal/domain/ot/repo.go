package ot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TheatreRepository interface {
	Create(ctx context.Context, t *OperationTheatre) error
	GetByID(ctx context.Context, id uuid.UUID) (*OperationTheatre, error)
	List(ctx context.Context) ([]*OperationTheatre, error)
	Update(ctx context.Context, t *OperationTheatre) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SurgeryTypeRepository interface {
	Create(ctx context.Context, st *SurgeryType) error
	GetByID(ctx context.Context, id uuid.UUID) (*SurgeryType, error)
	List(ctx context.Context) ([]*SurgeryType, error)
	Update(ctx context.Context, st *SurgeryType) error
}

type BookingSearchParams struct {
	TheatreID *uuid.UUID
	SurgeonID *uuid.UUID
	PatientID *uuid.UUID
	Status    string
}

type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	Search(ctx context.Context, params BookingSearchParams, limit, offset int) ([]*Booking, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// ListActiveOverlappingTheatre returns active bookings of the theatre
	// intersecting [start, end), excluding the given booking when set.
	ListActiveOverlappingTheatre(ctx context.Context, theatreID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Booking, error)
	// ListActiveOverlappingSurgeon does the same for the lead surgeon.
	ListActiveOverlappingSurgeon(ctx context.Context, surgeonID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Booking, error)
}
