package insurance

import (
	"context"

	"github.com/google/uuid"
)

type ProviderRepository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	List(ctx context.Context, limit, offset int) ([]*Provider, int, error)
	Update(ctx context.Context, p *Provider) error
}

type PolicySearchParams struct {
	PatientID  *uuid.UUID
	ProviderID *uuid.UUID
	Status     string
}

type PolicyRepository interface {
	Create(ctx context.Context, p *Policy) error
	GetByID(ctx context.Context, id uuid.UUID) (*Policy, error)
	Search(ctx context.Context, params PolicySearchParams, limit, offset int) ([]*Policy, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type ClaimSearchParams struct {
	PolicyID  *uuid.UUID
	InvoiceID *uuid.UUID
	Status    string
}

type ClaimRepository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	Search(ctx context.Context, params ClaimSearchParams, limit, offset int) ([]*Claim, int, error)
	Update(ctx context.Context, c *Claim) error
}
