package support

import (
	"context"

	"github.com/google/uuid"
)

type SearchParams struct {
	Status     string
	Priority   string
	AssignedTo *uuid.UUID
}

// RequestRepository persists one area's request queue. The housekeeping
// and maintenance queues use separate instances backed by separate tables.
type RequestRepository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Request, int, error)
	Update(ctx context.Context, req *Request) error
}
