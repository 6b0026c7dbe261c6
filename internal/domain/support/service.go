package support

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

type Service struct {
	housekeeping RequestRepository
	maintenance  RequestRepository
	runTx        db.TxRunner
}

func NewService(housekeeping, maintenance RequestRepository, runTx db.TxRunner) *Service {
	return &Service{housekeeping: housekeeping, maintenance: maintenance, runTx: runTx}
}

func (s *Service) repo(area string) (RequestRepository, error) {
	switch area {
	case AreaHousekeeping:
		return s.housekeeping, nil
	case AreaMaintenance:
		return s.maintenance, nil
	default:
		return nil, hmserr.Validation("unknown service area %q", area)
	}
}

func (s *Service) CreateRequest(ctx context.Context, area string, req *Request) error {
	repo, err := s.repo(area)
	if err != nil {
		return err
	}
	if req.Location == "" {
		return hmserr.Validation("location is required")
	}
	if req.Description == "" {
		return hmserr.Validation("description is required")
	}
	if req.RequestedBy == uuid.Nil {
		return hmserr.Validation("requested_by is required")
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !validPriorities[req.Priority] {
		return hmserr.Validation("invalid priority %q", req.Priority)
	}
	req.Status = StatusRequested
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	return repo.Create(ctx, req)
}

func (s *Service) GetRequest(ctx context.Context, area string, id uuid.UUID) (*Request, error) {
	repo, err := s.repo(area)
	if err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, id)
}

func (s *Service) SearchRequests(ctx context.Context, area string, params SearchParams, limit, offset int) ([]*Request, int, error) {
	repo, err := s.repo(area)
	if err != nil {
		return nil, 0, err
	}
	return repo.Search(ctx, params, limit, offset)
}

// Assign puts a request on a staff member's plate. Reassignment is allowed
// until work has started.
func (s *Service) Assign(ctx context.Context, area string, id, assignee uuid.UUID) (*Request, error) {
	if assignee == uuid.Nil {
		return nil, hmserr.Validation("assignee is required")
	}
	return s.transition(ctx, area, id, StatusAssigned, func(req *Request) {
		req.AssignedTo = &assignee
	})
}

func (s *Service) Start(ctx context.Context, area string, id uuid.UUID) (*Request, error) {
	return s.transition(ctx, area, id, StatusInProgress, func(req *Request) {
		now := time.Now().UTC()
		req.StartedAt = &now
	})
}

func (s *Service) Complete(ctx context.Context, area string, id uuid.UUID) (*Request, error) {
	return s.transition(ctx, area, id, StatusDone, func(req *Request) {
		now := time.Now().UTC()
		req.CompletedAt = &now
	})
}

func (s *Service) Cancel(ctx context.Context, area string, id uuid.UUID) (*Request, error) {
	return s.transition(ctx, area, id, StatusCancelled, nil)
}

func (s *Service) transition(ctx context.Context, area string, id uuid.UUID, to string, apply func(*Request)) (*Request, error) {
	repo, err := s.repo(area)
	if err != nil {
		return nil, err
	}
	var req *Request
	err = s.runTx(ctx, func(txCtx context.Context) error {
		req, err = repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !canTransition(req.Status, to) {
			return hmserr.Conflict("cannot move request from %s to %s", req.Status, to)
		}
		req.Status = to
		if apply != nil {
			apply(req)
		}
		return repo.Update(txCtx, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}
