package support

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

type mockRequestRepo struct {
	requests map[uuid.UUID]*Request
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[uuid.UUID]*Request)}
}

func (m *mockRequestRepo) Create(_ context.Context, req *Request) error {
	req.ID = uuid.New()
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, hmserr.NotFound("request", id.String())
	}
	cp := *req
	return &cp, nil
}

func (m *mockRequestRepo) Search(_ context.Context, params SearchParams, limit, offset int) ([]*Request, int, error) {
	var out []*Request
	for _, req := range m.requests {
		if params.Status != "" && req.Status != params.Status {
			continue
		}
		if params.Priority != "" && req.Priority != params.Priority {
			continue
		}
		if params.AssignedTo != nil && (req.AssignedTo == nil || *req.AssignedTo != *params.AssignedTo) {
			continue
		}
		out = append(out, req)
	}
	return out, len(out), nil
}

func (m *mockRequestRepo) Update(_ context.Context, req *Request) error {
	if _, ok := m.requests[req.ID]; !ok {
		return hmserr.NotFound("request", req.ID.String())
	}
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

type fixture struct {
	svc          *Service
	housekeeping *mockRequestRepo
	maintenance  *mockRequestRepo
}

func newFixture() *fixture {
	f := &fixture{
		housekeeping: newMockRequestRepo(),
		maintenance:  newMockRequestRepo(),
	}
	f.svc = NewService(f.housekeeping, f.maintenance, db.PassthroughTxRunner())
	return f
}

func (f *fixture) request(t *testing.T, area string) *Request {
	t.Helper()
	req := &Request{
		Location:    "Ward 3, Room 12",
		Description: "spill near bed 4",
		RequestedBy: uuid.New(),
	}
	if err := f.svc.CreateRequest(context.Background(), area, req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func TestCreateRequestDefaults(t *testing.T) {
	f := newFixture()
	req := f.request(t, AreaHousekeeping)

	if req.Status != StatusRequested {
		t.Errorf("expected status requested, got %s", req.Status)
	}
	if req.Priority != PriorityNormal {
		t.Errorf("expected default priority normal, got %s", req.Priority)
	}
	if req.RequestedAt.IsZero() {
		t.Error("expected requested_at to be set")
	}
	if len(f.maintenance.requests) != 0 {
		t.Error("housekeeping request must not land in the maintenance queue")
	}
}

func TestRequestLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.request(t, AreaMaintenance)
	staff := uuid.New()

	assigned, err := f.svc.Assign(ctx, AreaMaintenance, req.ID, staff)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.Status != StatusAssigned || assigned.AssignedTo == nil || *assigned.AssignedTo != staff {
		t.Fatalf("unexpected assignment state: %+v", assigned)
	}

	started, err := f.svc.Start(ctx, AreaMaintenance, req.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != StatusInProgress || started.StartedAt == nil {
		t.Fatalf("unexpected start state: %+v", started)
	}

	done, err := f.svc.Complete(ctx, AreaMaintenance, req.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusDone || done.CompletedAt == nil {
		t.Fatalf("unexpected completion state: %+v", done)
	}

	if _, err := f.svc.Cancel(ctx, AreaMaintenance, req.ID); !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Errorf("expected conflict cancelling a done request, got %v", err)
	}
}

func TestStartRequiresAssignment(t *testing.T) {
	f := newFixture()
	req := f.request(t, AreaHousekeeping)

	if _, err := f.svc.Start(context.Background(), AreaHousekeeping, req.ID); !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Errorf("expected conflict starting an unassigned request, got %v", err)
	}
}

func TestReassignBeforeStart(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.request(t, AreaHousekeeping)
	first := uuid.New()
	second := uuid.New()

	if _, err := f.svc.Assign(ctx, AreaHousekeeping, req.ID, first); err != nil {
		t.Fatalf("assign: %v", err)
	}
	reassigned, err := f.svc.Assign(ctx, AreaHousekeeping, req.ID, second)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if *reassigned.AssignedTo != second {
		t.Errorf("expected reassignment to %s, got %s", second, *reassigned.AssignedTo)
	}

	if _, err := f.svc.Start(ctx, AreaHousekeeping, req.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.Assign(ctx, AreaHousekeeping, req.ID, first); !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Errorf("expected conflict reassigning in-progress work, got %v", err)
	}
}

func TestCancelTerminal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := f.request(t, AreaMaintenance)

	cancelled, err := f.svc.Cancel(ctx, AreaMaintenance, req.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}
	if _, err := f.svc.Assign(ctx, AreaMaintenance, req.ID, uuid.New()); !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Errorf("expected conflict assigning a cancelled request, got %v", err)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	requester := uuid.New()

	cases := []struct {
		name string
		area string
		req  Request
	}{
		{"unknown area", "catering", Request{Location: "kitchen", Description: "x", RequestedBy: requester}},
		{"missing location", AreaHousekeeping, Request{Description: "x", RequestedBy: requester}},
		{"missing description", AreaHousekeeping, Request{Location: "ICU", RequestedBy: requester}},
		{"missing requester", AreaHousekeeping, Request{Location: "ICU", Description: "x"}},
		{"bad priority", AreaMaintenance, Request{Location: "ICU", Description: "x", RequestedBy: requester, Priority: "asap"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			if err := f.svc.CreateRequest(ctx, tc.area, &req); !hmserr.IsKind(err, hmserr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAssignRequiresAssignee(t *testing.T) {
	f := newFixture()
	req := f.request(t, AreaHousekeeping)

	if _, err := f.svc.Assign(context.Background(), AreaHousekeeping, req.ID, uuid.Nil); !hmserr.IsKind(err, hmserr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSearchFiltersByAssignee(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	staff := uuid.New()

	mine := f.request(t, AreaHousekeeping)
	f.request(t, AreaHousekeeping)
	if _, err := f.svc.Assign(ctx, AreaHousekeeping, mine.ID, staff); err != nil {
		t.Fatalf("assign: %v", err)
	}

	requests, total, err := f.svc.SearchRequests(ctx, AreaHousekeeping, SearchParams{AssignedTo: &staff}, 20, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(requests) != 1 {
		t.Fatalf("expected 1 assigned request, got %d", total)
	}
	if requests[0].ID != mine.ID {
		t.Errorf("expected request %s, got %s", mine.ID, requests[0].ID)
	}
}
