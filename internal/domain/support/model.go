package support

import (
	"time"

	"github.com/google/uuid"
)

// Service areas. Each area keeps its own request queue but shares the
// request shape and lifecycle.
const (
	AreaHousekeeping = "housekeeping"
	AreaMaintenance  = "maintenance"
)

const (
	StatusRequested  = "requested"
	StatusAssigned   = "assigned"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var validPriorities = map[string]bool{
	PriorityLow:    true,
	PriorityNormal: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

var requestTransitions = map[string][]string{
	StatusRequested:  {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusAssigned, StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusDone, StatusCancelled},
}

func canTransition(from, to string) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Request struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Location    string     `db:"location" json:"location"`
	Description string     `db:"description" json:"description"`
	Priority    string     `db:"priority" json:"priority"`
	Status      string     `db:"status" json:"status"`
	RequestedBy uuid.UUID  `db:"requested_by" json:"requested_by"`
	AssignedTo  *uuid.UUID `db:"assigned_to" json:"assigned_to,omitempty"`
	RequestedAt time.Time  `db:"requested_at" json:"requested_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
