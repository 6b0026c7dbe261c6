package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

type MedicationItem struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	Form          string    `db:"form" json:"form"`
	Strength      *string   `db:"strength" json:"strength,omitempty"`
	UnitPrice     float64   `db:"unit_price" json:"unit_price"`
	StockQuantity int       `db:"stock_quantity" json:"stock_quantity"`
	ReorderLevel  int       `db:"reorder_level" json:"reorder_level"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// BelowReorderLevel reports whether the item needs restocking.
func (m *MedicationItem) BelowReorderLevel() bool {
	return m.StockQuantity <= m.ReorderLevel
}

type DispenseRecord struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	AdmissionID *uuid.UUID `db:"admission_id" json:"admission_id,omitempty"`
	DispensedBy uuid.UUID  `db:"dispensed_by" json:"dispensed_by"`
	DispensedAt time.Time  `db:"dispensed_at" json:"dispensed_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`

	Lines []*DispenseLine `json:"lines"`
}

type DispenseLine struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DispenseID uuid.UUID `db:"dispense_id" json:"dispense_id"`
	ItemID     uuid.UUID `db:"item_id" json:"item_id"`
	Quantity   int       `db:"quantity" json:"quantity"`
	UnitPrice  float64   `db:"unit_price" json:"unit_price"`
}
