package pharmacy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

// InvoiceLiner prices dispensed medication into a draft invoice.
type InvoiceLiner interface {
	AddLineItem(ctx context.Context, invoiceID uuid.UUID, li *billing.LineItem) error
}

type Service struct {
	items     ItemRepository
	dispenses DispenseRepository
	billing   InvoiceLiner
	runTx     db.TxRunner
}

func NewService(items ItemRepository, dispenses DispenseRepository, liner InvoiceLiner, runTx db.TxRunner) *Service {
	return &Service{items: items, dispenses: dispenses, billing: liner, runTx: runTx}
}

// -- Inventory --

func (s *Service) CreateItem(ctx context.Context, item *MedicationItem) error {
	if item.Code == "" {
		return hmserr.Validation("medication code is required")
	}
	if item.Name == "" {
		return hmserr.Validation("medication name is required")
	}
	if item.UnitPrice < 0 {
		return hmserr.Validation("unit price must not be negative")
	}
	if item.StockQuantity < 0 {
		return hmserr.Validation("stock quantity must not be negative")
	}
	return s.items.Create(ctx, item)
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*MedicationItem, error) {
	return s.items.GetByID(ctx, id)
}

func (s *Service) SearchItems(ctx context.Context, params ItemSearchParams, limit, offset int) ([]*MedicationItem, int, error) {
	return s.items.Search(ctx, params, limit, offset)
}

func (s *Service) UpdateItem(ctx context.Context, item *MedicationItem) error {
	if item.Code == "" {
		return hmserr.Validation("medication code is required")
	}
	if item.Name == "" {
		return hmserr.Validation("medication name is required")
	}
	return s.items.Update(ctx, item)
}

// Restock adds received stock to an item.
func (s *Service) Restock(ctx context.Context, id uuid.UUID, quantity int) (*MedicationItem, error) {
	if quantity <= 0 {
		return nil, hmserr.Validation("restock quantity must be positive")
	}
	if err := s.items.AdjustStock(ctx, id, quantity); err != nil {
		return nil, err
	}
	return s.items.GetByID(ctx, id)
}

// -- Dispensing --

type DispenseLineRequest struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

type DispenseRequest struct {
	PatientID   uuid.UUID             `json:"patient_id"`
	AdmissionID *uuid.UUID            `json:"admission_id"`
	DispensedBy uuid.UUID             `json:"dispensed_by"`
	InvoiceID   *uuid.UUID            `json:"invoice_id"`
	Lines       []DispenseLineRequest `json:"lines"`
}

// Dispense hands out medication, decrementing stock for every line inside
// one transaction. Any shortage rolls the whole dispense back. When a draft
// invoice is supplied the dispensed lines are priced onto it in the same
// transaction.
func (s *Service) Dispense(ctx context.Context, req DispenseRequest) (*DispenseRecord, error) {
	if req.PatientID == uuid.Nil {
		return nil, hmserr.Validation("patient_id is required")
	}
	if req.DispensedBy == uuid.Nil {
		return nil, hmserr.Validation("dispensed_by is required")
	}
	if len(req.Lines) == 0 {
		return nil, hmserr.Validation("at least one dispense line is required")
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, hmserr.Validation("dispense quantity must be positive")
		}
	}

	rec := &DispenseRecord{
		PatientID:   req.PatientID,
		AdmissionID: req.AdmissionID,
		DispensedBy: req.DispensedBy,
		DispensedAt: time.Now().UTC(),
	}

	err := s.runTx(ctx, func(txCtx context.Context) error {
		for _, line := range req.Lines {
			item, err := s.items.GetByIDForUpdate(txCtx, line.ItemID)
			if err != nil {
				return err
			}
			if item.StockQuantity < line.Quantity {
				return hmserr.Conflict("insufficient stock of %s: have %d, need %d",
					item.Name, item.StockQuantity, line.Quantity)
			}
			if err := s.items.AdjustStock(txCtx, item.ID, -line.Quantity); err != nil {
				return err
			}
			rec.Lines = append(rec.Lines, &DispenseLine{
				ItemID:    item.ID,
				Quantity:  line.Quantity,
				UnitPrice: item.UnitPrice,
			})
			if req.InvoiceID != nil {
				li := &billing.LineItem{
					Description: fmt.Sprintf("%s x%d", item.Name, line.Quantity),
					Quantity:    line.Quantity,
					UnitPrice:   item.UnitPrice,
				}
				if err := s.billing.AddLineItem(txCtx, *req.InvoiceID, li); err != nil {
					return err
				}
			}
		}
		return s.dispenses.Create(txCtx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) GetDispense(ctx context.Context, id uuid.UUID) (*DispenseRecord, error) {
	return s.dispenses.GetByID(ctx, id)
}

func (s *Service) ListDispensesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DispenseRecord, int, error) {
	return s.dispenses.ListByPatient(ctx, patientID, limit, offset)
}
