package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SearchParams struct {
	PatientID *uuid.UUID
	Status    string
}

// InvoiceRepository persists invoices and their line items.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice, items []*LineItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// GetByIDForUpdate locks the invoice row for the duration of the
	// enclosing transaction. Line items are not loaded.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Invoice, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateTotals(ctx context.Context, id uuid.UUID, total, paid, outstanding float64, status string) error
	AddLineItem(ctx context.Context, item *LineItem) error
	DeleteLineItem(ctx context.Context, invoiceID, itemID uuid.UUID) error
	ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error)
	// MarkOverdue flips approved and partial invoices whose due date has
	// passed to overdue, returning the number of rows changed.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
}
