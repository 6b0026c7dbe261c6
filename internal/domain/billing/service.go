package billing

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

type Service struct {
	invoices InvoiceRepository
	payments PaymentRepository
	runTx    db.TxRunner
}

func NewService(invoices InvoiceRepository, payments PaymentRepository, runTx db.TxRunner) *Service {
	return &Service{invoices: invoices, payments: payments, runTx: runTx}
}

// round2 keeps monetary arithmetic at cent precision.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func generateInvoiceNumber() string {
	return "INV-" + strings.ToUpper(uuid.New().String()[:8])
}

func validateLineItem(li *LineItem) error {
	if li.Description == "" {
		return hmserr.Validation("line item description is required")
	}
	if li.Quantity <= 0 {
		return hmserr.Validation("line item quantity must be positive")
	}
	if li.UnitPrice < 0 {
		return hmserr.Validation("line item unit price must not be negative")
	}
	return nil
}

// CreateInvoice opens a draft invoice. Line item amounts are derived from
// quantity and unit price; the invoice total is computed at approval.
func (s *Service) CreateInvoice(ctx context.Context, inv *Invoice, items []*LineItem) error {
	if inv.PatientID == uuid.Nil {
		return hmserr.Validation("patient_id is required")
	}
	for _, li := range items {
		if err := validateLineItem(li); err != nil {
			return err
		}
		li.Amount = round2(float64(li.Quantity) * li.UnitPrice)
	}
	inv.Status = StatusDraft
	inv.InvoiceNumber = generateInvoiceNumber()
	inv.TotalAmount = 0
	inv.PaidAmount = 0
	inv.Outstanding = 0
	if err := s.invoices.Create(ctx, inv, items); err != nil {
		return err
	}
	inv.LineItems = items
	return nil
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) SearchInvoices(ctx context.Context, params SearchParams, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.Search(ctx, params, limit, offset)
}

// AddLineItem appends a line to a draft invoice.
func (s *Service) AddLineItem(ctx context.Context, invoiceID uuid.UUID, li *LineItem) error {
	if err := validateLineItem(li); err != nil {
		return err
	}
	return s.runTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoices.GetByIDForUpdate(txCtx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return hmserr.Conflict("line items can only be added to a draft invoice, current status is %s", inv.Status)
		}
		li.InvoiceID = invoiceID
		li.Amount = round2(float64(li.Quantity) * li.UnitPrice)
		return s.invoices.AddLineItem(txCtx, li)
	})
}

func (s *Service) RemoveLineItem(ctx context.Context, invoiceID, itemID uuid.UUID) error {
	return s.runTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoices.GetByIDForUpdate(txCtx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return hmserr.Conflict("line items can only be removed from a draft invoice, current status is %s", inv.Status)
		}
		return s.invoices.DeleteLineItem(txCtx, invoiceID, itemID)
	})
}

// ApproveInvoice computes the total from the line items and opens the
// invoice for payment.
func (s *Service) ApproveInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var approved *Invoice
	err := s.runTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoices.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return hmserr.Conflict("only a draft invoice can be approved, current status is %s", inv.Status)
		}
		items, err := s.invoices.ListLineItems(txCtx, id)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return hmserr.Validation("invoice has no line items")
		}
		var total float64
		for _, li := range items {
			total += li.Amount
		}
		total = round2(total)
		if err := s.invoices.UpdateTotals(txCtx, id, total, 0, total, StatusApproved); err != nil {
			return err
		}
		inv.Status = StatusApproved
		inv.TotalAmount = total
		inv.PaidAmount = 0
		inv.Outstanding = total
		inv.LineItems = items
		approved = inv
		return nil
	})
	return approved, err
}

// CancelInvoice voids an invoice that has not collected any payment.
func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID) error {
	return s.runTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoices.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return hmserr.Conflict("invoice is already cancelled")
		}
		if inv.PaidAmount > 0 {
			return hmserr.Conflict("an invoice with recorded payments cannot be cancelled")
		}
		return s.invoices.UpdateStatus(txCtx, id, StatusCancelled)
	})
}

// ApplyPayment records a payment against an invoice and reconciles the
// paid and outstanding amounts. The invoice row is locked for the whole
// transaction so concurrent payments serialize.
func (s *Service) ApplyPayment(ctx context.Context, invoiceID uuid.UUID, amount float64, method string, reference *string) (*Invoice, error) {
	if amount <= 0 {
		return nil, hmserr.Validation("payment amount must be positive")
	}
	if !validMethods[method] {
		return nil, hmserr.Validation("invalid payment method %q", method)
	}
	amount = round2(amount)

	var updated *Invoice
	err := s.runTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoices.GetByIDForUpdate(txCtx, invoiceID)
		if err != nil {
			return err
		}
		if !payableStatuses[inv.Status] {
			return hmserr.Conflict("invoice in status %s does not accept payments", inv.Status)
		}
		if amount > inv.Outstanding {
			return hmserr.Conflict("payment of %.2f exceeds outstanding balance of %.2f", amount, inv.Outstanding)
		}

		p := &Payment{
			InvoiceID:  invoiceID,
			Amount:     amount,
			Method:     method,
			Reference:  reference,
			ReceivedAt: time.Now().UTC(),
		}
		if err := s.payments.Create(txCtx, p); err != nil {
			return err
		}

		paid := round2(inv.PaidAmount + amount)
		outstanding := round2(inv.TotalAmount - paid)
		status := StatusPartial
		if outstanding == 0 {
			status = StatusPaid
		}
		if err := s.invoices.UpdateTotals(txCtx, invoiceID, inv.TotalAmount, paid, outstanding, status); err != nil {
			return err
		}
		inv.PaidAmount = paid
		inv.Outstanding = outstanding
		inv.Status = status
		updated = inv
		return nil
	})
	return updated, err
}

func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.payments.ListByInvoice(ctx, invoiceID)
}

// MarkOverdue sweeps payable invoices whose due date has passed.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	return s.invoices.MarkOverdue(ctx, time.Now().UTC())
}
