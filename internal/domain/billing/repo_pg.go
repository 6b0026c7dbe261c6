package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

func (r *invoiceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invoiceCols = `id, invoice_number, patient_id, admission_id, appointment_id, status,
	total_amount, paid_amount, outstanding_amount, due_date, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.AdmissionID,
		&inv.AppointmentID, &inv.Status, &inv.TotalAmount, &inv.PaidAmount,
		&inv.Outstanding, &inv.DueDate, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	return &inv, err
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice, items []*LineItem) error {
	inv.ID = uuid.New()
	q := r.conn(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO invoice (id, invoice_number, patient_id, admission_id, appointment_id,
			status, total_amount, paid_amount, outstanding_amount, due_date, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		inv.ID, inv.InvoiceNumber, inv.PatientID, inv.AdmissionID, inv.AppointmentID,
		inv.Status, inv.TotalAmount, inv.PaidAmount, inv.Outstanding, inv.DueDate, inv.Notes)
	if db.UniqueViolation(err, "invoice_number_key") {
		return hmserr.Conflict("invoice number %s already exists", inv.InvoiceNumber)
	}
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	for _, item := range items {
		item.InvoiceID = inv.ID
		if err := r.AddLineItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoice WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("invoice", id.String())
	}
	if err != nil {
		return nil, err
	}
	inv.LineItems, err = r.ListLineItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoice WHERE id = $1 FOR UPDATE`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("invoice", id.String())
	}
	return inv, err
}

func (r *invoiceRepoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Invoice, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 1
	if params.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", n))
		args = append(args, *params.PatientID)
		n++
	}
	if params.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", n))
		args = append(args, params.Status)
		n++
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoice WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invoiceCols+` FROM invoice WHERE `+cond+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n, n+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}

func (r *invoiceRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoice SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("invoice", id.String())
	}
	return nil
}

func (r *invoiceRepoPG) UpdateTotals(ctx context.Context, id uuid.UUID, total, paid, outstanding float64, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice
		SET total_amount = $2, paid_amount = $3, outstanding_amount = $4,
			status = $5, updated_at = now()
		WHERE id = $1`,
		id, total, paid, outstanding, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("invoice", id.String())
	}
	return nil
}

func (r *invoiceRepoPG) AddLineItem(ctx context.Context, item *LineItem) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice_line_item (id, invoice_id, description, quantity, unit_price, amount)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		item.ID, item.InvoiceID, item.Description, item.Quantity, item.UnitPrice, item.Amount)
	return err
}

func (r *invoiceRepoPG) DeleteLineItem(ctx context.Context, invoiceID, itemID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM invoice_line_item WHERE id = $1 AND invoice_id = $2`, itemID, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("invoice line item", itemID.String())
	}
	return nil
}

func (r *invoiceRepoPG) ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, amount, created_at
		FROM invoice_line_item WHERE invoice_id = $1 ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*LineItem
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.Description, &li.Quantity,
			&li.UnitPrice, &li.Amount, &li.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &li)
	}
	return items, rows.Err()
}

func (r *invoiceRepoPG) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice SET status = 'overdue', updated_at = now()
		WHERE status IN ('approved', 'partial') AND due_date IS NOT NULL AND due_date < $1`,
		asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment (id, invoice_id, amount, method, reference, received_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.InvoiceID, p.Amount, p.Method, p.Reference, p.ReceivedAt)
	return err
}

func (r *paymentRepoPG) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, amount, method, reference, received_at, created_at
		FROM payment WHERE invoice_id = $1 ORDER BY received_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference,
			&p.ReceivedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}
