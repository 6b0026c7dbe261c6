package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// -- Items --

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository { return &itemRepoPG{pool: pool} }

const itemCols = `id, code, name, form, strength, unit_price, stock_quantity,
	reorder_level, created_at, updated_at`

func scanItem(row pgx.Row) (*MedicationItem, error) {
	var m MedicationItem
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Form, &m.Strength, &m.UnitPrice,
		&m.StockQuantity, &m.ReorderLevel, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *itemRepoPG) Create(ctx context.Context, item *MedicationItem) error {
	item.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO medication_item (id, code, name, form, strength, unit_price,
			stock_quantity, reorder_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		item.ID, item.Code, item.Name, item.Form, item.Strength, item.UnitPrice,
		item.StockQuantity, item.ReorderLevel)
	if db.UniqueViolation(err, "medication_item_code_key") {
		return hmserr.Conflict("medication with code %s already exists", item.Code)
	}
	return err
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicationItem, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+itemCols+` FROM medication_item WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("medication item", id.String())
	}
	return item, err
}

func (r *itemRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*MedicationItem, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+itemCols+` FROM medication_item WHERE id = $1 FOR UPDATE`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("medication item", id.String())
	}
	return item, err
}

func (r *itemRepoPG) Search(ctx context.Context, params ItemSearchParams, limit, offset int) ([]*MedicationItem, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 1
	if params.Query != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", n, n))
		args = append(args, "%"+params.Query+"%")
		n++
	}
	if params.BelowReorder {
		where = append(where, "stock_quantity <= reorder_level")
	}
	cond := strings.Join(where, " AND ")

	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM medication_item WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx,
		`SELECT `+itemCols+` FROM medication_item WHERE `+cond+
			fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, n, n+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*MedicationItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *itemRepoPG) Update(ctx context.Context, item *MedicationItem) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE medication_item
		SET code = $2, name = $3, form = $4, strength = $5, unit_price = $6,
			stock_quantity = $7, reorder_level = $8, updated_at = now()
		WHERE id = $1`,
		item.ID, item.Code, item.Name, item.Form, item.Strength, item.UnitPrice,
		item.StockQuantity, item.ReorderLevel)
	if db.UniqueViolation(err, "medication_item_code_key") {
		return hmserr.Conflict("medication with code %s already exists", item.Code)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("medication item", item.ID.String())
	}
	return nil
}

func (r *itemRepoPG) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE medication_item SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1 AND stock_quantity + $2 >= 0`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.Conflict("stock adjustment would leave a negative quantity")
	}
	return nil
}

// -- Dispense records --

type dispenseRepoPG struct{ pool *pgxpool.Pool }

func NewDispenseRepoPG(pool *pgxpool.Pool) DispenseRepository { return &dispenseRepoPG{pool: pool} }

func (r *dispenseRepoPG) Create(ctx context.Context, rec *DispenseRecord) error {
	rec.ID = uuid.New()
	q := conn(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO dispense_record (id, patient_id, admission_id, dispensed_by, dispensed_at)
		VALUES ($1,$2,$3,$4,$5)`,
		rec.ID, rec.PatientID, rec.AdmissionID, rec.DispensedBy, rec.DispensedAt)
	if err != nil {
		return err
	}
	for _, line := range rec.Lines {
		line.ID = uuid.New()
		line.DispenseID = rec.ID
		if _, err := q.Exec(ctx, `
			INSERT INTO dispense_line (id, dispense_id, item_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)`,
			line.ID, line.DispenseID, line.ItemID, line.Quantity, line.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

func (r *dispenseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DispenseRecord, error) {
	q := conn(ctx, r.pool)
	var rec DispenseRecord
	err := q.QueryRow(ctx, `
		SELECT id, patient_id, admission_id, dispensed_by, dispensed_at, created_at
		FROM dispense_record WHERE id = $1`, id).
		Scan(&rec.ID, &rec.PatientID, &rec.AdmissionID, &rec.DispensedBy,
			&rec.DispensedAt, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("dispense record", id.String())
	}
	if err != nil {
		return nil, err
	}
	rec.Lines, err = r.lines(ctx, id)
	return &rec, err
}

func (r *dispenseRepoPG) lines(ctx context.Context, dispenseID uuid.UUID) ([]*DispenseLine, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, dispense_id, item_id, quantity, unit_price
		FROM dispense_line WHERE dispense_id = $1`, dispenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []*DispenseLine
	for rows.Next() {
		var l DispenseLine
		if err := rows.Scan(&l.ID, &l.DispenseID, &l.ItemID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

func (r *dispenseRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DispenseRecord, int, error) {
	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM dispense_record WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT id, patient_id, admission_id, dispensed_by, dispensed_at, created_at
		FROM dispense_record WHERE patient_id = $1
		ORDER BY dispensed_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*DispenseRecord
	for rows.Next() {
		var rec DispenseRecord
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.AdmissionID, &rec.DispensedBy,
			&rec.DispensedAt, &rec.CreatedAt); err != nil {
			return nil, 0, err
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, rec := range records {
		lines, err := r.lines(ctx, rec.ID)
		if err != nil {
			return nil, 0, err
		}
		rec.Lines = lines
	}
	return records, total, nil
}
