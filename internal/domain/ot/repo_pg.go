package ot

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// -- Theatres --

type theatreRepoPG struct{ pool *pgxpool.Pool }

func NewTheatreRepoPG(pool *pgxpool.Pool) TheatreRepository { return &theatreRepoPG{pool: pool} }

func scanTheatre(row pgx.Row) (*OperationTheatre, error) {
	var t OperationTheatre
	err := row.Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *theatreRepoPG) Create(ctx context.Context, t *OperationTheatre) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO operation_theatre (id, name, status) VALUES ($1,$2,$3)`,
		t.ID, t.Name, t.Status)
	if db.UniqueViolation(err, "operation_theatre_name_key") {
		return hmserr.Conflict("operation theatre %s already exists", t.Name)
	}
	return err
}

func (r *theatreRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*OperationTheatre, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, status, created_at, updated_at FROM operation_theatre WHERE id = $1`, id)
	t, err := scanTheatre(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("operation theatre", id.String())
	}
	return t, err
}

func (r *theatreRepoPG) List(ctx context.Context) ([]*OperationTheatre, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, name, status, created_at, updated_at FROM operation_theatre ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var theatres []*OperationTheatre
	for rows.Next() {
		t, err := scanTheatre(rows)
		if err != nil {
			return nil, err
		}
		theatres = append(theatres, t)
	}
	return theatres, rows.Err()
}

func (r *theatreRepoPG) Update(ctx context.Context, t *OperationTheatre) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE operation_theatre SET name = $2, status = $3, updated_at = now() WHERE id = $1`,
		t.ID, t.Name, t.Status)
	if db.UniqueViolation(err, "operation_theatre_name_key") {
		return hmserr.Conflict("operation theatre %s already exists", t.Name)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("operation theatre", t.ID.String())
	}
	return nil
}

func (r *theatreRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE operation_theatre SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("operation theatre", id.String())
	}
	return nil
}

func (r *theatreRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM operation_theatre WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("operation theatre", id.String())
	}
	return nil
}

// -- Surgery types --

type surgeryTypeRepoPG struct{ pool *pgxpool.Pool }

func NewSurgeryTypeRepoPG(pool *pgxpool.Pool) SurgeryTypeRepository {
	return &surgeryTypeRepoPG{pool: pool}
}

func scanSurgeryType(row pgx.Row) (*SurgeryType, error) {
	var st SurgeryType
	err := row.Scan(&st.ID, &st.Name, &st.Specialty, &st.DefaultDuration,
		&st.CreatedAt, &st.UpdatedAt)
	return &st, err
}

func (r *surgeryTypeRepoPG) Create(ctx context.Context, st *SurgeryType) error {
	st.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO surgery_type (id, name, specialty, default_duration)
		VALUES ($1,$2,$3,$4)`,
		st.ID, st.Name, st.Specialty, st.DefaultDuration)
	if db.UniqueViolation(err, "surgery_type_name_key") {
		return hmserr.Conflict("surgery type %s already exists", st.Name)
	}
	return err
}

func (r *surgeryTypeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*SurgeryType, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, name, specialty, default_duration, created_at, updated_at
		FROM surgery_type WHERE id = $1`, id)
	st, err := scanSurgeryType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("surgery type", id.String())
	}
	return st, err
}

func (r *surgeryTypeRepoPG) List(ctx context.Context) ([]*SurgeryType, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, name, specialty, default_duration, created_at, updated_at
		FROM surgery_type ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*SurgeryType
	for rows.Next() {
		st, err := scanSurgeryType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, st)
	}
	return types, rows.Err()
}

func (r *surgeryTypeRepoPG) Update(ctx context.Context, st *SurgeryType) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE surgery_type SET name = $2, specialty = $3, default_duration = $4, updated_at = now()
		WHERE id = $1`,
		st.ID, st.Name, st.Specialty, st.DefaultDuration)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("surgery type", st.ID.String())
	}
	return nil
}

// -- Bookings --

type bookingRepoPG struct{ pool *pgxpool.Pool }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository { return &bookingRepoPG{pool: pool} }

const bookingCols = `id, theatre_id, patient_id, surgeon_id, surgery_type_id,
	start_time, duration_minutes, status, notes, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.TheatreID, &b.PatientID, &b.SurgeonID, &b.SurgeryTypeID,
		&b.StartTime, &b.DurationMinutes, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *bookingRepoPG) Create(ctx context.Context, b *Booking) error {
	b.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO ot_booking (id, theatre_id, patient_id, surgeon_id, surgery_type_id,
			start_time, duration_minutes, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.TheatreID, b.PatientID, b.SurgeonID, b.SurgeryTypeID,
		b.StartTime, b.DurationMinutes, b.Status, b.Notes)
	if db.UniqueViolation(err, "ot_booking_theatre_slot_key") {
		return hmserr.Conflict("theatre slot was booked concurrently")
	}
	return err
}

func (r *bookingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+bookingCols+` FROM ot_booking WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("theatre booking", id.String())
	}
	return b, err
}

func (r *bookingRepoPG) Search(ctx context.Context, params BookingSearchParams, limit, offset int) ([]*Booking, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 1
	if params.TheatreID != nil {
		where = append(where, fmt.Sprintf("theatre_id = $%d", n))
		args = append(args, *params.TheatreID)
		n++
	}
	if params.SurgeonID != nil {
		where = append(where, fmt.Sprintf("surgeon_id = $%d", n))
		args = append(args, *params.SurgeonID)
		n++
	}
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

	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM ot_booking WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx,
		`SELECT `+bookingCols+` FROM ot_booking WHERE `+cond+
			fmt.Sprintf(` ORDER BY start_time DESC LIMIT $%d OFFSET $%d`, n, n+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, b)
	}
	return bookings, total, rows.Err()
}

func (r *bookingRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE ot_booking SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("theatre booking", id.String())
	}
	return nil
}

const overlapCond = `start_time < $3
	AND start_time + make_interval(mins => duration_minutes) > $2
	AND status IN ('scheduled', 'in-progress')`

func (r *bookingRepoPG) ListActiveOverlappingTheatre(ctx context.Context, theatreID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Booking, error) {
	return r.listOverlapping(ctx, "theatre_id", theatreID, start, end, excludeID)
}

func (r *bookingRepoPG) ListActiveOverlappingSurgeon(ctx context.Context, surgeonID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Booking, error) {
	return r.listOverlapping(ctx, "surgeon_id", surgeonID, start, end, excludeID)
}

func (r *bookingRepoPG) listOverlapping(ctx context.Context, col string, id uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Booking, error) {
	query := `SELECT ` + bookingCols + ` FROM ot_booking WHERE ` + col + ` = $1 AND ` + overlapCond
	args := []interface{}{id, start, end}
	if excludeID != nil {
		query += ` AND id != $4`
		args = append(args, *excludeID)
	}
	rows, err := conn(ctx, r.pool).Query(ctx, query+` ORDER BY start_time`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
