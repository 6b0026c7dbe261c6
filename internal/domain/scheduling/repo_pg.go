package scheduling

import (
	"context"
	"errors"
	"fmt"

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

// =========== DoctorSchedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const schedCols = `id, doctor_id, day_of_week, start_minute, end_minute, active, created_at, updated_at`

func scanSchedule(row pgx.Row) (*DoctorSchedule, error) {
	var s DoctorSchedule
	err := row.Scan(&s.ID, &s.DoctorID, &s.DayOfWeek, &s.StartMinute, &s.EndMinute,
		&s.Active, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *DoctorSchedule) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_schedule (id, doctor_id, day_of_week, start_minute, end_minute, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.DoctorID, s.DayOfWeek, s.StartMinute, s.EndMinute, s.Active)
	if db.UniqueViolation(err, "doctor_schedule_doctor_day_key") {
		return hmserr.Conflict("schedule for this doctor and weekday already exists")
	}
	return err
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DoctorSchedule, error) {
	s, err := scanSchedule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+schedCols+` FROM doctor_schedule WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("doctor schedule", id.String())
	}
	return s, err
}

func (r *scheduleRepoPG) GetByDoctorDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*DoctorSchedule, error) {
	s, err := scanSchedule(r.conn(ctx).QueryRow(ctx, `
		SELECT `+schedCols+` FROM doctor_schedule
		WHERE doctor_id = $1 AND day_of_week = $2 AND active = TRUE`, doctorID, dayOfWeek))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *scheduleRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*DoctorSchedule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+schedCols+` FROM doctor_schedule
		WHERE doctor_id = $1 ORDER BY day_of_week`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*DoctorSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *scheduleRepoPG) Update(ctx context.Context, s *DoctorSchedule) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_schedule SET day_of_week=$2, start_minute=$3, end_minute=$4,
			active=$5, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.DayOfWeek, s.StartMinute, s.EndMinute, s.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("doctor schedule", s.ID.String())
	}
	return nil
}

func (r *scheduleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_schedule WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("doctor schedule", id.String())
	}
	return nil
}

// =========== BlockedTime Repository ===========

type blockedRepoPG struct{ pool *pgxpool.Pool }

func NewBlockedTimeRepoPG(pool *pgxpool.Pool) BlockedTimeRepository { return &blockedRepoPG{pool: pool} }

func (r *blockedRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const blockedCols = `id, doctor_id, reason, start_time, end_time, created_at`

func scanBlocked(row pgx.Row) (*BlockedTime, error) {
	var b BlockedTime
	err := row.Scan(&b.ID, &b.DoctorID, &b.Reason, &b.StartTime, &b.EndTime, &b.CreatedAt)
	return &b, err
}

func (r *blockedRepoPG) Create(ctx context.Context, b *BlockedTime) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO blocked_time (id, doctor_id, reason, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5)`,
		b.ID, b.DoctorID, b.Reason, b.StartTime, b.EndTime)
	return err
}

func (r *blockedRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*BlockedTime, error) {
	b, err := scanBlocked(r.conn(ctx).QueryRow(ctx,
		`SELECT `+blockedCols+` FROM blocked_time WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("blocked time", id.String())
	}
	return b, err
}

func (r *blockedRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*BlockedTime, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM blocked_time WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+blockedCols+` FROM blocked_time
		WHERE doctor_id = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`,
		doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*BlockedTime
	for rows.Next() {
		b, err := scanBlocked(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *blockedRepoPG) ListOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*BlockedTime, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+blockedCols+` FROM blocked_time
		WHERE doctor_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time`, doctorID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*BlockedTime
	for rows.Next() {
		b, err := scanBlocked(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *blockedRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM blocked_time WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("blocked time", id.String())
	}
	return nil
}

// =========== Appointment Repository ===========

type apptRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository { return &apptRepoPG{pool: pool} }

func (r *apptRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, doctor_id, patient_id, start_time, duration_minutes, status,
	reason, notes, cancel_reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.StartTime, &a.DurationMinutes,
		&a.Status, &a.Reason, &a.Notes, &a.CancelReason, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *apptRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, doctor_id, patient_id, start_time, duration_minutes,
			status, reason, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.DoctorID, a.PatientID, a.StartTime, a.DurationMinutes,
		a.Status, a.Reason, a.Notes)
	if db.UniqueViolation(err, "appointment_doctor_slot_key") {
		return hmserr.Conflict("appointment slot was booked concurrently")
	}
	return err
}

func (r *apptRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("appointment", id.String())
	}
	return a, err
}

func (r *apptRepoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET start_time=$2, duration_minutes=$3, reason=$4,
			notes=$5, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.StartTime, a.DurationMinutes, a.Reason, a.Notes)
	if db.UniqueViolation(err, "appointment_doctor_slot_key") {
		return hmserr.Conflict("appointment slot was booked concurrently")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("appointment", a.ID.String())
	}
	return nil
}

func (r *apptRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, cancelReason *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET status=$2, cancel_reason=COALESCE($3, cancel_reason),
			updated_at=NOW()
		WHERE id = $1`, id, status, cancelReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("appointment", id.String())
	}
	return nil
}

func (r *apptRepoPG) ListActiveOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*AppointmentConflict, error) {
	query := `
		SELECT a.id, a.doctor_id, a.patient_id, a.start_time, a.duration_minutes,
			a.status, a.reason, a.notes, a.cancel_reason, a.created_at, a.updated_at,
			p.first_name || ' ' || p.last_name AS patient_name
		FROM appointment a
		JOIN patient p ON p.id = a.patient_id
		WHERE a.doctor_id = $1
			AND a.status IN ('scheduled', 'in-progress')
			AND a.start_time < $3
			AND a.start_time + make_interval(mins => a.duration_minutes) > $2`
	args := []interface{}{doctorID, start, end}
	if excludeID != nil {
		query += ` AND a.id <> $4`
		args = append(args, *excludeID)
	}
	query += ` ORDER BY a.start_time`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*AppointmentConflict
	for rows.Next() {
		var c AppointmentConflict
		if err := rows.Scan(&c.ID, &c.DoctorID, &c.PatientID, &c.StartTime,
			&c.DurationMinutes, &c.Status, &c.Reason, &c.Notes, &c.CancelReason,
			&c.CreatedAt, &c.UpdatedAt, &c.PatientName); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func (r *apptRepoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if params.DoctorID != nil {
		where += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, *params.DoctorID)
		idx++
	}
	if params.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *params.PatientID)
		idx++
	}
	if params.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, params.Status)
		idx++
	}
	if params.From != nil {
		where += fmt.Sprintf(` AND start_time >= $%d`, idx)
		args = append(args, *params.From)
		idx++
	}
	if params.To != nil {
		where += fmt.Sprintf(` AND start_time < $%d`, idx)
		args = append(args, *params.To)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointment` + where +
		fmt.Sprintf(` ORDER BY start_time DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
