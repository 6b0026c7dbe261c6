package ipd

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

// -- Wards --

type wardRepoPG struct{ pool *pgxpool.Pool }

func NewWardRepoPG(pool *pgxpool.Pool) WardRepository { return &wardRepoPG{pool: pool} }

func (r *wardRepoPG) Create(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO ward (id, name, floor, capacity) VALUES ($1,$2,$3,$4)`,
		w.ID, w.Name, w.Floor, w.Capacity)
	if db.UniqueViolation(err, "ward_name_key") {
		return hmserr.Conflict("ward %s already exists", w.Name)
	}
	return err
}

func (r *wardRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ward, error) {
	var w Ward
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, name, floor, capacity, created_at, updated_at FROM ward WHERE id = $1`, id).
		Scan(&w.ID, &w.Name, &w.Floor, &w.Capacity, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("ward", id.String())
	}
	return &w, err
}

func (r *wardRepoPG) List(ctx context.Context, limit, offset int) ([]*Ward, int, error) {
	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM ward`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT id, name, floor, capacity, created_at, updated_at
		FROM ward ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var wards []*Ward
	for rows.Next() {
		var w Ward
		if err := rows.Scan(&w.ID, &w.Name, &w.Floor, &w.Capacity, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, 0, err
		}
		wards = append(wards, &w)
	}
	return wards, total, rows.Err()
}

func (r *wardRepoPG) Update(ctx context.Context, w *Ward) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE ward SET name = $2, floor = $3, capacity = $4, updated_at = now() WHERE id = $1`,
		w.ID, w.Name, w.Floor, w.Capacity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("ward", w.ID.String())
	}
	return nil
}

// -- Beds --

type bedRepoPG struct{ pool *pgxpool.Pool }

func NewBedRepoPG(pool *pgxpool.Pool) BedRepository { return &bedRepoPG{pool: pool} }

const bedCols = `id, ward_id, number, status, daily_tariff, created_at, updated_at`

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	err := row.Scan(&b.ID, &b.WardID, &b.Number, &b.Status, &b.DailyTariff,
		&b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *bedRepoPG) Create(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO bed (id, ward_id, number, status, daily_tariff)
		VALUES ($1,$2,$3,$4,$5)`,
		b.ID, b.WardID, b.Number, b.Status, b.DailyTariff)
	if db.UniqueViolation(err, "bed_ward_number_key") {
		return hmserr.Conflict("bed %s already exists in this ward", b.Number)
	}
	return err
}

func (r *bedRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+bedCols+` FROM bed WHERE id = $1`, id)
	b, err := scanBed(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("bed", id.String())
	}
	return b, err
}

func (r *bedRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+bedCols+` FROM bed WHERE id = $1 FOR UPDATE`, id)
	b, err := scanBed(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("bed", id.String())
	}
	return b, err
}

func (r *bedRepoPG) ListByWard(ctx context.Context, wardID uuid.UUID, status string) ([]*Bed, error) {
	query := `SELECT ` + bedCols + ` FROM bed WHERE ward_id = $1`
	args := []interface{}{wardID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	rows, err := conn(ctx, r.pool).Query(ctx, query+` ORDER BY number`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beds []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		beds = append(beds, b)
	}
	return beds, rows.Err()
}

func (r *bedRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE bed SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("bed", id.String())
	}
	return nil
}

// -- Admissions --

type admissionRepoPG struct{ pool *pgxpool.Pool }

func NewAdmissionRepoPG(pool *pgxpool.Pool) AdmissionRepository { return &admissionRepoPG{pool: pool} }

const admissionCols = `id, patient_id, doctor_id, bed_id, diagnosis, status,
	admitted_at, discharged_at, notes, created_at, updated_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.BedID, &a.Diagnosis, &a.Status,
		&a.AdmittedAt, &a.DischargedAt, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *admissionRepoPG) Create(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO admission (id, patient_id, doctor_id, bed_id, diagnosis, status,
			admitted_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.PatientID, a.DoctorID, a.BedID, a.Diagnosis, a.Status, a.AdmittedAt, a.Notes)
	return err
}

func (r *admissionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admission WHERE id = $1`, id)
	a, err := scanAdmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("admission", id.String())
	}
	return a, err
}

func (r *admissionRepoPG) Search(ctx context.Context, params AdmissionSearchParams, limit, offset int) ([]*Admission, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 1
	if params.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", n))
		args = append(args, *params.PatientID)
		n++
	}
	if params.DoctorID != nil {
		where = append(where, fmt.Sprintf("doctor_id = $%d", n))
		args = append(args, *params.DoctorID)
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
		`SELECT COUNT(*) FROM admission WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx,
		`SELECT `+admissionCols+` FROM admission WHERE `+cond+
			fmt.Sprintf(` ORDER BY admitted_at DESC LIMIT $%d OFFSET $%d`, n, n+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var admissions []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, 0, err
		}
		admissions = append(admissions, a)
	}
	return admissions, total, rows.Err()
}

func (r *admissionRepoPG) Update(ctx context.Context, a *Admission) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE admission
		SET diagnosis = $2, status = $3, discharged_at = $4, notes = $5, updated_at = now()
		WHERE id = $1`,
		a.ID, a.Diagnosis, a.Status, a.DischargedAt, a.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("admission", a.ID.String())
	}
	return nil
}

// -- Observations --

type observationRepoPG struct{ pool *pgxpool.Pool }

func NewObservationRepoPG(pool *pgxpool.Pool) ObservationRepository {
	return &observationRepoPG{pool: pool}
}

func (r *observationRepoPG) CreateVitalSign(ctx context.Context, v *VitalSign) error {
	v.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO vital_sign (id, admission_id, recorded_by, temperature, pulse_rate,
			resp_rate, systolic_bp, diastolic_bp, spo2, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		v.ID, v.AdmissionID, v.RecordedBy, v.Temperature, v.PulseRate,
		v.RespRate, v.SystolicBP, v.DiastolicBP, v.SpO2, v.RecordedAt)
	return err
}

func (r *observationRepoPG) ListVitalSigns(ctx context.Context, admissionID uuid.UUID) ([]*VitalSign, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, admission_id, recorded_by, temperature, pulse_rate, resp_rate,
			systolic_bp, diastolic_bp, spo2, recorded_at
		FROM vital_sign WHERE admission_id = $1 ORDER BY recorded_at DESC`, admissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vitals []*VitalSign
	for rows.Next() {
		var v VitalSign
		if err := rows.Scan(&v.ID, &v.AdmissionID, &v.RecordedBy, &v.Temperature,
			&v.PulseRate, &v.RespRate, &v.SystolicBP, &v.DiastolicBP, &v.SpO2,
			&v.RecordedAt); err != nil {
			return nil, err
		}
		vitals = append(vitals, &v)
	}
	return vitals, rows.Err()
}

func (r *observationRepoPG) CreateNursingNote(ctx context.Context, n *NursingNote) error {
	n.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO nursing_note (id, admission_id, recorded_by, note, recorded_at)
		VALUES ($1,$2,$3,$4,$5)`,
		n.ID, n.AdmissionID, n.RecordedBy, n.Note, n.RecordedAt)
	return err
}

func (r *observationRepoPG) ListNursingNotes(ctx context.Context, admissionID uuid.UUID) ([]*NursingNote, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, admission_id, recorded_by, note, recorded_at
		FROM nursing_note WHERE admission_id = $1 ORDER BY recorded_at DESC`, admissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*NursingNote
	for rows.Next() {
		var n NursingNote
		if err := rows.Scan(&n.ID, &n.AdmissionID, &n.RecordedBy, &n.Note, &n.RecordedAt); err != nil {
			return nil, err
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

func (r *observationRepoPG) CreateProgressNote(ctx context.Context, n *ProgressNote) error {
	n.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO progress_note (id, admission_id, recorded_by, note, recorded_at)
		VALUES ($1,$2,$3,$4,$5)`,
		n.ID, n.AdmissionID, n.RecordedBy, n.Note, n.RecordedAt)
	return err
}

func (r *observationRepoPG) ListProgressNotes(ctx context.Context, admissionID uuid.UUID) ([]*ProgressNote, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, admission_id, recorded_by, note, recorded_at
		FROM progress_note WHERE admission_id = $1 ORDER BY recorded_at DESC`, admissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*ProgressNote
	for rows.Next() {
		var n ProgressNote
		if err := rows.Scan(&n.ID, &n.AdmissionID, &n.RecordedBy, &n.Note, &n.RecordedAt); err != nil {
			return nil, err
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}
