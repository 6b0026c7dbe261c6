package patient

import (
	"context"
	"errors"
	"fmt"

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, mrn, first_name, last_name, birth_date, gender, phone, email,
	address_line, city, state, postal_code, blood_group, emergency_contact,
	emergency_phone, active, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.MRN, &p.FirstName, &p.LastName, &p.BirthDate, &p.Gender,
		&p.Phone, &p.Email, &p.AddressLine, &p.City, &p.State, &p.PostalCode,
		&p.BloodGroup, &p.EmergencyContact, &p.EmergencyPhone, &p.Active,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, mrn, first_name, last_name, birth_date, gender, phone,
			email, address_line, city, state, postal_code, blood_group,
			emergency_contact, emergency_phone, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.ID, p.MRN, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.Phone,
		p.Email, p.AddressLine, p.City, p.State, p.PostalCode, p.BloodGroup,
		p.EmergencyContact, p.EmergencyPhone, p.Active)
	if db.UniqueViolation(err, "patient_mrn_key") {
		return hmserr.Conflict("patient with MRN %s already exists", p.MRN)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("patient", id.String())
	}
	return p, err
}

func (r *repoPG) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE mrn = $1`, mrn))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("patient", mrn)
	}
	return p, err
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET first_name=$2, last_name=$3, birth_date=$4, gender=$5,
			phone=$6, email=$7, address_line=$8, city=$9, state=$10, postal_code=$11,
			blood_group=$12, emergency_contact=$13, emergency_phone=$14, active=$15,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.Phone, p.Email,
		p.AddressLine, p.City, p.State, p.PostalCode, p.BloodGroup,
		p.EmergencyContact, p.EmergencyPhone, p.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("patient", p.ID.String())
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("patient", id.String())
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("patient", id.String())
	}
	return nil
}

// HasClinicalData reports whether any appointment, admission, or invoice
// references the patient. Such patients are deactivated instead of deleted.
func (r *repoPG) HasClinicalData(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM appointment WHERE patient_id = $1)
			OR EXISTS(SELECT 1 FROM admission WHERE patient_id = $1)
			OR EXISTS(SELECT 1 FROM invoice WHERE patient_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if params.Name != "" {
		where += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d)`, idx, idx)
		args = append(args, "%"+params.Name+"%")
		idx++
	}
	if params.MRN != "" {
		where += fmt.Sprintf(` AND mrn = $%d`, idx)
		args = append(args, params.MRN)
		idx++
	}
	if params.Active != nil {
		where += fmt.Sprintf(` AND active = $%d`, idx)
		args = append(args, *params.Active)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + patientCols + ` FROM patient` + where +
		fmt.Sprintf(` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
