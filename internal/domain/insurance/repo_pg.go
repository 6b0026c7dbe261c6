package insurance

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

// -- Providers --

type providerRepoPG struct{ pool *pgxpool.Pool }

func NewProviderRepoPG(pool *pgxpool.Pool) ProviderRepository { return &providerRepoPG{pool: pool} }

const providerCols = `id, name, code, phone, email, address, active, created_at, updated_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Phone, &p.Email, &p.Address,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *providerRepoPG) Create(ctx context.Context, p *Provider) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO insurance_provider (id, name, code, phone, email, address, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Name, p.Code, p.Phone, p.Email, p.Address, p.Active)
	if db.UniqueViolation(err, "insurance_provider_code_key") {
		return hmserr.Conflict("insurance provider with code %s already exists", p.Code)
	}
	return err
}

func (r *providerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+providerCols+` FROM insurance_provider WHERE id = $1`, id)
	p, err := scanProvider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("insurance provider", id.String())
	}
	return p, err
}

func (r *providerRepoPG) List(ctx context.Context, limit, offset int) ([]*Provider, int, error) {
	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM insurance_provider`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx,
		`SELECT `+providerCols+` FROM insurance_provider ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var providers []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, 0, err
		}
		providers = append(providers, p)
	}
	return providers, total, rows.Err()
}

func (r *providerRepoPG) Update(ctx context.Context, p *Provider) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE insurance_provider
		SET name = $2, code = $3, phone = $4, email = $5, address = $6,
			active = $7, updated_at = now()
		WHERE id = $1`,
		p.ID, p.Name, p.Code, p.Phone, p.Email, p.Address, p.Active)
	if db.UniqueViolation(err, "insurance_provider_code_key") {
		return hmserr.Conflict("insurance provider with code %s already exists", p.Code)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("insurance provider", p.ID.String())
	}
	return nil
}

// -- Policies --

type policyRepoPG struct{ pool *pgxpool.Pool }

func NewPolicyRepoPG(pool *pgxpool.Pool) PolicyRepository { return &policyRepoPG{pool: pool} }

const policyCols = `id, patient_id, provider_id, policy_number, coverage_amount,
	valid_from, valid_to, status, created_at, updated_at`

func scanPolicy(row pgx.Row) (*Policy, error) {
	var p Policy
	err := row.Scan(&p.ID, &p.PatientID, &p.ProviderID, &p.PolicyNumber,
		&p.CoverageAmount, &p.ValidFrom, &p.ValidTo, &p.Status,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *policyRepoPG) Create(ctx context.Context, p *Policy) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO insurance_policy (id, patient_id, provider_id, policy_number,
			coverage_amount, valid_from, valid_to, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.PatientID, p.ProviderID, p.PolicyNumber, p.CoverageAmount,
		p.ValidFrom, p.ValidTo, p.Status)
	if db.UniqueViolation(err, "insurance_policy_number_key") {
		return hmserr.Conflict("policy number %s already exists", p.PolicyNumber)
	}
	return err
}

func (r *policyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Policy, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+policyCols+` FROM insurance_policy WHERE id = $1`, id)
	p, err := scanPolicy(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("insurance policy", id.String())
	}
	return p, err
}

func (r *policyRepoPG) Search(ctx context.Context, params PolicySearchParams, limit, offset int) ([]*Policy, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 1
	if params.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", n))
		args = append(args, *params.PatientID)
		n++
	}
	if params.ProviderID != nil {
		where = append(where, fmt.Sprintf("provider_id = $%d", n))
		args = append(args, *params.ProviderID)
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
		`SELECT COUNT(*) FROM insurance_policy WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx,
		`SELECT `+policyCols+` FROM insurance_policy WHERE `+cond+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n, n+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var policies []*Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, 0, err
		}
		policies = append(policies, p)
	}
	return policies, total, rows.Err()
}

func (r *policyRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE insurance_policy SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("insurance policy", id.String())
	}
	return nil
}

// -- Claims --

type claimRepoPG struct{ pool *pgxpool.Pool }

func NewClaimRepoPG(pool *pgxpool.Pool) ClaimRepository { return &claimRepoPG{pool: pool} }

const claimCols = `id, claim_number, policy_id, invoice_id, amount_claimed,
	amount_approved, status, notes, settled_at, created_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.ClaimNumber, &c.PolicyID, &c.InvoiceID, &c.AmountClaimed,
		&c.AmountApproved, &c.Status, &c.Notes, &c.SettledAt, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *claimRepoPG) Create(ctx context.Context, c *Claim) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO insurance_claim (id, claim_number, policy_id, invoice_id,
			amount_claimed, amount_approved, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.ClaimNumber, c.PolicyID, c.InvoiceID, c.AmountClaimed,
		c.AmountApproved, c.Status, c.Notes)
	return err
}

func (r *claimRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+claimCols+` FROM insurance_claim WHERE id = $1`, id)
	c, err := scanClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound("insurance claim", id.String())
	}
	return c, err
}

func (r *claimRepoPG) Search(ctx context.Context, params ClaimSearchParams, limit, offset int) ([]*Claim, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 1
	if params.PolicyID != nil {
		where = append(where, fmt.Sprintf("policy_id = $%d", n))
		args = append(args, *params.PolicyID)
		n++
	}
	if params.InvoiceID != nil {
		where = append(where, fmt.Sprintf("invoice_id = $%d", n))
		args = append(args, *params.InvoiceID)
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
		`SELECT COUNT(*) FROM insurance_claim WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx,
		`SELECT `+claimCols+` FROM insurance_claim WHERE `+cond+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n, n+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var claims []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, err
		}
		claims = append(claims, c)
	}
	return claims, total, rows.Err()
}

func (r *claimRepoPG) Update(ctx context.Context, c *Claim) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE insurance_claim
		SET amount_approved = $2, status = $3, notes = $4, settled_at = $5, updated_at = now()
		WHERE id = $1`,
		c.ID, c.AmountApproved, c.Status, c.Notes, c.SettledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound("insurance claim", c.ID.String())
	}
	return nil
}
