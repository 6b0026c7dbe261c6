package support

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

type requestRepoPG struct {
	pool   *pgxpool.Pool
	table  string
	entity string
}

func NewHousekeepingRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool, table: "housekeeping_request", entity: "housekeeping request"}
}

func NewMaintenanceRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool, table: "maintenance_request", entity: "maintenance request"}
}

const requestCols = `id, location, description, priority, status, requested_by,
	assigned_to, requested_at, started_at, completed_at, created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.Location, &req.Description, &req.Priority, &req.Status,
		&req.RequestedBy, &req.AssignedTo, &req.RequestedAt, &req.StartedAt,
		&req.CompletedAt, &req.CreatedAt, &req.UpdatedAt)
	return &req, err
}

func (r *requestRepoPG) Create(ctx context.Context, req *Request) error {
	req.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO `+r.table+` (id, location, description, priority, status,
			requested_by, requested_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		req.ID, req.Location, req.Description, req.Priority, req.Status,
		req.RequestedBy, req.RequestedAt)
	return err
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+requestCols+` FROM `+r.table+` WHERE id = $1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hmserr.NotFound(r.entity, id.String())
	}
	return req, err
}

func (r *requestRepoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Request, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	n := 1
	if params.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", n))
		args = append(args, params.Status)
		n++
	}
	if params.Priority != "" {
		where = append(where, fmt.Sprintf("priority = $%d", n))
		args = append(args, params.Priority)
		n++
	}
	if params.AssignedTo != nil {
		where = append(where, fmt.Sprintf("assigned_to = $%d", n))
		args = append(args, *params.AssignedTo)
		n++
	}
	cond := strings.Join(where, " AND ")

	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM `+r.table+` WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx,
		`SELECT `+requestCols+` FROM `+r.table+` WHERE `+cond+
			fmt.Sprintf(` ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`, n, n+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}

func (r *requestRepoPG) Update(ctx context.Context, req *Request) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE `+r.table+`
		SET location = $2, description = $3, priority = $4, status = $5,
			assigned_to = $6, started_at = $7, completed_at = $8, updated_at = now()
		WHERE id = $1`,
		req.ID, req.Location, req.Description, req.Priority, req.Status,
		req.AssignedTo, req.StartedAt, req.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return hmserr.NotFound(r.entity, req.ID.String())
	}
	return nil
}
