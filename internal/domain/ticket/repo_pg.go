package ticket

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siah/siah/internal/platform/db"
)

type pgRepo struct{ pool *pgxpool.Pool }

func NewPGRepo(pool *pgxpool.Pool) Repository {
	return &pgRepo{pool: pool}
}

func (r *pgRepo) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const ticketCols = `id, type, number, code, status, generated_at, called_at, attended_at`

func (r *pgRepo) scanTicket(row pgx.Row) (*Ticket, error) {
	var tk Ticket
	err := row.Scan(&tk.ID, &tk.Type, &tk.Number, &tk.Code, &tk.Status, &tk.GeneratedAt, &tk.CalledAt, &tk.AttendedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tk, nil
}

func (r *pgRepo) NextNumber(ctx context.Context, t Type) (int64, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ticket_counters (type, value)
		VALUES ($1, (SELECT COALESCE(MAX(number), 0) FROM tickets WHERE type = $1) + 1)
		ON CONFLICT (type) DO UPDATE SET value = GREATEST(
			ticket_counters.value,
			(SELECT COALESCE(MAX(number), 0) FROM tickets WHERE type = $1)) + 1
		RETURNING value`, t).Scan(&n)
	return n, err
}

func (r *pgRepo) MaxNumber(ctx context.Context, t Type) (int64, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) FROM tickets WHERE type = $1`, t).Scan(&n)
	return n, err
}

func (r *pgRepo) Create(ctx context.Context, tk *Ticket) error {
	if tk.ID == uuid.Nil {
		tk.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO tickets (`+ticketCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tk.ID, tk.Type, tk.Number, tk.Code, tk.Status, tk.GeneratedAt, tk.CalledAt, tk.AttendedAt)
	return err
}

func (r *pgRepo) GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	return r.scanTicket(r.conn(ctx).QueryRow(ctx, `SELECT `+ticketCols+` FROM tickets WHERE id = $1`, id))
}

func (r *pgRepo) Update(ctx context.Context, tk *Ticket) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE tickets SET status = $2, called_at = $3, attended_at = $4 WHERE id = $1`,
		tk.ID, tk.Status, tk.CalledAt, tk.AttendedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTicketNotFound
	}
	return nil
}

func (r *pgRepo) ListByStatus(ctx context.Context, status Status) ([]*Ticket, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ticketCols+` FROM tickets WHERE status = $1`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Ticket
	for rows.Next() {
		tk, err := r.scanTicket(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tk)
	}
	return items, rows.Err()
}
