package ticket

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrTicketNotFound = errors.New("ticket not found")

type Repository interface {
	// NextNumber increments and returns the per-type counter, never below the
	// highest number already stored for that type.
	NextNumber(ctx context.Context, t Type) (int64, error)
	// MaxNumber returns the highest number issued for t, 0 if none.
	MaxNumber(ctx context.Context, t Type) (int64, error)
	Create(ctx context.Context, tk *Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	Update(ctx context.Context, tk *Ticket) error
	ListByStatus(ctx context.Context, status Status) ([]*Ticket, error)
}
