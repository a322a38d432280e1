package ticket

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu       sync.RWMutex
	counters map[Type]int64
	tickets  map[uuid.UUID]*Ticket
}

// NewMemoryRepo returns a process-local ticket store.
func NewMemoryRepo() Repository {
	return &memoryRepo{
		counters: make(map[Type]int64),
		tickets:  make(map[uuid.UUID]*Ticket),
	}
}

func (r *memoryRepo) NextNumber(_ context.Context, t Type) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tk := range r.tickets {
		if tk.Type == t && tk.Number > r.counters[t] {
			r.counters[t] = tk.Number
		}
	}
	r.counters[t]++
	return r.counters[t], nil
}

func (r *memoryRepo) MaxNumber(_ context.Context, t Type) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var highest int64
	for _, tk := range r.tickets {
		if tk.Type == t && tk.Number > highest {
			highest = tk.Number
		}
	}
	return highest, nil
}

func (r *memoryRepo) Create(_ context.Context, tk *Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tk.ID == uuid.Nil {
		tk.ID = uuid.New()
	}
	cp := *tk
	r.tickets[tk.ID] = &cp
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tk, ok := r.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	cp := *tk
	return &cp, nil
}

func (r *memoryRepo) Update(_ context.Context, tk *Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[tk.ID]; !ok {
		return ErrTicketNotFound
	}
	cp := *tk
	r.tickets[tk.ID] = &cp
	return nil
}

func (r *memoryRepo) ListByStatus(_ context.Context, status Status) ([]*Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Ticket
	for _, tk := range r.tickets {
		if tk.Status == status {
			cp := *tk
			out = append(out, &cp)
		}
	}
	return out, nil
}
