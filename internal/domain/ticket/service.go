package ticket

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/siah/siah/internal/platform/events"
)

var (
	ErrInvalidType      = errors.New("invalid ticket type")
	ErrNoTicketsWaiting = errors.New("no tickets waiting")
	ErrNotCalled        = errors.New("ticket is not called")
)

// BoardRecentCalls is how many called senhas the public board shows.
const BoardRecentCalls = 3

type Service struct {
	mu      sync.Mutex
	repo    Repository
	counter Counter
	pub     events.Publisher
	now     func() time.Time
}

// NewService builds the ticket service. A nil counter counts in repo.
func NewService(repo Repository, counter Counter) *Service {
	if counter == nil {
		counter = NewRepoCounter(repo)
	}
	return &Service{repo: repo, counter: counter, pub: events.Nop{}, now: time.Now}
}

func (s *Service) SetPublisher(p events.Publisher) {
	s.pub = p
}

func (s *Service) publish(ctx context.Context, eventType string, tk *Ticket) {
	e := events.NewEvent(eventType, "ticket", tk).WithKey(tk.ID.String())
	if err := s.pub.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("publish ticket event")
	}
}

// Issue dispenses the next senha of type t.
func (s *Service) Issue(ctx context.Context, t Type) (*Ticket, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, t)
	}

	n, err := s.counter.Next(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("next ticket number: %w", err)
	}
	tk := &Ticket{
		ID:          uuid.New(),
		Type:        t,
		Number:      n,
		Code:        Code(t, n),
		Status:      StatusWaiting,
		GeneratedAt: s.now(),
	}
	if err := s.repo.Create(ctx, tk); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	log.Info().Str("code", tk.Code).Msg("ticket issued")
	s.publish(ctx, events.TicketIssued, tk)
	return tk, nil
}

// sortWaiting puts prioridade first, then the oldest.
func sortWaiting(items []*Ticket) {
	slices.SortStableFunc(items, func(a, b *Ticket) int {
		if a.Type != b.Type {
			if a.Type == TypePriority {
				return -1
			}
			return 1
		}
		if c := a.GeneratedAt.Compare(b.GeneratedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Number, b.Number)
	})
}

func (s *Service) waiting(ctx context.Context) ([]*Ticket, error) {
	items, err := s.repo.ListByStatus(ctx, StatusWaiting)
	if err != nil {
		return nil, err
	}
	sortWaiting(items)
	return items, nil
}

// Waiting returns the senhas not yet called, in calling order.
func (s *Service) Waiting(ctx context.Context) (*Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.waiting(ctx)
	if err != nil {
		return nil, err
	}
	q := &Queue{Tickets: items}
	for _, tk := range items {
		if tk.Type == TypePriority {
			q.Priority++
		} else {
			q.Normal++
		}
	}
	return q, nil
}

// CallNext calls the head of the waiting list.
func (s *Service) CallNext(ctx context.Context) (*Ticket, error) {
	s.mu.Lock()
	items, err := s.waiting(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if len(items) == 0 {
		s.mu.Unlock()
		return nil, ErrNoTicketsWaiting
	}

	tk := items[0]
	now := s.now()
	tk.Status = StatusCalled
	tk.CalledAt = &now
	err = s.repo.Update(ctx, tk)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("call ticket: %w", err)
	}

	log.Info().Str("code", tk.Code).Msg("ticket called")
	s.publish(ctx, events.TicketCalled, tk)
	return tk, nil
}

// transition moves a called ticket to status.
func (s *Service) transition(ctx context.Context, id uuid.UUID, status Status) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tk, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tk.Status != StatusCalled {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCalled, tk.Code, tk.Status)
	}

	tk.Status = status
	switch status {
	case StatusWaiting:
		tk.CalledAt = nil
	case StatusAttended:
		now := s.now()
		tk.AttendedAt = &now
	}
	if err := s.repo.Update(ctx, tk); err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}
	return tk, nil
}

// CancelCall puts a called ticket back in the waiting list.
func (s *Service) CancelCall(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	tk, err := s.transition(ctx, id, StatusWaiting)
	if err != nil {
		return nil, err
	}
	log.Info().Str("code", tk.Code).Msg("ticket call cancelled")
	s.publish(ctx, events.TicketCallCancelled, tk)
	return tk, nil
}

// MarkAttended closes the ticket once its holder is registered.
func (s *Service) MarkAttended(ctx context.Context, id uuid.UUID) error {
	tk, err := s.transition(ctx, id, StatusAttended)
	if err != nil {
		return err
	}
	log.Info().Str("code", tk.Code).Msg("ticket attended")
	s.publish(ctx, events.TicketAttended, tk)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	return s.repo.GetByID(ctx, id)
}

// RecentCalls returns up to n called tickets, latest first.
func (s *Service) RecentCalls(ctx context.Context, n int) ([]*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.repo.ListByStatus(ctx, StatusCalled)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(items, func(a, b *Ticket) int {
		return calledAt(b).Compare(calledAt(a))
	})
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items, nil
}

func calledAt(tk *Ticket) time.Time {
	if tk.CalledAt == nil {
		return time.Time{}
	}
	return *tk.CalledAt
}
