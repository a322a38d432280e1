// Package board assembles the public waiting-room display: recent senhas,
// active calls and both waiting lines, with names reduced to their public
// form.
package board

import (
	"context"
	"fmt"
	"time"

	"github.com/siah/siah/internal/domain/flow"
	"github.com/siah/siah/internal/domain/ticket"
)

// RecentTickets is how many called senhas the board shows.
const RecentTickets = 3

// FlowReader is the part of the flow service the board reads.
type FlowReader interface {
	ActiveCalls(ctx context.Context) ([]*flow.Call, error)
	WaitingTriage(ctx context.Context) ([]*flow.Patient, error)
	WaitingMedical(ctx context.Context) ([]*flow.Patient, error)
	Statistics(ctx context.Context) (*flow.Stats, error)
}

// TicketReader is the part of the ticket service the board reads.
type TicketReader interface {
	RecentCalls(ctx context.Context, n int) ([]*ticket.Ticket, error)
	Waiting(ctx context.Context) (*ticket.Queue, error)
}

type PublicCall struct {
	PublicName string        `json:"public_name"`
	Location   string        `json:"location"`
	Kind       flow.CallKind `json:"kind"`
	Color      flow.Color    `json:"color,omitempty"`
	CalledAt   time.Time     `json:"called_at"`
}

type TriageRow struct {
	PublicName   string    `json:"public_name"`
	RecordNumber string    `json:"record_number"`
	Since        time.Time `json:"since"`
	Wait         string    `json:"wait"`
}

type MedicalRow struct {
	PublicName string     `json:"public_name"`
	Color      flow.Color `json:"color"`
	ColorLabel string     `json:"color_label"`
	Since      time.Time  `json:"since"`
	Wait       string     `json:"wait"`
}

type TicketCounts struct {
	Normal   int `json:"normal"`
	Priority int `json:"prioridade"`
}

// Snapshot is everything the display renders at one instant.
type Snapshot struct {
	GeneratedAt    time.Time        `json:"generated_at"`
	RecentTickets  []*ticket.Ticket `json:"recent_tickets"`
	TicketsWaiting TicketCounts     `json:"tickets_waiting"`
	Calls          []PublicCall     `json:"calls"`
	WaitingTriage  []TriageRow      `json:"waiting_triage"`
	WaitingMedical []MedicalRow     `json:"waiting_medical"`
	Stats          *flow.Stats      `json:"stats"`
}

type Service struct {
	flow    FlowReader
	tickets TicketReader
	now     func() time.Time
}

func NewService(f FlowReader, t TicketReader) *Service {
	return &Service{flow: f, tickets: t, now: time.Now}
}

// FormatWait renders a waiting time as "Xh Ymin" or "Ymin", truncated to
// whole minutes. Negative durations read as zero.
func FormatWait(d time.Duration) string {
	mins := int(d / time.Minute)
	if mins < 0 {
		mins = 0
	}
	if h := mins / 60; h > 0 {
		return fmt.Sprintf("%dh %dmin", h, mins%60)
	}
	return fmt.Sprintf("%dmin", mins)
}

func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	now := s.now()
	snap := &Snapshot{
		GeneratedAt:    now,
		RecentTickets:  []*ticket.Ticket{},
		Calls:          []PublicCall{},
		WaitingTriage:  []TriageRow{},
		WaitingMedical: []MedicalRow{},
	}

	if s.tickets != nil {
		recent, err := s.tickets.RecentCalls(ctx, RecentTickets)
		if err != nil {
			return nil, fmt.Errorf("recent tickets: %w", err)
		}
		snap.RecentTickets = recent

		q, err := s.tickets.Waiting(ctx)
		if err != nil {
			return nil, fmt.Errorf("waiting tickets: %w", err)
		}
		snap.TicketsWaiting = TicketCounts{Normal: q.Normal, Priority: q.Priority}
	}

	calls, err := s.flow.ActiveCalls(ctx)
	if err != nil {
		return nil, fmt.Errorf("active calls: %w", err)
	}
	for _, c := range calls {
		snap.Calls = append(snap.Calls, PublicCall{
			PublicName: c.PublicName,
			Location:   c.Location,
			Kind:       c.Kind,
			Color:      c.Color,
			CalledAt:   c.CalledAt,
		})
	}

	triage, err := s.flow.WaitingTriage(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting triage: %w", err)
	}
	for _, p := range triage {
		snap.WaitingTriage = append(snap.WaitingTriage, TriageRow{
			PublicName:   flow.PublicName(p.Name),
			RecordNumber: p.RecordNumber,
			Since:        p.RegisteredAt,
			Wait:         FormatWait(now.Sub(p.RegisteredAt)),
		})
	}

	medical, err := s.flow.WaitingMedical(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting medical: %w", err)
	}
	for _, p := range medical {
		since := p.StatusChangedAt
		if p.TriagedAt != nil {
			since = *p.TriagedAt
		}
		snap.WaitingMedical = append(snap.WaitingMedical, MedicalRow{
			PublicName: flow.PublicName(p.Name),
			Color:      p.Color,
			ColorLabel: p.Color.Label(),
			Since:      since,
			Wait:       FormatWait(now.Sub(since)),
		})
	}

	if snap.Stats, err = s.flow.Statistics(ctx); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	return snap, nil
}
