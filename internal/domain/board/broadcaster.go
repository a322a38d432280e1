package board

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/siah/siah/internal/domain/flow"
	"github.com/siah/siah/internal/platform/events"
	"github.com/siah/siah/internal/platform/metrics"
	"github.com/siah/siah/internal/platform/websocket"
)

// Topic is the WebSocket topic the display subscribes to.
const Topic = "board"

const (
	EventUpdated  = "board.updated"
	EventSnapshot = "board.snapshot"
)

// Broadcaster pushes a fresh snapshot to board subscribers after flow and
// ticket events. Bursts of events collapse into one refresh.
type Broadcaster struct {
	svc   *Service
	hub   *websocket.Hub
	dirty chan struct{}
}

func NewBroadcaster(svc *Service, hub *websocket.Hub) *Broadcaster {
	return &Broadcaster{svc: svc, hub: hub, dirty: make(chan struct{}, 1)}
}

// Handle is subscribed to the event bus. It never blocks the publisher.
func (b *Broadcaster) Handle(_ context.Context, e events.Event) error {
	metrics.RecordEvent(e.Type)
	select {
	case b.dirty <- struct{}{}:
	default:
	}
	return nil
}

// Run refreshes the board whenever Handle has marked it dirty, until ctx is
// cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.dirty:
			if err := b.Refresh(ctx); err != nil {
				log.Warn().Err(err).Msg("board refresh failed")
			}
		}
	}
}

// Refresh builds a snapshot, updates the queue gauges and broadcasts it.
func (b *Broadcaster) Refresh(ctx context.Context) error {
	snap, err := b.svc.Snapshot(ctx)
	if err != nil {
		return err
	}
	recordGauges(snap)

	ev, err := websocket.NewEvent(EventUpdated, Topic, snap)
	if err != nil {
		return err
	}
	b.hub.Broadcast(Topic, ev)
	return nil
}

// Greet sends the current board to a client that just subscribed.
func (b *Broadcaster) Greet(ctx context.Context, topic string) (*websocket.Event, error) {
	if topic != Topic {
		return nil, nil
	}
	snap, err := b.svc.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ev, err := websocket.NewEvent(EventSnapshot, Topic, snap)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func recordGauges(snap *Snapshot) {
	metrics.SetQueueWaiting(string(flow.QueueTriage), len(snap.WaitingTriage))
	metrics.SetQueueWaiting(string(flow.QueueMedical), len(snap.WaitingMedical))
	metrics.SetActiveCalls(len(snap.Calls))
	metrics.SetTicketsWaiting("normal", snap.TicketsWaiting.Normal)
	metrics.SetTicketsWaiting("prioridade", snap.TicketsWaiting.Priority)
}
