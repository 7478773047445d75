package queue

import (
	"context"
	"log/slog"
	"time"
)

// Sender delivers one event.  *Publisher implements it.
type Sender interface {
	Publish(ctx context.Context, ev AuthEvent) error
}

// AsyncPublisher moves event delivery off the request path.  Publish only
// enqueues; a single worker started by Run hands events to the Sender.
// When the buffer is full the event is dropped and logged.
type AsyncPublisher struct {
	next        Sender
	events      chan AuthEvent
	sendTimeout time.Duration
	logger      *slog.Logger
}

func NewAsyncPublisher(next Sender, buffer int, logger *slog.Logger) *AsyncPublisher {
	if buffer < 1 {
		buffer = 1
	}
	return &AsyncPublisher{next: next, events: make(chan AuthEvent, buffer), sendTimeout: 5 * time.Second, logger: logger}
}

// Publish enqueues ev without blocking.  It never returns an error.
func (a *AsyncPublisher) Publish(_ context.Context, ev AuthEvent) error {
	select {
	case a.events <- ev:
	default:
		a.logger.Warn("auth event dropped: queue full", "type", ev.Type)
	}
	return nil
}

// Run delivers queued events until ctx ends, then drains what is left with
// a fresh deadline per event.
func (a *AsyncPublisher) Run(ctx context.Context) {
	for {
		select {
		case ev := <-a.events:
			a.send(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-a.events:
					a.send(ev)
				default:
					return
				}
			}
		}
	}
}

func (a *AsyncPublisher) send(ev AuthEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), a.sendTimeout)
	defer cancel()
	if err := a.next.Publish(ctx, ev); err != nil {
		a.logger.Warn("auth event not delivered", "type", ev.Type, "err", err)
	}
}
