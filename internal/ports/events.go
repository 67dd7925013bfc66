package ports

import "quadro/internal/domain"

// EventSink receives engine events for fan-out to observers. Publishing is
// best-effort and must never block the caller.
type EventSink interface {
	Publish(event domain.Event)
}
