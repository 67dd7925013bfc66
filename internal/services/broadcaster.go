package services

import (
	"sync"

	"quadro/internal/domain"
	"quadro/internal/logging"
	"quadro/internal/ports"
)

// clientBuffer is the per-subscriber channel capacity. Slow consumers drop
// events instead of blocking publishers.
const clientBuffer = 256

// maxHistoryPerTask bounds the replay buffer kept per task
const maxHistoryPerTask = 1000

// Broadcaster fans engine events out to task and board subscribers. Publish
// never blocks: each subscriber gets a buffered channel and events are
// dropped per-subscriber when the buffer is full. Task events are also kept
// in a bounded history for replay when an observer reconnects.
type Broadcaster struct {
	boardClients map[string][]chan domain.Event
	history      map[string][]domain.Event
	mu           sync.RWMutex
	taskClients  map[string][]chan domain.Event
}

var _ ports.EventSink = (*Broadcaster)(nil)

// NewBroadcaster creates an event broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		boardClients: make(map[string][]chan domain.Event),
		history:      make(map[string][]domain.Event),
		taskClients:  make(map[string][]chan domain.Event),
	}
}

// Publish implements ports.EventSink
func (b *Broadcaster) Publish(event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if event.TaskID != "" {
		b.storeHistory(event)
		b.send(b.taskClients[event.TaskID], event)
	}
	if event.BoardID != "" {
		b.send(b.boardClients[event.BoardID], event)
	}
}

// SubscribeTask registers an observer for one task's event stream. The
// returned cancel function must be called when the observer disconnects.
func (b *Broadcaster) SubscribeTask(taskID string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, clientBuffer)

	b.mu.Lock()
	b.taskClients[taskID] = append(b.taskClients[taskID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		b.taskClients[taskID] = removeClient(b.taskClients[taskID], ch)
		if len(b.taskClients[taskID]) == 0 {
			delete(b.taskClients, taskID)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeBoard registers an observer for a board's client-action stream
func (b *Broadcaster) SubscribeBoard(boardID string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, clientBuffer)

	b.mu.Lock()
	b.boardClients[boardID] = append(b.boardClients[boardID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		b.boardClients[boardID] = removeClient(b.boardClients[boardID], ch)
		if len(b.boardClients[boardID]) == 0 {
			delete(b.boardClients, boardID)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// History returns the retained events for a task, oldest first
func (b *Broadcaster) History(taskID string) []domain.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.history[taskID]
	out := make([]domain.Event, len(events))
	copy(out, events)
	return out
}

// ClearHistory drops a task's replay buffer
func (b *Broadcaster) ClearHistory(taskID string) {
	b.mu.Lock()
	delete(b.history, taskID)
	b.mu.Unlock()
}

func (b *Broadcaster) storeHistory(event domain.Event) {
	events := append(b.history[event.TaskID], event)
	if len(events) > maxHistoryPerTask {
		events = events[len(events)-maxHistoryPerTask:]
	}
	b.history[event.TaskID] = events
}

func (b *Broadcaster) send(clients []chan domain.Event, event domain.Event) {
	for _, ch := range clients {
		select {
		case ch <- event:
		default:
			logging.Logger.Warn("Subscriber buffer full, dropping event",
				"type", event.Type, "task_id", event.TaskID)
		}
	}
}

func removeClient(clients []chan domain.Event, target chan domain.Event) []chan domain.Event {
	for i, ch := range clients {
		if ch == target {
			return append(clients[:i], clients[i+1:]...)
		}
	}
	return clients
}
