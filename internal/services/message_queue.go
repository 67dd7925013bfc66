package services

import (
	"sync"

	"quadro/internal/domain"
)

// MessageQueue holds per-task FIFO queues of user prompts awaiting dispatch
// to an executor. Queues are in-memory and transient: the user Message for
// history is persisted at queue time, not here.
type MessageQueue struct {
	mu     sync.Mutex
	queues map[string][]domain.QueuedMessage
}

// NewMessageQueue creates an empty message queue
func NewMessageQueue() *MessageQueue {
	return &MessageQueue{queues: make(map[string][]domain.QueuedMessage)}
}

// Enqueue appends a message to the task's queue
func (q *MessageQueue) Enqueue(taskID string, message domain.QueuedMessage) {
	q.mu.Lock()
	q.queues[taskID] = append(q.queues[taskID], message)
	q.mu.Unlock()
}

// EnqueueFront puts a message back at the head of the task's queue. Used
// when a dequeued message could not be dispatched and must keep its turn.
func (q *MessageQueue) EnqueueFront(taskID string, message domain.QueuedMessage) {
	q.mu.Lock()
	q.queues[taskID] = append([]domain.QueuedMessage{message}, q.queues[taskID]...)
	q.mu.Unlock()
}

// Dequeue removes and returns the oldest queued message for the task
func (q *MessageQueue) Dequeue(taskID string) (domain.QueuedMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue := q.queues[taskID]
	if len(queue) == 0 {
		return domain.QueuedMessage{}, false
	}

	message := queue[0]
	if len(queue) == 1 {
		delete(q.queues, taskID)
	} else {
		q.queues[taskID] = queue[1:]
	}
	return message, true
}

// Clear drops the task's queue and returns the discarded entries
func (q *MessageQueue) Clear(taskID string) []domain.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	discarded := q.queues[taskID]
	delete(q.queues, taskID)
	return discarded
}

// Len returns the number of queued messages for the task
func (q *MessageQueue) Len(taskID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[taskID])
}
