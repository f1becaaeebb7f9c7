// Package events fans poll changes out to Server-Sent Events subscribers.
package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Event types published for a poll.
const (
	ChoiceCreated = "choice_created"
	VoteCast      = "vote_cast"
	PollUpdated   = "poll_updated"
	PollDeleted   = "poll_deleted"
)

// subscriberBuffer is how many events a slow subscriber may fall behind
// before further events are dropped for it.
const subscriberBuffer = 32

// Event is one change to a poll. Data is encoded as JSON on the wire.
type Event struct {
	Type   string      `json:"type"`
	PollID int64       `json:"poll_id"`
	Data   interface{} `json:"data,omitempty"`
}

type subscriber struct {
	pollID int64
	ch     chan Event
}

// Broadcaster keeps the subscribers of every poll and delivers published
// events to them without blocking the publisher.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int64]map[string]*subscriber
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[int64]map[string]*subscriber),
	}
}

// Subscribe registers a listener for pollID. The returned channel is closed
// by Unsubscribe.
func (b *Broadcaster) Subscribe(pollID int64) (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	sub := &subscriber{pollID: pollID, ch: make(chan Event, subscriberBuffer)}
	if b.subscribers[pollID] == nil {
		b.subscribers[pollID] = make(map[string]*subscriber)
	}
	b.subscribers[pollID][id] = sub

	slog.Debug("event subscriber registered", "poll_id", pollID, "subscriber_id", id)
	return id, sub.ch
}

// Unsubscribe removes the listener and closes its channel. Unknown ids are ignored.
func (b *Broadcaster) Unsubscribe(pollID int64, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[pollID]
	if !ok {
		return
	}
	sub, ok := subs[id]
	if !ok {
		return
	}
	close(sub.ch)
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.subscribers, pollID)
	}
	slog.Debug("event subscriber removed", "poll_id", pollID, "subscriber_id", id)
}

// Publish delivers ev to every subscriber of ev.PollID and returns how many
// received it. Subscribers whose buffer is full miss the event.
func (b *Broadcaster) Publish(ev Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for id, sub := range b.subscribers[ev.PollID] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			slog.Warn("dropping event for slow subscriber",
				"poll_id", ev.PollID,
				"subscriber_id", id,
				"type", ev.Type,
			)
		}
	}
	return delivered
}

// Close ends every subscription of pollID, used once the poll is gone.
func (b *Broadcaster) Close(pollID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers[pollID] {
		close(sub.ch)
	}
	delete(b.subscribers, pollID)
}

// Count returns the number of active subscribers for pollID.
func (b *Broadcaster) Count(pollID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[pollID])
}
