// Package progress implements the best-effort broadcast channel between the
// orchestrator and live observers.
package progress

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pricehound/pricehound/pkg/models"
)

// subscriberBuffer bounds how far a slow observer may lag before events are
// dropped for it. Progress is a live-view convenience, not a durable log.
const subscriberBuffer = 64

type subscriber struct {
	id int
	ch chan models.ProgressEvent
}

// Publisher fans progress events out to zero or more observers per job.
// Publish never blocks; a full or absent subscriber simply misses events.
type Publisher struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID][]*subscriber
	nextID int
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[uuid.UUID][]*subscriber)}
}

// Subscribe attaches an observer to jobID. The returned cancel func detaches
// the observer and closes its channel; it is safe to call more than once.
func (p *Publisher) Subscribe(jobID uuid.UUID) (<-chan models.ProgressEvent, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	sub := &subscriber{
		id: p.nextID,
		ch: make(chan models.ProgressEvent, subscriberBuffer),
	}
	p.subs[jobID] = append(p.subs[jobID], sub)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.unsubscribe(jobID, sub.id)
		})
	}
	return sub.ch, cancel
}

// Publish delivers event to every observer of jobID. Delivery is per-observer
// isolated: one full buffer never blocks the others or the caller.
func (p *Publisher) Publish(jobID uuid.UUID, event models.ProgressEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, sub := range p.subs[jobID] {
		select {
		case sub.ch <- event:
		default:
			slog.Debug("progress event dropped for slow subscriber",
				"job_id", jobID, "subscriber", sub.id, "percent", event.Percent)
		}
	}
}

// SubscriberCount reports the number of observers attached to jobID.
func (p *Publisher) SubscriberCount(jobID uuid.UUID) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs[jobID])
}

func (p *Publisher) unsubscribe(jobID uuid.UUID, id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.subs[jobID]
	for i, sub := range subs {
		if sub.id == id {
			p.subs[jobID] = append(subs[:i], subs[i+1:]...)
			close(sub.ch)
			break
		}
	}
	if len(p.subs[jobID]) == 0 {
		delete(p.subs, jobID)
	}
}
