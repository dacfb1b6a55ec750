/*
Package queue implements the store-and-forward holding area that bridges
transient partitions: packets originated while no peer is reachable (or
whose deliveries could not be confirmed, since the mesh gives no delivery
acknowledgement visible to the queue) are retried on a fixed cadence until
they age out or exhaust their retry budget.

The queue is intentionally write-once per packet: the send API puts a
packet in, the background worker retries it out, and an entry is only
discarded on a terminal condition (age or attempt exhaustion) — never on
a successful broadcast, since the mesh has no way to observe remote
delivery. Modeled on the map+mutex shape of the teacher's Message
Sequence.go and the sleep-loop worker cadence of Bootstrap.go.
*/
package queue

import (
	"sync"
	"time"

	"github.com/disastermesh/meshcore/protocol"
)

// MaxAge is how long a packet is retried before being given up on.
const MaxAge = time.Hour

// MaxAttempts is the retry budget per packet.
const MaxAttempts = 20

// RetryInterval is how often the background worker wakes to retry queued
// packets.
const RetryInterval = 30 * time.Second

// Broadcaster is the subset of the peer I/O layer the retry worker needs:
// whether any peer is currently reachable, and fanning a raw frame out to
// all of them. It is satisfied by *transport.PeerSet.
type Broadcaster interface {
	PeerCount() int
	Broadcast(raw []byte)
}

type item struct {
	packet   protocol.Packet
	attempts int
}

// Queue holds originated packets awaiting a reachable peer.
type Queue struct {
	mu    sync.Mutex
	items map[string]*item // key: message UUID string
	now   func() time.Time

	// OnRetry, if set, is invoked after each packet successfully broadcast
	// by a retry pass, with its new attempt count. It must not block.
	OnRetry func(messageUUID string, attempt int)

	// OnExpired, if set, is invoked once per packet dropped for age or
	// attempt exhaustion. It must not block.
	OnExpired func(messageUUID string)
}

// New creates an empty store-and-forward queue.
func New() *Queue {
	return &Queue{
		items: make(map[string]*item),
		now:   time.Now,
	}
}

// Put enqueues a packet originated with no reachable peer, or a packet
// whose broadcast should be retried regardless. Re-putting an already
// queued message UUID resets neither its attempts nor its age.
func (q *Queue) Put(p protocol.Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := p.MessageUUID.String()
	if _, exists := q.items[key]; exists {
		return
	}
	q.items[key] = &item{packet: p}
}

// Len returns the count of currently queued packets.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// retryOnce scans all queued packets once: expiring those past MaxAge or
// MaxAttempts, and broadcasting + incrementing the attempt counter for the
// rest, provided at least one peer is reachable.
func (q *Queue) retryOnce(b Broadcaster) {
	q.mu.Lock()
	now := q.now()
	var toSend []*item
	var expired []string
	for key, it := range q.items {
		age := now.Sub(time.Unix(int64(it.packet.Timestamp), 0))
		if age > MaxAge || it.attempts >= MaxAttempts {
			delete(q.items, key)
			expired = append(expired, key)
			continue
		}
		toSend = append(toSend, it)
	}
	q.mu.Unlock()

	if q.OnExpired != nil {
		for _, key := range expired {
			q.OnExpired(key)
		}
	}

	if len(toSend) == 0 || b.PeerCount() == 0 {
		return
	}

	for _, it := range toSend {
		raw, err := protocol.Serialize(it.packet)
		if err != nil {
			// Malformed entry; nothing retrying it would accomplish.
			key := it.packet.MessageUUID.String()
			q.mu.Lock()
			delete(q.items, key)
			q.mu.Unlock()
			if q.OnExpired != nil {
				q.OnExpired(key)
			}
			continue
		}

		b.Broadcast(raw)

		q.mu.Lock()
		it.attempts++
		attempts := it.attempts
		q.mu.Unlock()

		if q.OnRetry != nil {
			q.OnRetry(it.packet.MessageUUID.String(), attempts)
		}
	}
}

// RetryNow immediately performs one retry pass, the same work the
// background worker does on its ticker. Exported so callers (tests, or an
// administrative "flush now" control) can force a pass without waiting for
// RetryInterval to elapse.
func (q *Queue) RetryNow(b Broadcaster) {
	q.retryOnce(b)
}

// StartRetryWorker launches the background retry goroutine. It wakes every
// RetryInterval and calls retryOnce, until stop is closed.
func (q *Queue) StartRetryWorker(b Broadcaster, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(RetryInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				q.retryOnce(b)
			case <-stop:
				return
			}
		}
	}()
}
