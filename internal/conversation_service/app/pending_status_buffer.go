package app

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

// pendingEntry holds the status callbacks received for a provider id that
// was not in any session yet.
type pendingEntry struct {
	updates   []domain.StatusUpdate
	firstSeen time.Time
	attempts  int
	element   *list.Element
}

// PendingStatusBuffer parks status callbacks that raced ahead of the message
// they refer to. It is bounded by size (oldest evicted first), by age and by
// the number of retry attempts.
type PendingStatusBuffer struct {
	mu          sync.Mutex
	entries     map[string]*pendingEntry
	order       *list.List // provider ids, oldest at front
	ttl         time.Duration
	maxSize     int
	maxAttempts int
	now         func() time.Time
}

// NewPendingStatusBuffer creates a buffer. A maxSize of zero disables parking.
func NewPendingStatusBuffer(ttl time.Duration, maxSize, maxAttempts int, now func() time.Time) *PendingStatusBuffer {
	return &PendingStatusBuffer{
		entries:     make(map[string]*pendingEntry),
		order:       list.New(),
		ttl:         ttl,
		maxSize:     maxSize,
		maxAttempts: maxAttempts,
		now:         now,
	}
}

// Park stores u. It returns false when parking is disabled.
func (b *PendingStatusBuffer) Park(u domain.StatusUpdate) bool {
	if b == nil || b.maxSize <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.entries[u.ProviderMessageID]; ok {
		e.updates = append(e.updates, u)
		return true
	}
	if len(b.entries) >= b.maxSize {
		b.evictOldestLocked()
	}
	e := &pendingEntry{updates: []domain.StatusUpdate{u}, firstSeen: b.now()}
	e.element = b.order.PushBack(u.ProviderMessageID)
	b.entries[u.ProviderMessageID] = e
	pendingStatusGauge.Set(float64(len(b.entries)))
	return true
}

// takenStatuses is what Take hands back for one provider id.
type takenStatuses struct {
	updates   []domain.StatusUpdate
	attempts  int
	firstSeen time.Time
}

// Take removes and returns the updates parked for providerID, ordered so
// that forward transitions are applied in rank order.
func (b *PendingStatusBuffer) Take(providerID string) (takenStatuses, bool) {
	if b == nil {
		return takenStatuses{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[providerID]
	if !ok {
		return takenStatuses{}, false
	}
	b.removeLocked(providerID, e)
	updates := append([]domain.StatusUpdate(nil), e.updates...)
	sort.SliceStable(updates, func(i, j int) bool {
		return updates[i].Status.Rank() < updates[j].Status.Rank()
	})
	return takenStatuses{updates: updates, attempts: e.attempts, firstSeen: e.firstSeen}, true
}

// Restore puts taken updates back after a retry that still found no
// target. It returns false, dropping them, once the entry is out of attempts
// or too old.
func (b *PendingStatusBuffer) Restore(providerID string, t takenStatuses) bool {
	if b == nil {
		return false
	}
	attempts := t.attempts + 1
	if attempts >= b.maxAttempts || b.now().Sub(t.firstSeen) >= b.ttl {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.entries[providerID]; ok {
		// A new callback arrived while retrying; merge into it.
		existing.updates = append(existing.updates, t.updates...)
		if attempts > existing.attempts {
			existing.attempts = attempts
		}
		if t.firstSeen.Before(existing.firstSeen) {
			existing.firstSeen = t.firstSeen
		}
		return true
	}
	e := &pendingEntry{updates: t.updates, firstSeen: t.firstSeen, attempts: attempts}
	e.element = b.order.PushBack(providerID)
	b.entries[providerID] = e
	pendingStatusGauge.Set(float64(len(b.entries)))
	return true
}

// Expire drops entries older than the TTL and returns the remaining ids,
// oldest first, along with the number dropped.
func (b *PendingStatusBuffer) Expire() (live []string, expired int) {
	if b == nil {
		return nil, 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for el := b.order.Front(); el != nil; {
		next := el.Next()
		id, _ := el.Value.(string)
		e := b.entries[id]
		if now.Sub(e.firstSeen) >= b.ttl {
			b.removeLocked(id, e)
			expired++
		} else {
			live = append(live, id)
		}
		el = next
	}
	return live, expired
}

// Len returns the number of parked provider ids.
func (b *PendingStatusBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *PendingStatusBuffer) evictOldestLocked() {
	front := b.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	b.removeLocked(id, b.entries[id])
	pendingStatusCounter.WithLabelValues("evicted").Inc()
}

func (b *PendingStatusBuffer) removeLocked(id string, e *pendingEntry) {
	if e != nil && e.element != nil {
		b.order.Remove(e.element)
	}
	delete(b.entries, id)
	pendingStatusGauge.Set(float64(len(b.entries)))
}
