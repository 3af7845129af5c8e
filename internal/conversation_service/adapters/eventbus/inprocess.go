package eventbus

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 256

type subscription struct {
	id    string
	group string
	ch    chan []byte
}

// InProcessBus is an in-memory pub/sub used when the engine and the
// notification dispatcher run in one process. Subscribers sharing a queue
// group split the messages of a subject between them; subscribers without
// a group each get every message. Publishing never blocks: messages are
// dropped for subscribers whose buffer is full.
type InProcessBus struct {
	mu          sync.Mutex
	subscribers map[string]map[string]*subscription // subject -> subID -> sub
	next        map[string]int                      // subject/group -> round robin cursor
	logger      *slog.Logger
}

// NewInProcessBus creates a bus. Pass nil logger for default.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{
		subscribers: make(map[string]map[string]*subscription),
		next:        make(map[string]int),
		logger:      logger.With("component", "inprocess_bus"),
	}
}

// Publish hands data to the subscribers of subject.
func (b *InProcessBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	subs := b.subscribers[subject]
	if len(subs) == 0 {
		b.mu.Unlock()
		b.logger.DebugContext(ctx, "No subscribers for subject", "subject", subject)
		return nil
	}

	var targets []*subscription
	groups := make(map[string][]*subscription)
	for _, s := range subs {
		if s.group == "" {
			targets = append(targets, s)
			continue
		}
		groups[s.group] = append(groups[s.group], s)
	}
	for group, members := range groups {
		sort.Slice(members, func(i, j int) bool { return members[i].id < members[j].id })
		key := subject + "/" + group
		idx := b.next[key] % len(members)
		b.next[key] = idx + 1
		targets = append(targets, members[idx])
	}
	b.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- data:
		default:
			b.logger.WarnContext(ctx, "Dropped event for slow subscriber", "subject", subject, "sub_id", s.id)
		}
	}
	return nil
}

// Subscribe delivers messages on subject to handler until ctx is cancelled.
// Handlers of one subscription run sequentially.
func (b *InProcessBus) Subscribe(ctx context.Context, subject, queueGroup string, handler func(ctx context.Context, data []byte)) error {
	sub := &subscription{id: uuid.NewString(), group: queueGroup, ch: make(chan []byte, subscriberBufferSize)}

	b.mu.Lock()
	if _, ok := b.subscribers[subject]; !ok {
		b.subscribers[subject] = make(map[string]*subscription)
	}
	b.subscribers[subject][sub.id] = sub
	b.mu.Unlock()
	b.logger.DebugContext(ctx, "Subscriber added", "subject", subject, "queue_group", queueGroup, "sub_id", sub.id)

	defer b.unsubscribe(subject, sub.id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-sub.ch:
			handler(ctx, data)
		}
	}
}

// SubscriberCount returns the number of active subscriptions on subject.
func (b *InProcessBus) SubscriberCount(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[subject])
}

func (b *InProcessBus) unsubscribe(subject, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[subject]
	if !ok {
		return
	}
	delete(subs, subID)
	if len(subs) == 0 {
		delete(b.subscribers, subject)
	}
	b.logger.Debug("Subscriber removed", "subject", subject, "sub_id", subID)
}
