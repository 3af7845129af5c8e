package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/adapters/eventbus"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testBusinessNumber = "254711000000"
	testCustomerNumber = "254700111222"
	testDeviceToken    = "vendor-device-token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeProvider answers sends with sequential provider ids, or err when set.
type fakeProvider struct {
	mu      sync.Mutex
	sent    []domain.OutboundText
	err     error
	emptyID bool
	fixedID string
	seq     int
}

func (p *fakeProvider) SendText(_ context.Context, msg domain.OutboundText) (*domain.SendResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.sent = append(p.sent, msg)
	if p.emptyID {
		return &domain.SendResult{}, nil
	}
	if p.fixedID != "" {
		return &domain.SendResult{ProviderMessageID: p.fixedID}, nil
	}
	p.seq++
	return &domain.SendResult{ProviderMessageID: fmt.Sprintf("wamid.out.%d", p.seq)}, nil
}

func (p *fakeProvider) Sent() []domain.OutboundText {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OutboundText(nil), p.sent...)
}

// recordingPush records delivered notifications.
type recordingPush struct {
	mu   sync.Mutex
	sent []domain.PushNotification
	err  error
}

func (p *recordingPush) Send(_ context.Context, n domain.PushNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, n)
	return nil
}

func (p *recordingPush) Sent() []domain.PushNotification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PushNotification(nil), p.sent...)
}

// recordingPublisher keeps every published payload per subject.
type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][][]byte
	err    error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(map[string][][]byte)}
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events[subject] = append(p.events[subject], data)
	return nil
}

func (p *recordingPublisher) Count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[subject])
}

var errProviderDown = errors.New("provider down")

type testEnv struct {
	store    *memory.Store
	engine   *Engine
	provider *fakeProvider
	push     *recordingPush
	events   *recordingPublisher
	clock    *fakeClock
	vendor   domain.Vendor
	business domain.Business
}

func newTestEnv(t *testing.T, policy Policy) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    memory.NewStore(),
		provider: &fakeProvider{},
		push:     &recordingPush{},
		events:   newRecordingPublisher(),
		clock:    newFakeClock(),
	}
	env.vendor = domain.Vendor{ID: uuid.New(), Name: "Mama Mboga", DeviceToken: testDeviceToken}
	env.business = domain.Business{ID: uuid.New(), Name: "Mboga Express", PhoneNumber: testBusinessNumber, VendorID: env.vendor.ID}
	env.store.PutVendor(env.vendor)
	env.store.PutBusiness(env.business)

	env.engine = NewEngine(Dependencies{
		Businesses: env.store.Businesses(),
		Customers:  env.store.Customers(),
		Vendors:    env.store.Vendors(),
		Sessions:   env.store.Sessions(),
		Orders:     env.store.Orders(),
		Provider:   env.provider,
		Events:     env.events,
		Logger:     testLogger(),
		Now:        env.clock.Now,
	}, policy)
	return env
}

func (e *testEnv) dispatcher() *NotificationDispatcher {
	return NewNotificationDispatcher(e.store.Businesses(), e.store.Vendors(), e.store.Customers(), e.push, testLogger())
}

// withBus replaces the recording publisher with an in-process bus and starts
// a notification consumer on it.
func (e *testEnv) withBus(t *testing.T, policy Policy) {
	t.Helper()
	bus := eventbus.NewInProcessBus(testLogger())
	e.engine = NewEngine(Dependencies{
		Businesses: e.store.Businesses(),
		Customers:  e.store.Customers(),
		Vendors:    e.store.Vendors(),
		Sessions:   e.store.Sessions(),
		Orders:     e.store.Orders(),
		Provider:   e.provider,
		Events:     bus,
		Logger:     testLogger(),
		Now:        e.clock.Now,
	}, policy)

	ctx, cancel := context.WithCancel(context.Background())
	consumer := NewNotificationConsumer(bus, e.dispatcher(), testLogger())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.StartConsuming(ctx, NotificationQueueGroup)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(domain.SubjectMessageCommitted) == 1 &&
			bus.SubscriberCount(domain.SubjectOrderCreated) == 1
	}, time.Second, 5*time.Millisecond)
}

func inboundMessage(id, text string) domain.InboundMessage {
	return domain.InboundMessage{
		RecipientNumber:   testBusinessNumber,
		SenderContact:     testCustomerNumber,
		SenderDisplayName: "Amina",
		Text:              text,
		ProviderMessageID: id,
		Timestamp:         time.Unix(1700000000, 0).UTC(),
	}
}

func (e *testEnv) onlySession(t *testing.T) *domain.Session {
	t.Helper()
	require.Equal(t, 1, e.store.SessionCount())
	customer, err := e.store.Customers().FindByContactNumber(context.Background(), testCustomerNumber)
	require.NoError(t, err)
	s, err := e.store.Sessions().FindByParticipants(context.Background(), e.business.ID, customer.ID)
	require.NoError(t, err)
	full, err := e.store.Sessions().GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	return full
}
