package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNATSClient struct {
	mock.Mock
}

func (m *MockNATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func (m *MockNATSClient) SubscribeToSubjectWithQueue(ctx context.Context, subject, queueGroup string, handler nats.MsgHandler) error {
	args := m.Called(ctx, subject, queueGroup, handler)
	if args.Error(0) == nil {
		handler(&nats.Msg{Subject: subject, Data: []byte(`{"ok":true}`)})
	}
	return args.Error(0)
}

func TestNATSBus_PublishDelegates(t *testing.T) {
	client := new(MockNATSClient)
	bus := NewNATSBus(client, testLogger())
	ctx := context.Background()

	client.On("Publish", ctx, "conversation.message.committed", []byte("data")).Return(nil).Once()
	require.NoError(t, bus.Publish(ctx, "conversation.message.committed", []byte("data")))

	client.On("Publish", ctx, "broken", []byte("data")).Return(errors.New("nats down")).Once()
	assert.Error(t, bus.Publish(ctx, "broken", []byte("data")))

	client.AssertExpectations(t)
}

func TestNATSBus_SubscribeHandsPayloadToHandler(t *testing.T) {
	client := new(MockNATSClient)
	bus := NewNATSBus(client, testLogger())
	ctx := context.Background()

	client.On("SubscribeToSubjectWithQueue", ctx, "subj", "group", mock.Anything).Return(nil).Once()

	var got []byte
	err := bus.Subscribe(ctx, "subj", "group", func(_ context.Context, data []byte) { got = data })
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))
	client.AssertExpectations(t)
}
