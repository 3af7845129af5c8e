package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) Send(ctx context.Context, message *messaging.Message) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFCMSender_Send(t *testing.T) {
	client := new(MockMessageSender)
	sender := newFCMSender(client, testLogger())
	ctx := context.Background()

	n := domain.PushNotification{
		Token: "device-token",
		Title: "Amina",
		Body:  "Hi",
		Data:  map[string]string{"type": "chat", "sessionId": "s1", "customerContact": "254700111222"},
	}

	client.On("Send", ctx, mock.MatchedBy(func(msg *messaging.Message) bool {
		return msg.Token == "device-token" &&
			msg.Notification != nil &&
			msg.Notification.Title == "Amina" &&
			msg.Notification.Body == "Hi" &&
			msg.Data["type"] == "chat"
	})).Return("projects/p/messages/1", nil).Once()

	require.NoError(t, sender.Send(ctx, n))
	client.AssertExpectations(t)
}

func TestFCMSender_SendError(t *testing.T) {
	client := new(MockMessageSender)
	sender := newFCMSender(client, testLogger())
	ctx := context.Background()

	client.On("Send", ctx, mock.Anything).Return("", errors.New("quota exceeded")).Once()

	err := sender.Send(ctx, domain.PushNotification{Token: "t", Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestFCMSender_RequiresToken(t *testing.T) {
	client := new(MockMessageSender)
	sender := newFCMSender(client, testLogger())

	assert.Error(t, sender.Send(context.Background(), domain.PushNotification{Title: "x"}))
	client.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestLogSender_AlwaysSucceeds(t *testing.T) {
	sender := NewLogSender(testLogger())
	assert.NoError(t, sender.Send(context.Background(), domain.PushNotification{Title: "x"}))
}
