package domain

// OutboundText is a text message to send through the provider.
type OutboundText struct {
	To   string
	Body string
}

// SendResult is the provider's answer to a send. ProviderMessageID may be empty.
type SendResult struct {
	ProviderMessageID string
}

// PushNotification is handed to the push sender.
type PushNotification struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Push payload types.
const (
	PushTypeChat  = "chat"
	PushTypeOrder = "order"
)

// NewOrderTitle is the fixed title of order notifications.
const NewOrderTitle = "New Order Received"
