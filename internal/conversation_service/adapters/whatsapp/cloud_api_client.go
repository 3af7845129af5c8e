package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

// SendMessageRequest is the payload for sending a text message.
type SendMessageRequest struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             TextContent `json:"text"`
}

// SendMessageResponse is the response from the send message API.
type SendMessageResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// GraphErrorResponse is the error body returned by the Graph API.
type GraphErrorResponse struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// CloudAPIClient sends messages through the WhatsApp Cloud API.
type CloudAPIClient struct {
	logger        *slog.Logger
	httpClient    *http.Client
	baseURL       string
	phoneNumberID string
	accessToken   string
}

// NewCloudAPIClient creates a client. A nil httpClient gets one with timeout.
func NewCloudAPIClient(logger *slog.Logger, baseURL, phoneNumberID, accessToken string, timeout time.Duration, httpClient *http.Client) *CloudAPIClient {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &CloudAPIClient{
		logger:        logger.With("provider", "whatsapp_cloud_api"),
		httpClient:    httpClient,
		baseURL:       strings.TrimRight(baseURL, "/"),
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
	}
}

// SendText sends msg and returns the provider message id.
func (c *CloudAPIClient) SendText(ctx context.Context, msg domain.OutboundText) (*domain.SendResult, error) {
	reqBytes, err := json.Marshal(SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               msg.To,
		Type:             domain.MessageTypeText,
		Text:             TextContent{Body: msg.Body},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to send request to Cloud API", "error", err, "to", msg.To)
		return nil, fmt.Errorf("failed to send request to Cloud API: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("Cloud API request failed (status %d), and failed to read response body: %w", httpResp.StatusCode, err)
	}
	c.logger.DebugContext(ctx, "Received response from Cloud API", "status_code", httpResp.StatusCode)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		errMsg := fmt.Sprintf("Cloud API error: status %d", httpResp.StatusCode)
		var graphErr GraphErrorResponse
		if json.Unmarshal(respBody, &graphErr) == nil && graphErr.Error.Message != "" {
			errMsg = fmt.Sprintf("Cloud API error: status %d, code %d, message: %s", httpResp.StatusCode, graphErr.Error.Code, graphErr.Error.Message)
		} else if len(respBody) > 0 && len(respBody) < 200 {
			errMsg = fmt.Sprintf("Cloud API error: status %d, raw_body: %s", httpResp.StatusCode, string(respBody))
		}
		c.logger.WarnContext(ctx, "Cloud API send failed", "status_code", httpResp.StatusCode, "error_message", errMsg)
		return nil, errors.New(errMsg)
	}

	var sendResp SendMessageResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		c.logger.WarnContext(ctx, "Sent via Cloud API, but failed to parse response body", "error", err)
		return &domain.SendResult{}, nil
	}
	result := &domain.SendResult{}
	if len(sendResp.Messages) > 0 {
		result.ProviderMessageID = sendResp.Messages[0].ID
	}
	c.logger.InfoContext(ctx, "Message sent via Cloud API", "provider_message_id", result.ProviderMessageID)
	return result, nil
}
