package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const sendTimeout = 10 * time.Second

// HTTPSender delivers messages through the chat platform's HTTP API. The
// base URL points at the bot endpoint; each method maps to one API call.
type HTTPSender struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSender(baseURL string) *HTTPSender {
	return &HTTPSender{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   sendTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (s *HTTPSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	return s.post(ctx, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
}

func (s *HTTPSender) EditMessage(ctx context.Context, chatID int64, messageID int64, text string) error {
	return s.post(ctx, "editMessageText", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	})
}

func (s *HTTPSender) SendPhoto(ctx context.Context, chatID int64, photoRef, caption string) error {
	return s.post(ctx, "sendPhoto", map[string]interface{}{
		"chat_id": chatID,
		"photo":   photoRef,
		"caption": caption,
	})
}

func (s *HTTPSender) post(ctx context.Context, method string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}
	return nil
}
