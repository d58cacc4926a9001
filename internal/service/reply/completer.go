package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zhouzirui/chat-widget/backend/internal/model/widget"
)

const maxReplyBytes = 1 << 20

var ErrEmptyReply = errors.New("remote reply has no message")

// Request is what the widget forwards to a remote reply service.
type Request struct {
	UserInput string          `json:"userInput"`
	ClientID  widget.ClientID `json:"ID_chatbot_client"`

	// WidgetName is used by model-backed completers and never sent on the wire.
	WidgetName string `json:"-"`
}

// Completer produces a reply for free text that matched no canned suggestion.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// HTTPCompleter posts the user text to a fixed endpoint and reads back
// {"message": "..."}.
type HTTPCompleter struct {
	url        string
	httpClient *http.Client
}

// NewHTTPCompleter creates a completer for url. A zero timeout leaves the
// bound to the caller's context.
func NewHTTPCompleter(url string, timeout time.Duration) *HTTPCompleter {
	return &HTTPCompleter{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type remoteResponse struct {
	Message *string `json:"message"`
}

// Complete implements Completer.
func (c *HTTPCompleter) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("reply endpoint returned %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed remoteResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if parsed.Message == nil || strings.TrimSpace(*parsed.Message) == "" {
		return "", ErrEmptyReply
	}
	return *parsed.Message, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
