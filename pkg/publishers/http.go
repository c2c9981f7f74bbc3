package publishers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/gotrue-go/pkg/httpclient"
)

const maxSnippet = 512

// httpPublisher posts events as JSON to a webhook.
type httpPublisher struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  httpclient.Client
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	return newWebhook(cfg.ID, *cfg.HTTP, httpclient.NewRestyClient(timeout), log), nil
}

func newWebhook(id string, cfg HTTPPublisherConfig, client httpclient.Client, log Logger) *httpPublisher {
	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	headers["Content-Type"] = "application/json"

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	return &httpPublisher{
		id:      id,
		method:  method,
		url:     cfg.URL,
		headers: headers,
		client:  client,
		log:     ensureLogger(log),
	}
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return TypeHTTP }

// Publish sends evt and treats any non-2xx status as a failure.
func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	headers := make(map[string]string, len(h.headers)+1)
	for k, v := range h.headers {
		headers[k] = v
	}
	headers["X-Event-Type"] = evt.Type

	resp, err := h.client.Do(ctx, httpclient.Request{
		Method:  h.method,
		URL:     h.url,
		Headers: headers,
		Body:    evt,
	})
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return fmt.Errorf("webhook status %d: %s", code, snippet(resp.Body()))
	}

	h.log.DebugObj("webhook delivered event", "publisher_http_delivery", map[string]any{
		"publisher_id": h.id,
		"event_type":   evt.Type,
		"status":       resp.StatusCode(),
	})
	return nil
}

func snippet(body []byte) string {
	if len(body) > maxSnippet {
		body = body[:maxSnippet]
	}
	return strings.TrimSpace(string(body))
}
