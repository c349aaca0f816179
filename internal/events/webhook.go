package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/resilience"
)

// Doer sends an HTTP request under the caller's context.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// WebhookNotifier posts events to a single HTTP endpoint. Each request
// carries an HMAC signature so receivers can authenticate it.
type WebhookNotifier struct {
	URL    string
	Secret string
	Topics map[string]bool
	Client Doer
	Now    func() time.Time
}

// NewWebhookNotifier builds a notifier delivering through a retrying client
// guarded by a circuit breaker. An empty topics list subscribes to all topics.
func NewWebhookNotifier(rawURL, secret string, timeout time.Duration, attempts int, topics []string) (*WebhookNotifier, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	n := &WebhookNotifier{
		URL:    rawURL,
		Secret: secret,
		Client: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker("webhook", 5, 0.5, 30*time.Second),
			MaxAttempts: attempts,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     timeout,
		},
	}
	if len(topics) > 0 {
		n.Topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			n.Topics[t] = true
		}
	}
	return n, nil
}

type webhookBody struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload"`
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, ev db.DomainEvent) error {
	if n == nil || n.Client == nil {
		return nil
	}
	if n.Topics != nil && !n.Topics[ev.Topic] {
		return nil
	}
	payload := json.RawMessage(ev.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	body, err := json.Marshal(webhookBody{
		ID:          ev.ID.String(),
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID.String(),
		OccurredAt:  ev.OccurredAt,
		Payload:     payload,
	})
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	ts := n.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "storefront-webhooks/1.0")
	req.Header.Set("X-Event-ID", ev.ID.String())
	req.Header.Set("X-Event-Topic", ev.Topic)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", Sign(n.Secret, ts, ev.ID.String(), body))

	resp, err := n.Client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", ev.Topic, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver %s: endpoint returned %d", ev.Topic, resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// Sign computes HMAC-SHA256 over "<ts>.<eventID>.<body>" as lowercase hex.
func Sign(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		if host := parsed.Hostname(); host == "localhost" || host == "127.0.0.1" {
			return nil
		}
		return errors.New("http webhook only allowed for localhost")
	default:
		return errors.New("webhook url must be http or https")
	}
}
