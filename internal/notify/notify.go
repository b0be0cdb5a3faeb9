// Package notify relays import results and reports to a chat webhook.
//
// Messages are posted as {"content": "..."} which Discord webhooks (and most
// compatible receivers) accept. Delivery is retried by the HTTP client and
// guarded by a circuit breaker so a dead webhook does not slow down imports.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/JonMunkholm/sleepimport/internal/metrics"
)

// MaxContentLength is the longest message Discord accepts.
const MaxContentLength = 2000

const breakerName = "notify-webhook"

// Result label values for metrics.NotificationsTotal.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Config holds webhook delivery settings. An empty WebhookURL disables
// delivery.
type Config struct {
	WebhookURL       string
	Timeout          time.Duration // per attempt (default: 10s)
	Retries          int           // extra attempts on network errors, 429 and 5xx
	RetryWait        time.Duration // initial backoff (default: 1s)
	FailureThreshold uint32        // consecutive failures that open the breaker (default: 5)
	OpenTimeout      time.Duration // time the breaker stays open (default: 1m)
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryWait <= 0 {
		c.RetryWait = time.Second
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = time.Minute
	}
	return c
}

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.StatusCode, e.Body)
}

type message struct {
	Content string `json:"content"`
}

// Notifier posts messages to the configured webhook. It is safe for
// concurrent use.
type Notifier struct {
	url    string
	client *resty.Client
	cb     *gobreaker.CircuitBreaker[struct{}]
}

// New builds a Notifier. With no WebhookURL every Send is a logged no-op.
func New(cfg Config) *Notifier {
	cfg = cfg.withDefaults()

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryWait * 8).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Notifier{url: cfg.WebhookURL, client: client, cb: cb}
}

// Enabled reports whether a webhook is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// Send posts content, truncated to MaxContentLength runes. It returns
// gobreaker.ErrOpenState without contacting the webhook while the breaker is
// open.
func (n *Notifier) Send(ctx context.Context, content string) error {
	if !n.Enabled() {
		slog.Debug("webhook not configured, skipping notification")
		metrics.RecordNotification(ResultSkipped)
		return nil
	}

	_, err := n.cb.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, Truncate(content, MaxContentLength))
	})
	if err != nil {
		metrics.RecordNotification(ResultFailed)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("notification not sent: %w", err)
		}
		return fmt.Errorf("send notification: %w", err)
	}

	metrics.RecordNotification(ResultSent)
	return nil
}

func (n *Notifier) post(ctx context.Context, content string) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(message{Content: content}).
		Post(n.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &StatusError{StatusCode: resp.StatusCode(), Body: Truncate(resp.String(), 200)}
	}
	return nil
}

// State returns the breaker state for health output.
func (n *Notifier) State() string {
	if !n.Enabled() {
		return "disabled"
	}
	return n.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Truncate shortens s to at most limit runes, marking the cut with an
// ellipsis.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
