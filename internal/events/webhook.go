package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/recordkit/recordkit/internal/retry"
)

// WebhookConfig tunes the outbound delivery pipeline.
type WebhookConfig struct {
	URL             string
	Timeout         time.Duration
	MaxFailures     int           // consecutive failures before the breaker opens
	BreakerCooldown time.Duration // how long the breaker stays open
	RequestsPerSec  float64       // 0 disables rate limiting
	Burst           int
	Retry           *retry.Config
}

// WebhookPublisher POSTs events as JSON to a single sink URL. Requests pass
// through a circuit breaker, a rate limiter and a bounded retry loop, in that
// order, so a dead sink degrades to fast local failures instead of a pile of
// blocked workers.
type WebhookPublisher struct {
	url      string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[struct{}]
	limiter  *rate.Limiter
	retryCfg *retry.Config
	logger   *slog.Logger
}

// NewWebhookPublisher creates a publisher for cfg.URL.
func NewWebhookPublisher(cfg WebhookConfig, logger *slog.Logger) *WebhookPublisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "webhook-sink",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	return &WebhookPublisher{
		url:      cfg.URL,
		client:   &http.Client{Timeout: timeout},
		breaker:  breaker,
		limiter:  limiter,
		retryCfg: cfg.Retry,
		logger:   logger,
	}
}

// Publish delivers one event. It returns an error when the sink rejected the
// event, the retry budget ran out, or the breaker is open.
func (p *WebhookPublisher) Publish(ctx context.Context, e *Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, p.deliver(ctx, e, body)
	})
	if err != nil {
		p.logger.Warn("event delivery failed",
			slog.String("event_id", e.ID),
			slog.String("type", e.Type),
			slog.Any("error", err),
		)
		return fmt.Errorf("publish event %s: %w", e.ID, err)
	}

	p.logger.Debug("event delivered",
		slog.String("event_id", e.ID),
		slog.String("type", e.Type),
	)
	return nil
}

// deliver POSTs the payload, retrying 429s and 5xx responses. A non-retryable
// 4xx stops the loop immediately and is reported as a permanent failure.
func (p *WebhookPublisher) deliver(ctx context.Context, e *Event, body []byte) error {
	var permanent error
	err := retry.Do(ctx, p.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
		if err != nil {
			permanent = err
			return nil
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Id", e.ID)

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		// Drain so the connection can be reused across attempts.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("sink returned %d", resp.StatusCode)
		case resp.StatusCode >= http.StatusBadRequest:
			permanent = fmt.Errorf("sink rejected event: %d", resp.StatusCode)
			return nil
		}
		return nil
	})
	if err != nil {
		return err
	}
	return permanent
}
