// Package transport implements the streaming backend client: one
// cancellable POST per turn, yielding a typed event sequence parsed from
// the server-sent event stream.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"grumpstudio/internal/domain"
	"grumpstudio/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// abortHandle cancels the request context backing one turn's stream.
type abortHandle struct {
	once   sync.Once
	cancel context.CancelFunc
}

// Cancel implements domain.AbortHandle. Idempotent.
func (a *abortHandle) Cancel() {
	a.once.Do(a.cancel)
}

// HTTP is the streaming backend transport. The connection attempt runs
// through a circuit breaker so repeated backend failures fail fast instead
// of piling up retries; stream errors after the connection is established
// do not trip the breaker.
type HTTP struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *slog.Logger
}

// New creates the HTTP transport.
func New(cfg config.BackendConfig, brCfg config.BreakerConfig, logger *slog.Logger) *HTTP {
	maxFailures := brCfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := brCfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := brCfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "backend:" + cfg.BaseURL,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	connTimeout := cfg.ConnTimeout
	if connTimeout == 0 {
		connTimeout = 30 * time.Second
	}

	return &HTTP{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		// No client-enforced overall timeout: a turn stream runs until
		// completion, error or abort. Only dialing is bounded.
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: connTimeout,
				ForceAttemptHTTP2:     true,
			},
		},
		breaker: cb,
		logger:  logger,
	}
}

// StartTurn implements domain.Transport.
func (t *HTTP) StartTurn(ctx context.Context, outgoing []domain.Message, opts domain.TurnOptions) (<-chan domain.StreamEvent, domain.AbortHandle, error) {
	body, err := json.Marshal(buildRequest(outgoing, opts))
	if err != nil {
		return nil, nil, domain.WrapOp("Transport.StartTurn", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	handle := &abortHandle{cancel: cancel}

	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, t.baseURL+"/v1/chat/stream", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			defer resp.Body.Close()
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, statusError(resp.StatusCode, string(detail))
		}
		return resp, nil
	})
	if err != nil {
		handle.Cancel()
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, nil, domain.NewDomainError("Transport.StartTurn", domain.ErrOverloaded, "circuit open")
		}
		return nil, nil, domain.WrapOp("Transport.StartTurn", err)
	}

	t.logger.Debug("turn stream opened", "mode", string(opts.Mode), "messages", len(outgoing))
	return parseSSEStream(streamCtx, resp.Body), handle, nil
}

// statusError maps a non-2xx response to a domain sentinel where one fits.
func statusError(code int, body string) error {
	detail := strings.TrimSpace(body)
	switch {
	case code == http.StatusTooManyRequests:
		return domain.NewDomainError("Transport.StartTurn", domain.ErrRateLimit, detail)
	case code == http.StatusServiceUnavailable || code == http.StatusBadGateway:
		return domain.NewDomainError("Transport.StartTurn", domain.ErrOverloaded, detail)
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		return domain.NewDomainError("Transport.StartTurn", domain.ErrTimeout, detail)
	default:
		return domain.NewDomainError("Transport.StartTurn", domain.ErrTransport,
			fmt.Sprintf("HTTP %d: %s", code, detail))
	}
}

var _ domain.Transport = (*HTTP)(nil)
