package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type ClientConfig struct {
	URL     string
	Key     string
	Timeout time.Duration
	Proxies TrustedProxies
}

// Client asks a remote decision service. It never defaults to allow: transport
// errors, non-200 replies, ERROR conclusions and an open breaker all surface
// as ErrUnavailable.
type Client struct {
	url     string
	key     string
	proxies TrustedProxies
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

type protectRequest struct {
	Cost    int     `json:"cost"`
	Request Details `json:"request"`
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	c := &Client{
		url:     cfg.URL,
		key:     cfg.Key,
		proxies: cfg.Proxies,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "decision-service",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

func (c *Client) Protect(ctx context.Context, r *http.Request, cost int) (Decision, error) {
	payload := protectRequest{Cost: cost, Request: DetailsFromRequest(r, c.proxies)}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(ctx, payload)
	})
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res.(Decision), nil
}

func (c *Client) call(ctx context.Context, payload protectRequest) (Decision, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Decision{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Decision{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return Decision{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Decision{}, fmt.Errorf("decision service replied %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var dec Decision
	if err := json.NewDecoder(resp.Body).Decode(&dec); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	switch dec.Conclusion {
	case Allow, Deny:
		return dec, nil
	default:
		return Decision{}, fmt.Errorf("decision %s concluded %q", dec.ID, dec.Conclusion)
	}
}
