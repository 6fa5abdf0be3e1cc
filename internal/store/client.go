package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spokehq/gearvault/internal/limiter"
	"github.com/spokehq/gearvault/internal/models"
)

// Client talks to the hosted GraphQL data store over HTTPS using the admin
// secret. Every request flows through the sliding-window wrapper so the
// process stays under the store's request quota; quota rejections from the
// store itself are tagged models.ErrStoreRateLimited at this call site so
// the wrapper can branch on the error kind instead of matching strings.
type Client struct {
	endpoint    string
	adminSecret string
	httpClient  *http.Client
	wrapper     *limiter.RequestWrapper
	logger      *slog.Logger
}

// Config holds data store client settings
type Config struct {
	Endpoint       string
	AdminSecret    string
	RequestTimeout time.Duration
}

// NewClient creates a data store client
func NewClient(cfg Config, wrapper *limiter.RequestWrapper, logger *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		adminSecret: cfg.AdminSecret,
		httpClient:  &http.Client{Timeout: timeout},
		wrapper:     wrapper,
		logger:      logger,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// Execute runs a GraphQL operation under the rate limit and decodes the data
// payload into out (which may be nil for fire-and-forget mutations).
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, out any) error {
	return c.wrapper.Do(ctx, func(ctx context.Context) error {
		return c.execute(ctx, query, variables, out)
	})
}

func (c *Client) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-hasura-admin-secret", c.adminSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("data store request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.ErrStoreRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("data store returned non-200",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(payload)))
		return fmt.Errorf("data store returned status %d", resp.StatusCode)
	}

	var gqlResp graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return fmt.Errorf("failed to decode data store response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		for _, gerr := range gqlResp.Errors {
			if gerr.Extensions.Code == "rate-limited" {
				return models.ErrStoreRateLimited
			}
		}
		c.logger.Error("data store returned errors",
			slog.String("code", gqlResp.Errors[0].Extensions.Code),
			slog.String("message", gqlResp.Errors[0].Message))
		return fmt.Errorf("data store error: %s", gqlResp.Errors[0].Message)
	}

	if out != nil {
		if err := json.Unmarshal(gqlResp.Data, out); err != nil {
			return fmt.Errorf("failed to decode data payload: %w", err)
		}
	}
	return nil
}
