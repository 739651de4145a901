package shopify

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultAPIVersion is the Admin API version requests are pinned to
const DefaultAPIVersion = "2024-01"

// ErrNoAccessToken is returned when no token is configured for a shop
var ErrNoAccessToken = errors.New("no access token for shop")

// Config holds Admin API client settings
type Config struct {
	APIVersion         string
	DefaultAccessToken string
	ShopTokens         map[string]string
	// BaseURL replaces https://{shop} when set
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client calls the Shopify Admin GraphQL API
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a new Admin API client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// GraphQLError is a top-level error from the GraphQL endpoint
type GraphQLError struct {
	Message string `json:"message"`
}

// UserError is a validation error reported by a mutation
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UserErrors is returned when a mutation reports userErrors
type UserErrors struct {
	Mutation string
	Errors   []UserError
}

func (e *UserErrors) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		if len(ue.Field) > 0 {
			msgs = append(msgs, strings.Join(ue.Field, ".")+": "+ue.Message)
		} else {
			msgs = append(msgs, ue.Message)
		}
	}
	return fmt.Sprintf("%s rejected: %s", e.Mutation, strings.Join(msgs, "; "))
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

func (c *Client) token(shop string) (string, error) {
	if t, ok := c.cfg.ShopTokens[shop]; ok && t != "" {
		return t, nil
	}
	if c.cfg.DefaultAccessToken != "" {
		return c.cfg.DefaultAccessToken, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoAccessToken, shop)
}

func (c *Client) endpoint(shop string) string {
	base := c.cfg.BaseURL
	if base == "" {
		domain := shop
		if !strings.Contains(domain, ".") {
			domain += ".myshopify.com"
		}
		base = "https://" + domain
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", strings.TrimRight(base, "/"), c.cfg.APIVersion)
}

// Do executes a GraphQL document for shop and decodes data into out
func (c *Client) Do(ctx context.Context, shop, query string, variables map[string]interface{}, out interface{}) error {
	token, err := c.token(shop)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(shop), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Shopify request failed", zap.String("shop", shop), zap.Error(err))
		return fmt.Errorf("shopify request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Shopify request completed",
		zap.String("shop", shop),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("shopify returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var gr graphQLResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
	}

	if out != nil {
		if err := json.Unmarshal(gr.Data, out); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
	}
	return nil
}

// GID returns id as a Shopify global id of the given type. Ids that are
// already global are returned unchanged.
func GID(kind, id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return fmt.Sprintf("gid://shopify/%s/%s", kind, id)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
