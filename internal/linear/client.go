package linear

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultAPIURL is the Linear GraphQL endpoint.
	DefaultAPIURL = "https://api.linear.app/graphql"
	// DefaultTimeout bounds each outbound call.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 10 << 20
)

// Observer receives one notification per outbound call.
type Observer interface {
	ObserveLinearRequest(operation, outcome string, duration time.Duration)
}

// Config contains the client configuration.
type Config struct {
	APIURL    string
	APIKey    string
	UserAgent string
	Timeout   time.Duration

	// HTTPClient is reused for every call. Defaults to a client with
	// connection reuse and no client-level timeout; each call is bounded by
	// Timeout through its context instead.
	HTTPClient *http.Client
	Observer   Observer
}

// Client talks to the Linear GraphQL API. It is safe for concurrent use and
// never retries a call.
type Client struct {
	apiURL     string
	apiKey     string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	observer   Observer
	logger     zerolog.Logger
}

// NewClient creates a Linear API client.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("linear: API key is required")
	}
	c := &Client{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		observer:   cfg.Observer,
		logger:     logger.With().Str("component", "linear_client").Logger(),
	}
	if c.apiURL == "" {
		c.apiURL = DefaultAPIURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.userAgent == "" {
		c.userAgent = "linear-mcp"
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	return c, nil
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName"`
}

type graphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

func (e graphQLError) describe() string {
	if code, ok := e.Extensions["code"].(string); ok && code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, code)
	}
	return e.Message
}

// do executes one GraphQL operation and decodes its data into out.
func (c *Client) do(ctx context.Context, operation, query string, variables map[string]any, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestID := uuid.NewString()
	start := time.Now()
	defer func() {
		duration := time.Since(start)
		outcome := "success"
		if err != nil {
			outcome = string(KindOf(err))
			c.logger.Warn().
				Err(err).
				Str("operation", operation).
				Str("request_id", requestID).
				Str("kind", outcome).
				Dur("duration", duration).
				Msg("Linear API call failed")
		} else {
			c.logger.Debug().
				Str("operation", operation).
				Str("request_id", requestID).
				Dur("duration", duration).
				Msg("Linear API call completed")
		}
		if c.observer != nil {
			c.observer.ObserveLinearRequest(operation, outcome, duration)
		}
	}()

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables, OperationName: operation})
	if err != nil {
		return &Error{Kind: KindInvalidArgument, Message: "could not encode request variables", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return &Error{Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(ctx, operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransport(ctx, operation, err)
	}

	var envelope graphQLResponse
	decodeErr := json.Unmarshal(body, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("%s: Linear API returned status %d", operation, resp.StatusCode)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			msg += " (credential rejected)"
		case http.StatusTooManyRequests:
			msg += " (rate limited)"
		}
		if decodeErr == nil && len(envelope.Errors) > 0 {
			msg += ": " + envelope.Errors[0].describe()
		}
		return NewRemoteError(msg, nil)
	}
	if decodeErr != nil {
		return NewRemoteError(fmt.Sprintf("%s: could not decode response", operation), decodeErr)
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			messages = append(messages, e.describe())
		}
		return NewRemoteError(fmt.Sprintf("%s: %s", operation, strings.Join(messages, "; ")), nil)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return NewRemoteError(fmt.Sprintf("%s: response has no data", operation), nil)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return NewRemoteError(fmt.Sprintf("%s: unexpected response shape", operation), err)
	}
	return nil
}
