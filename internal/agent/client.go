package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// Options configures the story agent client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the story agent's /agent/execute endpoint.
// One Execute call is one attempt; retry policy lives in Invoker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type executeRequest struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
}

type executeResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
// Generation is slow, so the default per-attempt timeout is minutes-scale.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Execute performs a single agent call and returns the payload on success.
// Failures come back as *Error so callers can classify them.
func (c *Client) Execute(ctx context.Context, action string, parameters map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(executeRequest{Action: action, Parameters: parameters})
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agent/execute", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, &Error{
				Kind:    KindConnectionRefused,
				Message: fmt.Sprintf("connection refused to %s; check AGENT_SERVICE_URL", c.baseURL),
			}
		}
		return nil, &Error{Kind: KindUnknown, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := readErrorBody(resp.Body)
		if msg == "" {
			msg = fmt.Sprintf("agent status %d", resp.StatusCode)
		}
		kind := KindRemoteError
		if isClientFault(resp.StatusCode) {
			kind = KindInvalidRequest
		}
		return nil, &Error{Kind: kind, Message: msg}
	}

	var parsed executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Kind: KindRemoteError, Message: fmt.Sprintf("decode agent response: %v", err)}
	}
	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "agent reported failure without detail"
		}
		return nil, &Error{Kind: KindRemoteError, Message: msg}
	}

	c.logger.Debug().
		Str("action", action).
		Dur("duration", time.Since(start)).
		Msg("agent: call succeeded")

	return parsed.Data, nil
}

// isClientFault reports whether the status indicates a request the agent will
// always reject. 408 and 429 are transient despite being 4xx.
func isClientFault(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}

func isConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

func readErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 8<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var parsed errorResponse
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error != "" {
		if parsed.Details != "" {
			return parsed.Error + ": " + parsed.Details
		}
		return parsed.Error
	}
	return strings.TrimSpace(string(data))
}
