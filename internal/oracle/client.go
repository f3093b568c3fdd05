// Package oracle is the HTTP client for the classification oracle. The wire
// contract is fixed: a POST with the prompt as a single user message, a 200
// body of {"content":[{"text":"..."}]}, and non-200 statuses optionally
// carrying {"error":{"message":"..."}}. Status 529 means the service is
// overloaded and 429 means rate limited; both are retried on their own
// backoff schedules. Any other non-200 is a request error and fails fast.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contractscan/backend/internal/metrics"
	"github.com/contractscan/backend/pkg/circuitbreaker"
	"github.com/contractscan/backend/pkg/logger"
	"github.com/contractscan/backend/pkg/retry"
)

const (
	apiVersion       = "2023-06-01"
	statusOverloaded = 529
)

// StatusError is a non-200 response from the oracle.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("oracle returned HTTP %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("oracle returned HTTP %d", e.Code)
}

type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	MaxTokens  int
	TimeoutSec int
	MaxRetries int
	// Sleep overrides the backoff sleep; tests use it to record waits.
	Sleep func(time.Duration)
}

type Client struct {
	endpoint   string
	apiKey     string
	model      string
	maxTokens  int
	maxRetries int
	sleep      func(time.Duration)
	httpClient *http.Client
	cb         *circuitbreaker.Breaker
}

func NewClient(cfg Config) *Client {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 300
	}
	if cfg.TimeoutSec == 0 {
		cfg.TimeoutSec = 60
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	cb := circuitbreaker.New("oracle", circuitbreaker.Config{
		MaxRequests:      5,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	logger.Info("oracle client initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("model", cfg.Model),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		sleep:      cfg.Sleep,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		cb:         cb,
	}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the prompt and returns the oracle's text response. The
// retry policy is uniform per status class; exhausting retries returns an
// error carrying the attempt count and wrapping the last StatusError.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var result string
	attempts := 0

	retryCfg := retry.Config{
		MaxRetries: c.maxRetries,
		Classify:   classifyError,
		Sleep:      c.sleep,
		Logger:     logger.GetLogger(),
	}

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, retryCfg, func() error {
			attempts++
			text, err := c.send(ctx, prompt)
			if err != nil {
				return err
			}
			result = text
			return nil
		})
	})

	if attempts > 1 {
		class := "recovered"
		if err != nil {
			class = classifyError(err).String()
		}
		metrics.OracleRetries.WithLabelValues(class).Add(float64(attempts - 1))
	}

	if err != nil {
		metrics.OracleRequests.WithLabelValues("error").Inc()
		var se *StatusError
		if errors.As(err, &se) && classifyError(err) != retry.Permanent {
			return "", fmt.Errorf("oracle request failed after %d attempt(s) (last status %d): %w",
				attempts, se.Code, err)
		}
		return "", fmt.Errorf("oracle request failed after %d attempt(s): %w", attempts, err)
	}

	metrics.OracleRequests.WithLabelValues("success").Inc()
	return result, nil
}

func (c *Client) send(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(messageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		se := &StatusError{Code: resp.StatusCode}
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			se.Message = errResp.Error.Message
		}
		logger.Debug("oracle returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("message", se.Message),
		)
		return "", se
	}

	var msg messageResponse
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return "", fmt.Errorf("failed to decode oracle response: %w", err)
	}
	if len(msg.Content) == 0 {
		return "", fmt.Errorf("oracle response contained no content blocks")
	}

	return strings.TrimSpace(msg.Content[0].Text), nil
}

// classifyError sorts failures into retry classes: 529 backs off
// exponentially, 429 linearly, transport failures and timeouts get a fixed
// wait, and every other HTTP status fails immediately.
func classifyError(err error) retry.Class {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case statusOverloaded:
			return retry.Overloaded
		case http.StatusTooManyRequests:
			return retry.RateLimited
		default:
			return retry.Permanent
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Permanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return retry.Transient
	}

	// Connection resets and other transport-level failures.
	return retry.Transient
}
