// Package seatgen calls the external seat-generation function that assigns
// students to seats for an exam session.
package seatgen

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

	"github.com/JonMunkholm/ExamSeat/internal/core"
	"github.com/JonMunkholm/ExamSeat/internal/logging"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 60 * time.Second

// maxResponseBytes caps how much of a reply is read.
const maxResponseBytes = 1 << 20

// ErrNoEndpoint is returned by New when no URL is configured.
var ErrNoEndpoint = errors.New("seatgen: endpoint URL is required")

// Client invokes the generator over HTTP. It satisfies core.SeatGenerator.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// New builds a client posting to endpoint. A nil httpClient gets one with
// DefaultTimeout.
func New(endpoint, apiKey string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, ErrNoEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{httpClient: httpClient, endpoint: endpoint, apiKey: apiKey}, nil
}

type generateRequest struct {
	ExamID         string `json:"exam_id"`
	AntiCheatLevel string `json:"anti_cheat_level"`
}

type generateResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Seats   int    `json:"seats"`
}

// Generate asks the generator to seat examID at the given strictness.
func (c *Client) Generate(ctx context.Context, examID string, level core.Strictness) (core.GenerateResult, error) {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(generateRequest{ExamID: examID, AntiCheatLevel: string(level)})
	if err != nil {
		return core.GenerateResult{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return core.GenerateResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("seat generator unreachable", "exam_id", examID, "error", err)
		return core.GenerateResult{}, fmt.Errorf("call seat generator: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return core.GenerateResult{}, fmt.Errorf("read seat generator reply: %w", err)
	}

	var out generateResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(out.Error)
		if msg == "" {
			msg = strings.TrimSpace(out.Message)
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		log.Error("seat generator failed",
			"exam_id", examID,
			"status", resp.StatusCode,
			"error", msg,
		)
		return core.GenerateResult{}, &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil && len(bytes.TrimSpace(raw)) > 0 {
		return core.GenerateResult{}, fmt.Errorf("decode seat generator reply: %w", decodeErr)
	}
	if out.Error != "" {
		return core.GenerateResult{}, &StatusError{Code: resp.StatusCode, Message: out.Error}
	}

	log.Info("seats generated",
		"exam_id", examID,
		"level", level,
		"seats", out.Seats,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return core.GenerateResult{Message: out.Message, Seats: out.Seats}, nil
}

// StatusError is a generator reply that reported failure.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("seat generator returned %d: %s", e.Code, e.Message)
}
