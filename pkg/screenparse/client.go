// Package screenparse calls an external screen-parsing service that turns
// screenshots into structured UI element descriptions.
package screenparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 60 * time.Second

// Element is one UI element recognized on a screenshot.
type Element struct {
	Label       string  `json:"label"`
	Type        string  `json:"type"`
	Interactive bool    `json:"interactive"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

// ParseResult is the service's response for one screenshot.
type ParseResult struct {
	Elements []Element `json:"elements"`
}

// Client talks to the screen-parsing HTTP service.
type Client struct {
	endpoint string
	http     *http.Client
	logger   zerolog.Logger
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// NewClient creates a client for the given endpoint.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("screen parser endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   cfg.Logger,
	}, nil
}

// Parse submits a base64-encoded screenshot and returns the recognized
// elements.
func (c *Client) Parse(ctx context.Context, imageBase64 string) (*ParseResult, error) {
	if strings.TrimSpace(imageBase64) == "" {
		return nil, fmt.Errorf("image payload is empty")
	}

	body, err := json.Marshal(map[string]string{"image": imageBase64})
	if err != nil {
		return nil, fmt.Errorf("encode parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("screen parser request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("screen parser returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result ParseResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode parse response: %w", err)
	}

	c.logger.Debug().
		Int("elements", len(result.Elements)).
		Dur("duration", time.Since(start)).
		Msg("Screenshot parsed")

	return &result, nil
}

// Describe renders a parse result as observation text for the model.
func (r *ParseResult) Describe() string {
	if len(r.Elements) == 0 {
		return "No UI elements recognized on the screenshot."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recognized %d UI elements:\n", len(r.Elements))
	for i, el := range r.Elements {
		interactive := ""
		if el.Interactive {
			interactive = ", interactive"
		}
		fmt.Fprintf(&b, "%d. %s (%s%s) at (%.0f, %.0f) size %.0fx%.0f\n",
			i+1, el.Label, el.Type, interactive, el.X, el.Y, el.Width, el.Height)
	}
	return strings.TrimRight(b.String(), "\n")
}
