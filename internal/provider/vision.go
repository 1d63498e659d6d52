// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/nadavby/reclaim/internal/config"
	"github.com/nadavby/reclaim/internal/metrics"
	"github.com/nadavby/reclaim/internal/models"
)

// maxErrorBodySize limits the maximum amount of response body read for error reporting
// This prevents unbounded memory allocation when reading large error responses
const maxErrorBodySize = 64 * 1024 // 64KB

const (
	visionProviderName = "vision"
	annotatePath       = "/v1/annotate"

	defaultVisionRate  = 5  // requests per second
	defaultVisionBurst = 10 // token bucket burst
)

// readBodyForError reads the response body for error reporting (max 64KB)
// Returns the body content or a placeholder message if reading fails
// Uses io.LimitReader to prevent unbounded memory allocation
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	// If we hit the limit, indicate truncation
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// VisionClient talks to the image annotation service over HTTP.
//
// It includes built-in rate limiting on two levels: a client-side token
// bucket keeps request rates below the provider's quota, and HTTP 429
// responses are retried with exponential backoff (1s, 2s, 4s, 8s, 16s)
// honoring Retry-After when present.
//
// Thread Safety: Safe for concurrent use. Each request creates its own
// HTTP request; the token bucket serializes admission.
//
// Example:
//
//	client, err := provider.NewVisionClient(&cfg.Providers.Vision)
//	if err != nil {
//	    log.Fatal("vision provider misconfigured:", err)
//	}
//	sig, err := client.AnnotateImage(ctx, "https://cdn.example.com/items/w1.jpg")
type VisionClient struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int           // Maximum retries for rate limiting
	retryBaseDelay time.Duration // Base delay for exponential backoff
}

// NewVisionClient creates an annotation client from configuration.
//
// The client is configured with:
//   - 30-second HTTP timeout
//   - 5 maximum retries for rate limiting
//   - 1-second base delay for exponential backoff
//   - Token bucket admission at cfg.RatePerSecond (default 5/s, burst 10)
//
// Returns an error when the provider is disabled or the URL is missing.
func NewVisionClient(cfg *config.VisionConfig) (*VisionClient, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("vision provider is disabled")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("vision provider URL is required")
	}

	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = defaultVisionRate
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultVisionBurst
	}

	return &VisionClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:        rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries:     5,               // Allow up to 5 retries for rate limiting
		retryBaseDelay: 1 * time.Second, // Start with 1 second, doubles each retry
	}, nil
}

// Name identifies this provider in logs and metrics.
func (c *VisionClient) Name() string {
	return visionProviderName
}

// annotateRequest is the wire format of an annotation call.
type annotateRequest struct {
	ImageRef string `json:"image_ref"`
}

// AnnotateImage analyzes one image and returns its visual signature.
// The response decodes directly into models.VisualSignature: labels,
// detected objects with confidence, and dominant colors.
func (c *VisionClient) AnnotateImage(ctx context.Context, imageRef string) (*models.VisualSignature, error) {
	start := time.Now()
	sig, err := c.annotate(ctx, imageRef)
	metrics.RecordProviderCall(visionProviderName, "annotate", Outcome(err), time.Since(start))
	if err != nil {
		return nil, &Error{Provider: visionProviderName, Op: "annotate", Err: err}
	}
	return sig, nil
}

func (c *VisionClient) annotate(ctx context.Context, imageRef string) (*models.VisualSignature, error) {
	if strings.TrimSpace(imageRef) == "" {
		return nil, fmt.Errorf("image reference is empty")
	}

	payload, err := json.Marshal(annotateRequest{ImageRef: imageRef})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequestWithRateLimit(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: annotate failed with status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("annotate failed with status %d: %s", resp.StatusCode, string(body))
	}

	var sig models.VisualSignature
	if err := json.NewDecoder(resp.Body).Decode(&sig); err != nil {
		return nil, fmt.Errorf("%w: decoding annotate response: %v", ErrMalformedResponse, err)
	}
	return &sig, nil
}

// doRequestWithRateLimit performs an HTTP request with automatic rate limit handling.
// Implements exponential backoff for HTTP 429 responses (1s, 2s, 4s, 8s, 16s).
// The context is used for cancellation during backoff waits.
func (c *VisionClient) doRequestWithRateLimit(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Check context before attempting request
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Token bucket admission; retries consume tokens too
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+annotatePath, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		// Success - return response
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited (HTTP 429) - close body and retry with backoff
		_ = resp.Body.Close()
		metrics.RecordProviderRetry(visionProviderName)

		// Last attempt - return error
		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("%w: rate limit exceeded after %d retries (HTTP 429)", ErrUnavailable, c.maxRetries)
			break
		}

		// Calculate exponential backoff delay: 1s, 2s, 4s, 8s, 16s
		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))

		// Check for Retry-After header (RFC 6585)
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			// Try parsing as seconds (integer)
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil && seconds > 0 {
				delay = seconds
			}
		}

		// Use cancellable wait instead of time.Sleep
		select {
		case <-time.After(delay):
			// Continue to next attempt
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}
