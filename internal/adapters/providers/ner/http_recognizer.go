package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/zatekoja/trialmatch/internal/domain/providers"
)

const (
	defaultTimeout          = 3 * time.Second
	maxErrorBody            = 512
	tripAfterFailures       = 3
	openStateRecoveryPeriod = time.Minute
)

// HTTPRecognizer calls a token-classification service that accepts
// {"inputs": "..."} and answers with a JSON array of entity spans.
type HTTPRecognizer struct {
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPRecognizer creates a recognizer for the service at url.
func NewHTTPRecognizer(url string, timeout time.Duration, httpClient *http.Client) *HTTPRecognizer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPRecognizer{
		url:        strings.TrimSpace(url),
		httpClient: httpClient,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "ner",
			MaxRequests: 1,
			Timeout:     openStateRecoveryPeriod,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= tripAfterFailures
			},
		}),
	}
}

type recognizeRequest struct {
	Inputs string `json:"inputs"`
}

// Recognize returns the entity spans found in text.
func (r *HTTPRecognizer) Recognize(ctx context.Context, text string) ([]providers.RecognizedEntity, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.do(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return result.([]providers.RecognizedEntity), nil
}

func (r *HTTPRecognizer) do(ctx context.Context, text string) ([]providers.RecognizedEntity, error) {
	body, err := json.Marshal(recognizeRequest{Inputs: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode ner request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build ner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("ner service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	var spans []providers.RecognizedEntity
	if err := json.NewDecoder(resp.Body).Decode(&spans); err != nil {
		return nil, fmt.Errorf("failed to decode ner response: %w", err)
	}
	return spans, nil
}
