package clinicaltrials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
	"github.com/zatekoja/trialmatch/pkg/config"
	"github.com/zatekoja/trialmatch/pkg/retry"
)

const (
	defaultBaseURL  = "https://clinicaltrials.gov/api/v2"
	defaultPageSize = 100
	maxPageSize     = 1000
	userAgent       = "TrialMatch/2.0 (clinical trial screening)"
)

// StatusError is returned for non-2xx registry responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("clinicaltrials.gov returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("clinicaltrials.gov returned status %d: %s", e.StatusCode, e.Body)
}

// SearchRequest is one page query against the studies endpoint.
type SearchRequest struct {
	Condition string
	Status    string
	PageSize  int
	PageToken string
}

// HTTPClient talks to the ClinicalTrials.gov v2 REST API. Consecutive
// requests are spaced by the configured delay to stay polite to the registry.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
	delay      time.Duration
	retry      retry.Config

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a registry client from cfg.
func NewClient(cfg config.ClinicalTrialsConfig) *HTTPClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.Retryable = isRetryable
	retryCfg.OnRetry = func(attempt int, err error, next time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", next).Msg("retrying clinicaltrials.gov request")
	}

	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		pageSize:   pageSize,
		delay:      cfg.RequestDelay,
		retry:      retryCfg,
	}
}

// WithHTTPClient replaces the HTTP client (used for tests).
func (c *HTTPClient) WithHTTPClient(httpClient *http.Client) *HTTPClient {
	c.httpClient = httpClient
	return c
}

// WithRetry replaces the retry policy.
func (c *HTTPClient) WithRetry(cfg retry.Config) *HTTPClient {
	if cfg.Retryable == nil {
		cfg.Retryable = isRetryable
	}
	c.retry = cfg
	return c
}

// SearchStudies fetches one page of studies.
func (c *HTTPClient) SearchStudies(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > c.pageSize {
		pageSize = c.pageSize
	}

	query := url.Values{}
	query.Set("format", "json")
	query.Set("pageSize", strconv.Itoa(pageSize))
	if req.Condition != "" {
		query.Set("query.term", req.Condition)
	}
	if req.Status != "" {
		query.Set("filter.overallStatus", req.Status)
	}
	if req.PageToken != "" {
		query.Set("pageToken", req.PageToken)
	}
	endpoint := c.baseURL + "/studies?" + query.Encode()

	out := &SearchResponse{}
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.pace(ctx); err != nil {
			return err
		}
		return c.doJSON(ctx, endpoint, out)
	})
	if err != nil {
		return nil, fmt.Errorf("search studies for %q: %w", req.Condition, err)
	}
	return out, nil
}

// FetchTrials pages through the search results for condition until limit
// trials are collected or the registry has no more pages.
func (c *HTTPClient) FetchTrials(ctx context.Context, condition, status string, limit int) ([]entities.Trial, error) {
	if limit <= 0 {
		limit = c.pageSize
	}

	trials := make([]entities.Trial, 0, limit)
	token := ""
	for len(trials) < limit {
		page, err := c.SearchStudies(ctx, SearchRequest{
			Condition: condition,
			Status:    status,
			PageSize:  limit - len(trials),
			PageToken: token,
		})
		if err != nil {
			return trials, err
		}
		for _, study := range page.Studies {
			trial, ok := MapStudy(study)
			if !ok {
				continue
			}
			trials = append(trials, trial)
			if len(trials) == limit {
				break
			}
		}
		if page.NextPageToken == "" || len(page.Studies) == 0 {
			break
		}
		token = page.NextPageToken
	}
	return trials, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, endpoint string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// pace blocks until the politeness delay since the previous request has passed.
func (c *HTTPClient) pace(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	c.mu.Lock()
	wait := time.Until(c.lastRequest.Add(c.delay))
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	var syntaxErr *json.SyntaxError
	return !errors.As(err, &syntaxErr)
}
