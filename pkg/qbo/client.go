// Package qbo provides a minimal QuickBooks Online API client covering the
// report and query endpoints the balance review needs.
package qbo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/balance-review/internal/resilience"
)

// TokenSource supplies a current OAuth bearer token. Implementations refresh
// as needed; the client calls it once per request.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken wraps a fixed token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// ReportParams select the reporting window for a report endpoint.
type ReportParams struct {
	StartDate string
	EndDate   string
	AsOfDate  string
	// SummarizeColumnsBy is passed through (e.g. "Month") when set.
	SummarizeColumnsBy string
}

// Client defines the QBO operations used by the review pipeline.
type Client interface {
	// Report fetches a named report (BalanceSheet, ProfitAndLoss,
	// AgedPayables, AgedPayableDetail, AgedReceivables,
	// AgedReceivableDetail) as a decoded JSON object.
	Report(ctx context.Context, name string, params ReportParams) (map[string]any, error)
	// Query runs a QBO SQL-ish query and returns the entity list from the
	// QueryResponse envelope.
	Query(ctx context.Context, query string, entity string) ([]any, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (sandbox, tests).
func WithBaseURL(baseURL string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit overrides the request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithRetryConfig overrides the retry policy for transient failures.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

// WithCircuitBreaker overrides the breaker guarding the QBO API.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) { c.breaker = cb }
}

// WithMinorVersion pins the QBO API minorversion query parameter.
func WithMinorVersion(v string) Option {
	return func(c *httpClient) { c.minorVersion = v }
}

type httpClient struct {
	realmID      string
	tokens       TokenSource
	baseURL      string
	minorVersion string
	http         *http.Client
	limiter      *rate.Limiter
	retry        resilience.RetryConfig
	breaker      *resilience.CircuitBreaker
}

// NewClient creates a QBO client for one company realm.
func NewClient(realmID string, tokens TokenSource, opts ...Option) Client {
	c := &httpClient{
		realmID:      realmID,
		tokens:       tokens,
		baseURL:      "https://quickbooks.api.intuit.com",
		minorVersion: "75",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		// QBO throttles at 500 req/min per realm; stay well under.
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "qbo: rate limit wait")
	}

	query.Set("minorversion", c.minorVersion)
	reqURL := c.baseURL + "/v3/company/" + url.PathEscape(c.realmID) + path + "?" + query.Encode()

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (map[string]any, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (map[string]any, error) {
			return c.fetch(ctx, reqURL)
		})
	})
}

// fetch performs one authorized request attempt.
func (c *httpClient) fetch(ctx context.Context, reqURL string) (map[string]any, error) {
	token, err := c.tokens(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "qbo: token source")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "qbo: create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "qbo: request"), 0)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, eris.Wrap(readErr, "qbo: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyError(resp, body)
	}

	// Amounts must survive as exact strings; UseNumber keeps them out of
	// float64.
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, eris.Wrap(err, "qbo: decode response")
	}
	return payload, nil
}

// classifyError turns a non-200 response into the right error kind: auth
// failures for 401 and AUTHENTICATION faults, throttle errors carrying the
// Retry-After hint for 429, transient errors for the other retryable
// statuses, and plain errors for everything else.
func classifyError(resp *http.Response, body []byte) error {
	detail := string(body)
	fault, hasFault := resilience.ParseFault(body)
	if hasFault && fault.Message != "" {
		detail = fault.Type + ": " + fault.Message
	}

	if resp.StatusCode == http.StatusUnauthorized || (hasFault && fault.IsAuthFault()) {
		return resilience.NewAuthError(
			eris.Errorf("qbo: token rejected (status %d): %s", resp.StatusCode, detail))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return resilience.NewThrottleError(
			eris.Errorf("qbo: throttled (status %d): %s", resp.StatusCode, detail),
			parseRetryAfter(resp.Header.Get("Retry-After")))
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) || (hasFault && fault.IsTransient()) {
		return resilience.NewTransientError(
			eris.Errorf("qbo: status %d: %s", resp.StatusCode, detail), resp.StatusCode)
	}

	return eris.Errorf("qbo: unexpected status %d: %s", resp.StatusCode, detail)
}

// parseRetryAfter handles the delay-seconds form of the header. QBO does not
// send the HTTP-date form.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (c *httpClient) Report(ctx context.Context, name string, params ReportParams) (map[string]any, error) {
	query := url.Values{}
	if params.StartDate != "" {
		query.Set("start_date", params.StartDate)
	}
	if params.EndDate != "" {
		query.Set("end_date", params.EndDate)
	}
	if params.AsOfDate != "" {
		query.Set("report_date", params.AsOfDate)
	}
	if params.SummarizeColumnsBy != "" {
		query.Set("summarize_column_by", params.SummarizeColumnsBy)
	}
	payload, err := c.get(ctx, "/reports/"+url.PathEscape(name), query)
	if err != nil {
		return nil, eris.Wrapf(err, "qbo: report %s", name)
	}
	return payload, nil
}

func (c *httpClient) Query(ctx context.Context, query string, entity string) ([]any, error) {
	values := url.Values{}
	values.Set("query", query)
	payload, err := c.get(ctx, "/query", values)
	if err != nil {
		return nil, eris.Wrapf(err, "qbo: query %s", entity)
	}
	qr, ok := payload["QueryResponse"].(map[string]any)
	if !ok {
		return nil, eris.Errorf("qbo: query %s: QueryResponse missing", entity)
	}
	// An empty result set comes back as an envelope without the entity key.
	list, _ := qr[entity].([]any)
	return list, nil
}
