package leadconnector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/axdashboard/axdash/internal/pkg/env"
	"github.com/axdashboard/axdash/internal/pkg/metrics"
)

const (
	defaultAPIBaseURL           = "https://services.leadconnectorhq.com"
	defaultProtectedResourceURL = "https://api.gohighlevel.com/v2/protected-resource"

	// APIVersion is sent in the Version header of every API call.
	APIVersion = "2021-07-28"
)

var (
	// ErrUnauthorized is returned when the provider rejects the access token.
	ErrUnauthorized = errors.New("leadconnector: unauthorized")
	// ErrNotFound is returned when a search yields no opportunity.
	ErrNotFound = errors.New("leadconnector: opportunity not found")
)

// StatusError describes a non-2xx response other than 401.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed: status=%d body=%s", e.Endpoint, e.StatusCode, e.Body)
}

// Client calls the CRM REST API on behalf of a location.
type Client struct {
	APIBaseURL           string
	ProtectedResourceURL string

	HTTPClient *http.Client
}

func NewClientFromEnv() *Client {
	return &Client{
		APIBaseURL:           strings.TrimSpace(env.GetEnv("GHL_API_BASE_URL", defaultAPIBaseURL)),
		ProtectedResourceURL: strings.TrimSpace(env.GetEnv("GHL_PROTECTED_RESOURCE_URL", defaultProtectedResourceURL)),
		HTTPClient: &http.Client{
			Timeout: env.GetEnvDuration("GHL_HTTP_TIMEOUT", 15*time.Second),
		},
	}
}

// SearchOpportunity fetches the full record of one opportunity, including the
// attribution and custom field data that webhook payloads omit.
func (c *Client) SearchOpportunity(ctx context.Context, accessToken, locationID, opportunityID string) (*Opportunity, error) {
	q := url.Values{}
	q.Set("location_id", locationID)
	q.Set("id", opportunityID)

	var out SearchResponse
	if err := c.get(ctx, "opportunities_search", c.apiURL("/opportunities/search", q), accessToken, &out); err != nil {
		return nil, err
	}
	if len(out.Opportunities) == 0 {
		return nil, ErrNotFound
	}
	return &out.Opportunities[0], nil
}

// ListPipelines returns every pipeline of a location with its stages.
func (c *Client) ListPipelines(ctx context.Context, accessToken, locationID string) ([]Pipeline, error) {
	q := url.Values{}
	q.Set("locationId", locationID)

	var out PipelinesResponse
	if err := c.get(ctx, "opportunities_pipelines", c.apiURL("/opportunities/pipelines", q), accessToken, &out); err != nil {
		return nil, err
	}
	return out.Pipelines, nil
}

// ProtectedResource fetches the configured protected resource and returns its raw JSON body.
func (c *Client) ProtectedResource(ctx context.Context, accessToken string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.get(ctx, "protected_resource", c.ProtectedResourceURL, accessToken, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) apiURL(path string, q url.Values) string {
	return strings.TrimRight(c.APIBaseURL, "/") + path + "?" + q.Encode()
}

func (c *Client) get(ctx context.Context, endpoint, rawURL, accessToken string, out interface{}) (err error) {
	defer func() {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, outcome(err)).Inc()
	}()

	token := strings.TrimSpace(accessToken)
	if token == "" {
		return ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Version", APIVersion)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s response decode failed: %w", endpoint, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
