package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
)

// DefaultTimeout bounds each snapshot and banner request.
const DefaultTimeout = 15 * time.Second

// maxBannerBytes caps how much banner text is read.
const maxBannerBytes = 64 << 10

var (
	_ ports.SnapshotSource = (*Client)(nil)
	_ ports.BannerSource   = (*Client)(nil)
)

// Client fetches the snapshot and banner from an apitrail server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: u.String(), http: httpClient}, nil
}

type eventsResponse struct {
	Events []json.RawMessage `json:"events"`
}

// FetchSnapshot requests GET /events. A limit of 0 lets the server pick.
// Entries without a usable serial are skipped; every other field degrades to
// its default.
func (c *Client) FetchSnapshot(ctx context.Context, limit int) ([]group.Group, error) {
	target := c.baseURL + "/events"
	if limit > 0 {
		target += "?limit=" + strconv.Itoa(limit)
	}

	resp, err := c.get(ctx, target, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /events: unexpected status %d", resp.StatusCode)
	}

	var body eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode /events response: %w", err)
	}

	groups := make([]group.Group, 0, len(body.Events))
	for _, raw := range body.Events {
		g, err := group.Decode(raw)
		if err != nil {
			continue
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// FetchBanner requests GET /banner. A 404 means no banner and is not an error.
func (c *Client) FetchBanner(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.baseURL+"/banner", "text/plain")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", nil
	default:
		return "", fmt.Errorf("GET /banner: unexpected status %d", resp.StatusCode)
	}

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxBannerBytes))
	if err != nil {
		return "", fmt.Errorf("read banner: %w", err)
	}
	return string(text), nil
}

func (c *Client) get(ctx context.Context, target, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	return resp, nil
}
