package stream

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	ssePath = "/events/stream"
	wsPath  = "/events/ws"
)

// endpoint joins the server base URL with path, switching to ws/wss when ws is set.
func endpoint(baseURL, path string, ws bool) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server url %q: unsupported scheme", baseURL)
	}
	if ws {
		switch u.Scheme {
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		}
	} else {
		switch u.Scheme {
		case "ws":
			u.Scheme = "http"
		case "wss":
			u.Scheme = "https"
		}
	}
	u.Path += path
	return u.String(), nil
}
