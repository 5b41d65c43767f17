package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
)

const maxSSELine = 1 << 20

var _ ports.StreamDialer = (*SSEDialer)(nil)

// SSEDialer opens the server's text/event-stream endpoint.
type SSEDialer struct {
	url    string
	client *http.Client
}

// NewSSEDialer creates a dialer for baseURL + /events/stream. The client must
// not set an overall timeout; nil uses a fresh default client.
func NewSSEDialer(baseURL string, client *http.Client) (*SSEDialer, error) {
	target, err := endpoint(baseURL, ssePath, false)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{}
	}
	return &SSEDialer{url: target, client: client}, nil
}

// Dial opens one stream. ctx bounds the whole connection, not just the handshake.
func (d *SSEDialer) Dial(ctx context.Context) (ports.Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open %s: %w", d.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open %s: unexpected status %d", d.url, resp.StatusCode)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open %s: unexpected content type %q", d.url, mt)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxSSELine)
	return &sseStream{body: resp.Body, scanner: scanner, cancel: cancel}, nil
}

type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
}

// Recv returns the data of the next event. Comments, event names, ids and
// retry hints are skipped; multi-line data is joined with "\n".
func (s *sseStream) Recv() ([]byte, error) {
	var data []string
	for s.scanner.Scan() {
		line := strings.TrimSuffix(s.scanner.Text(), "\r")

		if line == "" {
			if len(data) > 0 {
				return []byte(strings.Join(data, "\n")), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		if field == "data" {
			data = append(data, value)
		}
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}
	return nil, io.EOF
}

func (s *sseStream) Close() error {
	s.cancel()
	return s.body.Close()
}
