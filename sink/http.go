package sink

import (
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/formatter"
)

const defaultHTTPTimeout = 5 * time.Second

// HTTPOptions configures an HTTP batch sink
type HTTPOptions struct {
	URL     string
	Timeout time.Duration     // per request, defaults to 5s
	Headers map[string]string // extra request headers
	Client  *fasthttp.Client  // optional, a default client is created when nil
}

// HTTP posts each batch as newline-delimited JSON
type HTTP struct {
	logpipe.SinkBase
	mu      sync.Mutex
	url     string
	timeout time.Duration
	headers map[string]string
	client  *fasthttp.Client
	format  *formatter.Formatter
	body    []byte
}

// NewHTTP creates an HTTP sink posting to opts.URL
func NewHTTP(opts HTTPOptions) (*HTTP, error) {
	if opts.URL == "" {
		return nil, errorf("%w: http sink needs a url", errMissingOption)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTTPTimeout
	}
	client := opts.Client
	if client == nil {
		client = &fasthttp.Client{
			Name:                "logpipe",
			MaxIdleConnDuration: 30 * time.Second,
		}
	}
	return &HTTP{
		url:     opts.URL,
		timeout: opts.Timeout,
		headers: opts.Headers,
		client:  client,
		format:  formatter.New().Type(formatter.FormatJSON),
	}, nil
}

// Write posts a single record
func (s *HTTP) Write(r logpipe.Record) error {
	return s.WriteBatch([]logpipe.Record{r})
}

// WriteBatch posts the batch in one request and fails on any non-2xx status
func (s *HTTP) WriteBatch(records []logpipe.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.body = s.body[:0]
	for _, r := range records {
		s.body = append(s.body, s.format.Format(r)...)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(s.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-ndjson")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	req.SetBodyRaw(s.body)

	if err := s.client.DoTimeout(req, resp, s.timeout); err != nil {
		return errorf("post %d records to %s: %w", len(records), s.url, err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return errorf("%w: %d from %s", ErrStatus, status, s.url)
	}
	return nil
}

// Close releases idle connections
func (s *HTTP) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
