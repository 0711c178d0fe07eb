package transmit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"spanbridge/envelope"
)

const (
	trackPath = "/v2.1/track"

	defaultTimeout        = 10 * time.Second
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxElapsed     = time.Minute

	maxResponseSize = 1 << 20
)

// status codes after which sending the same items again can succeed
var retriable = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	439, // daily quota exceeded
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

func isRetriable(code int) bool {
	return slices.Contains(retriable, code)
}

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response status code: %d: %s", e.StatusCode, e.Body)
}

type response struct {
	ItemsReceived int             `json:"itemsReceived"`
	ItemsAccepted int             `json:"itemsAccepted"`
	Errors        []responseError `json:"errors"`
}

type responseError struct {
	Index      int    `json:"index"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

type Sender struct {
	url            string
	client         *http.Client
	logger         logr.Logger
	initialBackoff time.Duration
	maxElapsed     time.Duration
}

type Option func(*Sender)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.client = c }
}

func WithLogger(l logr.Logger) Option {
	return func(s *Sender) { s.logger = l }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Sender) { s.client.Timeout = d }
}

// WithRetry bounds how long a batch keeps being retried before it is handed
// back to the caller.
func WithRetry(initial, maxElapsed time.Duration) Option {
	return func(s *Sender) {
		s.initialBackoff = initial
		s.maxElapsed = maxElapsed
	}
}

func NewSender(endpoint string, opts ...Option) *Sender {
	s := &Sender{
		url: strings.TrimRight(endpoint, "/") + trackPath,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
		logger:         logr.Discard(),
		initialBackoff: defaultInitialBackoff,
		maxElapsed:     defaultMaxElapsed,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Send delivers envelopes in a single request. The returned envelopes were
// not accepted but may be on a later attempt; the error reports why the
// batch, or part of it, failed.
func (s *Sender) Send(ctx context.Context, envelopes []*envelope.Envelope) ([]*envelope.Envelope, error) {
	if len(envelopes) == 0 {
		return nil, nil
	}

	body, err := encode(envelopes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelopes: %w", err)
	}

	var retry []*envelope.Envelope

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.MaxElapsedTime = s.maxElapsed

	op := func() error {
		resp, err := s.post(ctx, body)
		if err != nil {
			return err
		}

		switch {
		case resp.status == http.StatusPartialContent:
			retry = partial(envelopes, resp.body)
			s.logger.V(1).Info("partial success",
				"requestId", resp.requestID,
				"accepted", resp.body.ItemsAccepted,
				"retriable", len(retry),
			)
			return nil

		case resp.status >= 200 && resp.status < 300:
			retry = nil
			return nil

		case isRetriable(resp.status):
			return &StatusError{StatusCode: resp.status, Body: resp.raw}

		default:
			return backoff.Permanent(&StatusError{StatusCode: resp.status, Body: resp.raw})
		}
	}

	notify := func(err error, next time.Duration) {
		s.logger.V(1).Info("retrying send", "error", err.Error(), "in", next)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !isRetriable(statusErr.StatusCode) {
			return nil, err
		}
		return envelopes, err
	}

	return retry, nil
}

type result struct {
	status    int
	requestID string
	raw       string
	body      response
}

func (s *Sender) post(ctx context.Context, body []byte) (*result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	r := &result{
		status:    resp.StatusCode,
		requestID: requestID,
		raw:       string(raw),
	}

	if len(raw) > 0 {
		// the body only matters for partial success; ignore anything unparsable
		_ = json.Unmarshal(raw, &r.body)
	}

	return r, nil
}

func partial(envelopes []*envelope.Envelope, resp response) []*envelope.Envelope {
	var retry []*envelope.Envelope

	for _, e := range resp.Errors {
		if e.Index < 0 || e.Index >= len(envelopes) {
			continue
		}
		if isRetriable(e.StatusCode) {
			retry = append(retry, envelopes[e.Index])
		}
	}

	return retry
}

func encode(envelopes []*envelope.Envelope) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := gzip.NewWriter(buf)

	if err := json.NewEncoder(zw).Encode(envelopes); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
