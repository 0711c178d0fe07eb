package exporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"spanbridge/envelope"
	"spanbridge/storage"
)

const (
	defaultWorkers   = 4
	defaultBatchSize = 512
)

var ErrShutdown = errors.New("exporter is shut down")

// Sender delivers a batch, handing back what may be retried later.
type Sender interface {
	Send(ctx context.Context, envelopes []*envelope.Envelope) ([]*envelope.Envelope, error)
}

var _ sdktrace.SpanExporter = &Exporter{}

type Exporter struct {
	instrumentationKey string
	sender             Sender
	converter          *envelope.Converter
	spool              storage.Spool
	workers            int
	batchSize          int
	logger             logr.Logger

	// set when each span's own resource supplies the envelope context
	resourceContext bool
	extVersion      string
	converters      sync.Map

	stopped atomic.Bool
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithConverter replaces the converter built from the logger.
func WithConverter(c *envelope.Converter) Option {
	return func(e *Exporter) { e.converter = c }
}

// WithSpool keeps envelopes that could not be delivered for a later Flush.
func WithSpool(s storage.Spool) Option {
	return func(e *Exporter) { e.spool = s }
}

// WithWorkers bounds how many spans are converted at once. Values below 1
// keep the default.
func WithWorkers(n int) Option {
	return func(e *Exporter) { e.workers = n }
}

// WithBatchSize caps the envelopes in one request. Values below 1 keep the
// default.
func WithBatchSize(n int) Option {
	return func(e *Exporter) { e.batchSize = n }
}

// WithLogger receives conversion and delivery diagnostics.
func WithLogger(l logr.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// WithResourceContext derives the cloud role tags from the resource of each
// span instead of a single context, for spans recorded by other processes.
func WithResourceContext(extVersion string) Option {
	return func(e *Exporter) {
		e.resourceContext = true
		e.extVersion = extVersion
	}
}

// New creates an exporter addressing envelopes to instrumentationKey.
func New(instrumentationKey string, sender Sender, opts ...Option) *Exporter {
	e := &Exporter{
		instrumentationKey: instrumentationKey,
		sender:             sender,
		workers:            defaultWorkers,
		batchSize:          defaultBatchSize,
		logger:             logr.Discard(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.workers < 1 {
		e.workers = defaultWorkers
	}
	if e.batchSize < 1 {
		e.batchSize = defaultBatchSize
	}

	if e.converter == nil {
		e.converter = envelope.NewConverter(envelope.WithLogger(e.logger))
	}

	return e
}

func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.stopped.Load() {
		return ErrShutdown
	}

	envelopes, err := e.Convert(ctx, spans)
	if err != nil {
		// a span that cannot be converted never blocks the rest of the batch
		e.logger.Error(err, "spans dropped", "dropped", len(spans)-len(envelopes))
	}

	return e.Send(ctx, envelopes)
}

func (e *Exporter) Shutdown(ctx context.Context) error {
	e.stopped.Store(true)
	return nil
}

// Convert converts spans concurrently. Envelopes keep the order of their
// spans; spans that fail are left out and reported in the returned error.
func (e *Exporter) Convert(ctx context.Context, spans []sdktrace.ReadOnlySpan) ([]*envelope.Envelope, error) {
	converted := make([]*envelope.Envelope, len(spans))
	errs := make([]error, len(spans))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, span := range spans {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			converted[i], errs[i] = e.converterFor(span).Convert(span, e.instrumentationKey)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var result *multierror.Error
	envelopes := make([]*envelope.Envelope, 0, len(spans))
	for i, env := range converted {
		if errs[i] != nil {
			result = multierror.Append(result, fmt.Errorf("span %s: %w", spans[i].SpanContext().SpanID(), errs[i]))
			continue
		}
		envelopes = append(envelopes, env)
	}

	return envelopes, result.ErrorOrNil()
}

func (e *Exporter) converterFor(span sdktrace.ReadOnlySpan) *envelope.Converter {
	res := span.Resource()
	if !e.resourceContext || res == nil {
		return e.converter
	}

	key := res.Equivalent()
	if c, found := e.converters.Load(key); found {
		return c.(*envelope.Converter)
	}

	c, _ := e.converters.LoadOrStore(key, envelope.NewConverter(
		envelope.WithContext(envelope.NewContext(res, e.extVersion)),
		envelope.WithLogger(e.logger),
	))

	return c.(*envelope.Converter)
}

// Send delivers envelopes in batches. Envelopes the sender hands back are
// spooled when a spool is configured, otherwise they are reported in the
// returned error.
func (e *Exporter) Send(ctx context.Context, envelopes []*envelope.Envelope) error {
	var result *multierror.Error

	for batch := range chunks(envelopes, e.batchSize) {
		retry, err := e.sender.Send(ctx, batch)

		if len(retry) > 0 && e.spool != nil {
			if spoolErr := e.spool.Push(ctx, retry); spoolErr != nil {
				result = multierror.Append(result, fmt.Errorf("failed to spool %d envelopes: %w", len(retry), spoolErr))
				continue
			}

			e.logger.Info("envelopes spooled", "count", len(retry), "reason", errString(err))
			continue
		}

		if err != nil {
			result = multierror.Append(result, err)
			continue
		}

		if len(retry) > 0 {
			result = multierror.Append(result, fmt.Errorf("%d envelopes not accepted", len(retry)))
		}
	}

	return result.ErrorOrNil()
}

// Flush resends spooled envelopes, oldest first, and reports how many were
// delivered. It stops early while the endpoint is still unreachable.
func (e *Exporter) Flush(ctx context.Context) (int, error) {
	if e.spool == nil {
		return 0, nil
	}

	pending, err := e.spool.Count(ctx)
	if err != nil {
		return 0, err
	}

	var result *multierror.Error
	delivered := 0

	for pending > 0 {
		records, err := e.spool.Peek(ctx, min(e.batchSize, pending))
		if err != nil {
			return delivered, err
		}
		if len(records) == 0 {
			break
		}
		pending -= len(records)

		envelopes := make([]*envelope.Envelope, len(records))
		ids := make([]int64, len(records))
		for i, r := range records {
			envelopes[i] = r.Envelope
			ids[i] = r.ID
		}

		retry, sendErr := e.sender.Send(ctx, envelopes)
		if sendErr != nil && len(retry) == len(envelopes) {
			return delivered, multierror.Append(result, sendErr).ErrorOrNil()
		}

		// retried items go to the back of the spool
		if err := e.spool.Push(ctx, retry); err != nil {
			return delivered, err
		}
		if err := e.spool.Remove(ctx, ids...); err != nil {
			return delivered, err
		}

		if sendErr != nil {
			e.logger.Error(sendErr, "spooled envelopes rejected", "count", len(envelopes))
			result = multierror.Append(result, sendErr)
			continue
		}

		delivered += len(envelopes) - len(retry)
	}

	return delivered, result.ErrorOrNil()
}

func chunks(envelopes []*envelope.Envelope, size int) func(func([]*envelope.Envelope) bool) {
	return func(yield func([]*envelope.Envelope) bool) {
		for start := 0; start < len(envelopes); start += size {
			if !yield(envelopes[start:min(start+size, len(envelopes))]) {
				return
			}
		}
	}
}

func errString(err error) string {
	if err == nil {
		return "partial success"
	}
	return err.Error()
}
