package envelope

import (
	"github.com/go-logr/logr"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Converter turns finished spans into envelopes. It holds no mutable state
// and is safe for concurrent use.
type Converter struct {
	context Context
	logger  logr.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithContext sets the ambient tags stamped onto every envelope.
func WithContext(c Context) Option {
	return func(conv *Converter) { conv.context = c }
}

// WithLogger receives a diagnostic for each span that cannot be converted.
func WithLogger(l logr.Logger) Option {
	return func(conv *Converter) { conv.logger = l }
}

// NewConverter creates a converter with no ambient tags that logs nowhere
// unless configured otherwise.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		logger: logr.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Convert builds the envelope for span addressed to instrumentationKey.
// Spans of a kind the ingestion format has no record for fail with an error
// matching ErrUnsupportedSpanKind, and no envelope is returned.
func (c *Converter) Convert(span sdktrace.ReadOnlySpan, instrumentationKey string) (*Envelope, error) {
	attrs := newAttributes(span.Attributes())

	env := &Envelope{
		Version:            schemaVersion,
		Time:               formatTime(span.StartTime()),
		InstrumentationKey: instrumentationKey,
		Tags:               createTags(c.context, span, attrs),
	}

	properties, measurements := createProperties(span)

	switch kind := span.SpanKind(); kind {
	case trace.SpanKindClient, trace.SpanKindProducer:
		data := createDependencyData(span, attrs)
		data.Properties, data.Measurements = properties, measurements
		env.Name = DependencyEnvelopeName
		env.Data = Data{BaseType: DependencyBaseType, BaseData: data}

	case trace.SpanKindServer, trace.SpanKindConsumer:
		data := createRequestData(span, attrs)
		data.Properties, data.Measurements = properties, measurements
		env.Name = RequestEnvelopeName
		env.Data = Data{BaseType: RequestBaseType, BaseData: data}

	case trace.SpanKindInternal:
		data := createInProcData(span, attrs)
		data.Properties, data.Measurements = properties, measurements
		env.Name = DependencyEnvelopeName
		env.Data = Data{BaseType: DependencyBaseType, BaseData: data}

	default:
		err := &UnsupportedSpanKindError{Kind: kind}
		c.logger.Error(err, "cannot convert span",
			"traceId", span.SpanContext().TraceID().String(),
			"spanId", span.SpanContext().SpanID().String(),
		)
		return nil, err
	}

	if namespace, found := attrs.lookup(azNamespace); found {
		if namespace == microsoftEventHub {
			parseEventHubSpan(span, attrs, env)
		} else if span.SpanKind() == trace.SpanKindInternal {
			env.Data.BaseData.(*RemoteDependencyData).Type = typeInProc + " | " + namespace
		}
	}

	return env, nil
}
