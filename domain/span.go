package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// Span is the JSON shape the stdouttrace exporter writes for each span.
type Span struct {
	Name                 string
	SpanContext          SpanContext
	Parent               SpanContext
	SpanKind             trace.SpanKind
	StartTime            time.Time
	EndTime              time.Time
	Attributes           []Attribute
	Events               []Event
	Links                []Link
	Status               Status
	DroppedAttributes    int
	DroppedEvents        int
	DroppedLinks         int
	ChildSpanCount       int
	Resource             *Resource
	InstrumentationScope Scope
}

type Event struct {
	Name                  string
	Attributes            []Attribute
	DroppedAttributeCount int
	Time                  time.Time
}

type Link struct {
	SpanContext           SpanContext
	Attributes            []Attribute
	DroppedAttributeCount int
}

// Scope leaves out the scope attributes, which stdouttrace does not encode
// in a readable form.
type Scope struct {
	Name      string
	Version   string
	SchemaURL string
}

type Status struct {
	Code        codes.Code
	Description string
}

// Snapshot freezes the decoded span into the SDK's read-only form.
func (s *Span) Snapshot() sdktrace.ReadOnlySpan {
	stub := tracetest.SpanStub{
		Name:                 s.Name,
		SpanContext:          s.SpanContext.SpanContext,
		Parent:               s.Parent.SpanContext,
		SpanKind:             s.SpanKind,
		StartTime:            s.StartTime,
		EndTime:              s.EndTime,
		Attributes:           keyValues(s.Attributes),
		Status:               sdktrace.Status{Code: s.Status.Code, Description: s.Status.Description},
		DroppedAttributes:    s.DroppedAttributes,
		DroppedEvents:        s.DroppedEvents,
		DroppedLinks:         s.DroppedLinks,
		ChildSpanCount:       s.ChildSpanCount,
		InstrumentationScope: instrumentation.Scope{
			Name:      s.InstrumentationScope.Name,
			Version:   s.InstrumentationScope.Version,
			SchemaURL: s.InstrumentationScope.SchemaURL,
		},
	}

	if s.Resource != nil {
		stub.Resource = s.Resource.Resource
	}

	for _, e := range s.Events {
		stub.Events = append(stub.Events, sdktrace.Event{
			Name:                  e.Name,
			Attributes:            keyValues(e.Attributes),
			DroppedAttributeCount: e.DroppedAttributeCount,
			Time:                  e.Time,
		})
	}

	for _, l := range s.Links {
		stub.Links = append(stub.Links, sdktrace.Link{
			SpanContext:           l.SpanContext.SpanContext,
			Attributes:            keyValues(l.Attributes),
			DroppedAttributeCount: l.DroppedAttributeCount,
		})
	}

	return stub.Snapshot()
}

// ReadSpans decodes a stream of concatenated span objects, as produced by
// stdouttrace with or without pretty printing.
func ReadSpans(r io.Reader) ([]sdktrace.ReadOnlySpan, error) {
	dec := json.NewDecoder(r)

	var spans []sdktrace.ReadOnlySpan
	for {
		var span Span
		err := dec.Decode(&span)
		if errors.Is(err, io.EOF) {
			return spans, nil
		}
		if err != nil {
			return nil, fmt.Errorf("error decoding span %d: %w", len(spans), err)
		}

		spans = append(spans, span.Snapshot())
	}
}

func ReadFile(path string) ([]sdktrace.ReadOnlySpan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	spans, err := ReadSpans(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return spans, nil
}
