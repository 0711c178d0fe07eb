package envelope

import (
	"strconv"
	"strings"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// MeasurementTimeSinceEnqueued is the average time, in milliseconds, the
// messages a consumer span processed spent in the hub.
const MeasurementTimeSinceEnqueued = "timeSinceEnqueued"

const queueMessage = "Queue Message"

func parseEventHubSpan(span sdktrace.ReadOnlySpan, attrs attributes, env *Envelope) {
	namespace, _ := attrs.lookup(azNamespace)
	peer, _ := attrs.lookup(peerAddress)
	destination, _ := attrs.lookup(messageBusDestination)
	entity := strings.TrimRight(peer, "/") + "/" + destination

	switch data := env.Data.BaseData.(type) {
	case *RemoteDependencyData:
		switch span.SpanKind() {
		case trace.SpanKindClient:
			data.Type = namespace
			data.Target = entity
		case trace.SpanKindProducer:
			data.Type = queueMessage + " | " + namespace
			data.Target = entity
		}

	case *RequestData:
		if span.SpanKind() == trace.SpanKindConsumer {
			data.Source = entity
			data.Measurements[MeasurementTimeSinceEnqueued] = timeSinceEnqueued(span)
		}
	}
}

func timeSinceEnqueued(span sdktrace.ReadOnlySpan) float64 {
	start := float64(span.StartTime().UnixNano()) / float64(time.Millisecond)

	count := 0
	sum := 0.0
	for _, link := range span.Links() {
		for _, kv := range link.Attributes {
			if kv.Key != enqueuedTime {
				continue
			}

			enqueued, err := strconv.ParseFloat(stringValue(kv.Value), 64)
			if err != nil || enqueued == 0 {
				continue
			}

			count++
			sum += start - enqueued
		}
	}

	if count == 0 {
		return 0
	}

	return max(sum/float64(count), 0)
}
