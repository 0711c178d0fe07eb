package envelope

import (
	"encoding/json"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// PropertyLinks holds the JSON encoded links of a span.
const PropertyLinks = "_MS.links"

// Link is how a span link is written into the links property.
type Link struct {
	OperationID string `json:"operation_Id"`
	ID          string `json:"id"`
}

var reservedPrefixes = []string{"http.", "grpc.", "db."}

func createProperties(span sdktrace.ReadOnlySpan) (map[string]string, map[string]float64) {
	properties := map[string]string{}
	measurements := map[string]float64{}

	for _, kv := range span.Attributes() {
		if isReserved(kv.Key) {
			continue
		}
		properties[string(kv.Key)] = stringValue(kv.Value)
	}

	if links := span.Links(); len(links) > 0 {
		msLinks := make([]Link, len(links))
		for i, link := range links {
			msLinks[i] = Link{
				OperationID: link.SpanContext.TraceID().String(),
				ID:          link.SpanContext.SpanID().String(),
			}
		}

		// a slice of plain string structs cannot fail to encode
		data, _ := json.Marshal(msLinks)
		properties[PropertyLinks] = string(data)
	}

	return properties, measurements
}

func isReserved(key attribute.Key) bool {
	if key == grpcErrorMessage || key == grpcErrorName {
		return true
	}

	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(string(key), prefix) {
			return true
		}
	}

	return false
}
