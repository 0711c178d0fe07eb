package envelope

import (
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
)

const (
	httpMethod     attribute.Key = "http.method"
	httpRoute      attribute.Key = "http.route"
	httpURL        attribute.Key = "http.url"
	httpStatusCode attribute.Key = "http.status_code"

	grpcMethod       attribute.Key = "grpc.method"
	grpcStatusCode   attribute.Key = "grpc.status_code"
	grpcErrorMessage attribute.Key = "grpc.error_message"
	grpcErrorName    attribute.Key = "grpc.error_name"

	dbStatement attribute.Key = "db.statement"
	dbType      attribute.Key = "db.type"
	dbInstance  attribute.Key = "db.instance"

	azNamespace           attribute.Key = "az.namespace"
	peerAddress           attribute.Key = "peer.address"
	messageBusDestination attribute.Key = "message_bus.destination"
	enqueuedTime          attribute.Key = "enqueuedTime"
)

const microsoftEventHub = "Microsoft.EventHub"

// attributes is a read-only view over a span's attribute list.
type attributes map[attribute.Key]attribute.Value

func newAttributes(kvs []attribute.KeyValue) attributes {
	attrs := make(attributes, len(kvs))
	for _, kv := range kvs {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

// lookup reports the stringified value of key and whether it was set at all.
// A present attribute with a zero value is still present.
func (a attributes) lookup(key attribute.Key) (string, bool) {
	v, found := a[key]
	if !found {
		return "", false
	}
	return stringValue(v), true
}

func stringValue(v attribute.Value) string {
	var data []byte

	switch v.Type() {
	// slices are emitted as JSON lists
	case attribute.BOOLSLICE:
		data, _ = json.Marshal(v.AsBoolSlice())
	case attribute.INT64SLICE:
		data, _ = json.Marshal(v.AsInt64Slice())
	case attribute.FLOAT64SLICE:
		data, _ = json.Marshal(v.AsFloat64Slice())
	case attribute.STRINGSLICE:
		data, _ = json.Marshal(v.AsStringSlice())
	default:
		return v.Emit()
	}

	return string(data)
}
