package envelope

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	TagOperationID       = "ai.operation.id"
	TagOperationParentID = "ai.operation.parentId"
	TagOperationName     = "ai.operation.name"
	TagCloudRole         = "ai.cloud.role"
	TagCloudRoleInstance = "ai.cloud.roleInstance"
	TagInternalSdk       = "ai.internal.sdkVersion"
)

func createTags(base Context, span sdktrace.ReadOnlySpan, attrs attributes) map[string]string {
	tags := base.Tags()
	tags[TagOperationID] = span.SpanContext().TraceID().String()

	if parent := span.Parent(); parent.SpanID().IsValid() {
		tags[TagOperationParentID] = parent.SpanID().String()
	}

	if kind := span.SpanKind(); kind == trace.SpanKindServer || kind == trace.SpanKindConsumer {
		if method, found := attrs.lookup(grpcMethod); found {
			tags[TagOperationName] = method
		}

		method, hasMethod := attrs.lookup(httpMethod)
		route, hasRoute := attrs.lookup(httpRoute)
		if hasMethod && hasRoute {
			tags[TagOperationName] = method + " " + route
		}
	}

	return tags
}
