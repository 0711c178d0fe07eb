package envelope

import (
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	typeDependency = "Dependency"
	typeHTTP       = "HTTP"
	typeGRPC       = "GRPC"
	typeDB         = "DB"
	typeInProc     = "InProc"
)

// canonical status codes, OK being the only successful one
const (
	statusOK      = 0
	statusUnknown = 2
)

func statusCode(s sdktrace.Status) int {
	if s.Code == codes.Error {
		return statusUnknown
	}
	return statusOK
}

func operationID(span sdktrace.ReadOnlySpan) string {
	sc := span.SpanContext()
	return "|" + sc.TraceID().String() + "." + sc.SpanID().String() + "."
}

func spanDuration(span sdktrace.ReadOnlySpan) string {
	return FormatDuration(span.EndTime().Sub(span.StartTime()))
}

// parseURL returns nil when raw is not an absolute URL; callers skip the
// refinements depending on it.
func parseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return nil
	}
	return u
}

func urlPath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

func createDependencyData(span sdktrace.ReadOnlySpan, attrs attributes) *RemoteDependencyData {
	code := statusCode(span.Status())
	data := &RemoteDependencyData{
		Version:    schemaVersion,
		ID:         operationID(span),
		Name:       span.Name(),
		Duration:   spanDuration(span),
		Success:    code == statusOK,
		ResultCode: strconv.Itoa(code),
		Type:       typeDependency,
	}

	if status, found := attrs.lookup(httpStatusCode); found {
		data.Type = typeHTTP
		data.ResultCode = status
	}

	if status, found := attrs.lookup(grpcStatusCode); found {
		data.Type = typeGRPC
		data.ResultCode = status
	}

	if method, found := attrs.lookup(grpcMethod); found {
		data.Target = method
		data.Data = method
	}

	if raw, found := attrs.lookup(httpURL); found {
		if u := parseURL(raw); u != nil {
			data.Target = u.Hostname()
			data.Data = u.String()
			if data.Type == typeDependency {
				data.Type = typeHTTP
			}

			if method, found := attrs.lookup(httpMethod); found {
				data.Name = method + " " + urlPath(u)
			}
		}
	}

	// evaluated last, a database statement wins over http and grpc details
	if statement, found := attrs.lookup(dbStatement); found {
		data.Name = statement
		data.Data = statement
		data.Type = typeDB

		if dbt, found := attrs.lookup(dbType); found {
			data.Type = dbt
		}
		if instance, found := attrs.lookup(dbInstance); found {
			data.Target = instance
		}
	}

	return data
}

func createInProcData(span sdktrace.ReadOnlySpan, attrs attributes) *RemoteDependencyData {
	data := createDependencyData(span, attrs)
	data.Type = typeInProc
	data.Success = true
	return data
}

func createRequestData(span sdktrace.ReadOnlySpan, attrs attributes) *RequestData {
	code := statusCode(span.Status())
	data := &RequestData{
		Version:      schemaVersion,
		ID:           operationID(span),
		Name:         span.Name(),
		Duration:     spanDuration(span),
		Success:      code == statusOK,
		ResponseCode: strconv.Itoa(code),
	}

	if method, found := attrs.lookup(httpMethod); found {
		data.Name = method

		if status, found := attrs.lookup(httpStatusCode); found {
			data.ResponseCode = status
		}

		raw, hasURL := attrs.lookup(httpURL)
		if hasURL {
			data.URL = raw
		}

		if route, found := attrs.lookup(httpRoute); found {
			data.Name = method + " " + route
		} else if hasURL {
			if u := parseURL(raw); u != nil {
				data.Name = method + " " + urlPath(u)
			}
		}
	}

	if status, found := attrs.lookup(grpcStatusCode); found {
		data.ResponseCode = status
	}

	if method, found := attrs.lookup(grpcMethod); found {
		data.URL = method
	}

	return data
}
