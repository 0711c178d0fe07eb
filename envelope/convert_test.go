package envelope

import (
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

var (
	testTraceID, _  = trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	testSpanID, _   = trace.SpanIDFromHex("00f067aa0ba902b7")
	testParentID, _ = trace.SpanIDFromHex("53995c3f42cd8ad8")
	testStart       = time.Date(2024, 3, 9, 13, 45, 12, 345_000_000, time.UTC)
)

func createSpan(kind trace.SpanKind, attrs ...attribute.KeyValue) tracetest.SpanStub {
	return tracetest.SpanStub{
		Name: "operation",
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: testTraceID,
			SpanID:  testSpanID,
		}),
		SpanKind:   kind,
		StartTime:  testStart,
		EndTime:    testStart.Add(1500 * time.Millisecond),
		Attributes: attrs,
	}
}

func convert(t *testing.T, stub tracetest.SpanStub) *Envelope {
	t.Helper()

	env, err := NewConverter().Convert(stub.Snapshot(), "ikey")
	require.NoError(t, err)
	require.NotNil(t, env)

	return env
}

func dependency(t *testing.T, env *Envelope) *RemoteDependencyData {
	t.Helper()

	require.Equal(t, DependencyBaseType, env.Data.BaseType)
	data, ok := env.Data.BaseData.(*RemoteDependencyData)
	require.True(t, ok)
	return data
}

func request(t *testing.T, env *Envelope) *RequestData {
	t.Helper()

	require.Equal(t, RequestBaseType, env.Data.BaseType)
	data, ok := env.Data.BaseData.(*RequestData)
	require.True(t, ok)
	return data
}

func TestKindDispatch(t *testing.T) {
	cases := []struct {
		Kind     trace.SpanKind
		Name     string
		BaseType string
	}{
		{trace.SpanKindClient, DependencyEnvelopeName, DependencyBaseType},
		{trace.SpanKindProducer, DependencyEnvelopeName, DependencyBaseType},
		{trace.SpanKindServer, RequestEnvelopeName, RequestBaseType},
		{trace.SpanKindConsumer, RequestEnvelopeName, RequestBaseType},
		{trace.SpanKindInternal, DependencyEnvelopeName, DependencyBaseType},
	}

	for _, tc := range cases {
		t.Run(tc.Kind.String(), func(t *testing.T) {
			env := convert(t, createSpan(tc.Kind))

			require.Equal(t, tc.Name, env.Name)
			require.Equal(t, tc.BaseType, env.Data.BaseType)
			require.Equal(t, 1, env.Version)
			require.Equal(t, "ikey", env.InstrumentationKey)
			require.Equal(t, "2024-03-09T13:45:12.345Z", env.Time)
		})
	}
}

func TestUnsupportedKind(t *testing.T) {
	for _, kind := range []trace.SpanKind{trace.SpanKindUnspecified, trace.SpanKind(42)} {
		t.Run("", func(t *testing.T) {
			env, err := NewConverter().Convert(createSpan(kind).Snapshot(), "ikey")

			require.Nil(t, env)
			require.ErrorIs(t, err, ErrUnsupportedSpanKind)

			var kindErr *UnsupportedSpanKindError
			require.True(t, errors.As(err, &kindErr))
			require.Equal(t, kind, kindErr.Kind)
		})
	}
}

func TestUnsupportedKindIsLogged(t *testing.T) {
	var entries []string
	logger := funcr.New(func(prefix, args string) {
		entries = append(entries, args)
	}, funcr.Options{})

	env, err := NewConverter(WithLogger(logger)).Convert(createSpan(trace.SpanKind(42)).Snapshot(), "ikey")

	require.Nil(t, env)
	require.ErrorIs(t, err, ErrUnsupportedSpanKind)

	require.Len(t, entries, 1)
	require.Contains(t, entries[0], `"msg"="cannot convert span"`)
	require.Contains(t, entries[0], `"error"=`)
	require.Contains(t, entries[0], `"spanId"="00f067aa0ba902b7"`)
}

func TestDependencyDefaults(t *testing.T) {
	for _, kind := range []trace.SpanKind{trace.SpanKindClient, trace.SpanKindProducer} {
		t.Run(kind.String(), func(t *testing.T) {
			data := dependency(t, convert(t, createSpan(kind)))

			require.Equal(t, "Dependency", data.Type)
			require.Equal(t, "operation", data.Name)
			require.Equal(t, "|4bf92f3577b34da6a3ce929d0e0e4736.00f067aa0ba902b7.", data.ID)
			require.True(t, data.Success)
			require.Equal(t, "0", data.ResultCode)
			require.Equal(t, "00:00:01.500", data.Duration)
			require.Equal(t, 1, data.Version)
			require.Empty(t, data.Target)
			require.Empty(t, data.Data)
		})
	}
}

func TestDependencyFailedStatus(t *testing.T) {
	stub := createSpan(trace.SpanKindClient)
	stub.Status = sdktrace.Status{Code: codes.Error, Description: "boom"}

	data := dependency(t, convert(t, stub))

	require.False(t, data.Success)
	require.Equal(t, "2", data.ResultCode)
}

func TestDependencyRefinements(t *testing.T) {
	cases := []struct {
		Name       string
		Attributes []attribute.KeyValue

		ExpectedName   string
		ExpectedType   string
		ExpectedResult string
		ExpectedTarget string
		ExpectedData   string
	}{
		{
			Name: "http url and method",
			Attributes: []attribute.KeyValue{
				attribute.String("http.url", "https://api.example.com/v1/items"),
				attribute.String("http.method", "GET"),
			},
			ExpectedName:   "GET /v1/items",
			ExpectedType:   "HTTP",
			ExpectedResult: "0",
			ExpectedTarget: "api.example.com",
			ExpectedData:   "https://api.example.com/v1/items",
		},
		{
			Name: "http status code",
			Attributes: []attribute.KeyValue{
				attribute.String("http.url", "http://localhost:8080/health?full=true"),
				attribute.Int("http.status_code", 503),
			},
			ExpectedName:   "operation",
			ExpectedType:   "HTTP",
			ExpectedResult: "503",
			ExpectedTarget: "localhost",
			ExpectedData:   "http://localhost:8080/health?full=true",
		},
		{
			Name: "malformed url keeps defaults",
			Attributes: []attribute.KeyValue{
				attribute.String("http.url", "::not a url"),
				attribute.String("http.method", "GET"),
			},
			ExpectedName:   "operation",
			ExpectedType:   "Dependency",
			ExpectedResult: "0",
		},
		{
			Name: "grpc status zero is present",
			Attributes: []attribute.KeyValue{
				attribute.Int("grpc.status_code", 0),
				attribute.String("grpc.method", "/catalog.Items/List"),
			},
			ExpectedName:   "operation",
			ExpectedType:   "GRPC",
			ExpectedResult: "0",
			ExpectedTarget: "/catalog.Items/List",
			ExpectedData:   "/catalog.Items/List",
		},
		{
			Name: "grpc status overrides http status",
			Attributes: []attribute.KeyValue{
				attribute.Int("http.status_code", 200),
				attribute.Int("grpc.status_code", 14),
			},
			ExpectedName:   "operation",
			ExpectedType:   "GRPC",
			ExpectedResult: "14",
		},
		{
			Name: "db statement without type",
			Attributes: []attribute.KeyValue{
				attribute.String("db.statement", "select * from items"),
			},
			ExpectedName:   "select * from items",
			ExpectedType:   "DB",
			ExpectedResult: "0",
			ExpectedData:   "select * from items",
		},
		{
			Name: "db statement wins over http",
			Attributes: []attribute.KeyValue{
				attribute.Int("http.status_code", 500),
				attribute.String("http.url", "https://api.example.com/v1/items"),
				attribute.String("http.method", "POST"),
				attribute.String("db.statement", "insert into items values (?)"),
				attribute.String("db.type", "postgresql"),
				attribute.String("db.instance", "inventory"),
			},
			ExpectedName:   "insert into items values (?)",
			ExpectedType:   "postgresql",
			ExpectedResult: "500",
			ExpectedTarget: "inventory",
			ExpectedData:   "insert into items values (?)",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			data := dependency(t, convert(t, createSpan(trace.SpanKindClient, tc.Attributes...)))

			require.Equal(t, tc.ExpectedName, data.Name)
			require.Equal(t, tc.ExpectedType, data.Type)
			require.Equal(t, tc.ExpectedResult, data.ResultCode)
			require.Equal(t, tc.ExpectedTarget, data.Target)
			require.Equal(t, tc.ExpectedData, data.Data)
		})
	}
}

func TestInProc(t *testing.T) {
	stub := createSpan(trace.SpanKindInternal, attribute.Int("http.status_code", 500))
	stub.Status = sdktrace.Status{Code: codes.Error}

	data := dependency(t, convert(t, stub))

	require.Equal(t, "InProc", data.Type)
	require.True(t, data.Success)
	require.Equal(t, "500", data.ResultCode)
}

func TestRequestRefinements(t *testing.T) {
	cases := []struct {
		Name       string
		Attributes []attribute.KeyValue

		ExpectedName     string
		ExpectedResponse string
		ExpectedURL      string
	}{
		{
			Name:             "no attributes",
			ExpectedName:     "operation",
			ExpectedResponse: "0",
		},
		{
			Name: "method only",
			Attributes: []attribute.KeyValue{
				attribute.String("http.method", "DELETE"),
			},
			ExpectedName:     "DELETE",
			ExpectedResponse: "0",
		},
		{
			Name: "method and route",
			Attributes: []attribute.KeyValue{
				attribute.String("http.method", "GET"),
				attribute.String("http.route", "/items/{id}"),
				attribute.String("http.url", "https://shop.example.com/items/42"),
				attribute.Int("http.status_code", 404),
			},
			ExpectedName:     "GET /items/{id}",
			ExpectedResponse: "404",
			ExpectedURL:      "https://shop.example.com/items/42",
		},
		{
			Name: "method and url",
			Attributes: []attribute.KeyValue{
				attribute.String("http.method", "PUT"),
				attribute.String("http.url", "https://shop.example.com/items/42"),
			},
			ExpectedName:     "PUT /items/42",
			ExpectedResponse: "0",
			ExpectedURL:      "https://shop.example.com/items/42",
		},
		{
			Name: "status code without method is ignored",
			Attributes: []attribute.KeyValue{
				attribute.Int("http.status_code", 500),
			},
			ExpectedName:     "operation",
			ExpectedResponse: "0",
		},
		{
			Name: "grpc",
			Attributes: []attribute.KeyValue{
				attribute.Int("grpc.status_code", 0),
				attribute.String("grpc.method", "/catalog.Items/Get"),
			},
			ExpectedName:     "operation",
			ExpectedResponse: "0",
			ExpectedURL:      "/catalog.Items/Get",
		},
		{
			Name: "grpc status overrides http status",
			Attributes: []attribute.KeyValue{
				attribute.String("http.method", "POST"),
				attribute.Int("http.status_code", 200),
				attribute.Int("grpc.status_code", 5),
			},
			ExpectedName:     "POST",
			ExpectedResponse: "5",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			for _, kind := range []trace.SpanKind{trace.SpanKindServer, trace.SpanKindConsumer} {
				data := request(t, convert(t, createSpan(kind, tc.Attributes...)))

				require.Equal(t, tc.ExpectedName, data.Name)
				require.Equal(t, tc.ExpectedResponse, data.ResponseCode)
				require.Equal(t, tc.ExpectedURL, data.URL)
				require.Equal(t, "|4bf92f3577b34da6a3ce929d0e0e4736.00f067aa0ba902b7.", data.ID)
				require.True(t, data.Success)
			}
		})
	}
}

func TestIdentifierFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^\|[0-9a-f]{32}\.[0-9a-f]{16}\.$`)
	tp := sdktrace.NewTracerProvider()
	tr := tp.Tracer("tests")

	for _, kind := range []trace.SpanKind{
		trace.SpanKindClient, trace.SpanKindServer, trace.SpanKindProducer,
		trace.SpanKindConsumer, trace.SpanKindInternal,
	} {
		_, span := tr.Start(t.Context(), "random", trace.WithSpanKind(kind))
		span.End()

		ro := span.(sdktrace.ReadOnlySpan)
		env, err := NewConverter().Convert(ro, "ikey")
		require.NoError(t, err)

		var id string
		switch data := env.Data.BaseData.(type) {
		case *RequestData:
			id = data.ID
		case *RemoteDependencyData:
			id = data.ID
		}

		sc := ro.SpanContext()
		require.Regexp(t, pattern, id)
		require.Equal(t, "|"+sc.TraceID().String()+"."+sc.SpanID().String()+".", id)
	}
}

func TestNamespaceOverride(t *testing.T) {
	t.Run("internal span", func(t *testing.T) {
		data := dependency(t, convert(t, createSpan(trace.SpanKindInternal,
			attribute.String("az.namespace", "Microsoft.Storage"),
		)))
		require.Equal(t, "InProc | Microsoft.Storage", data.Type)
	})

	t.Run("client span is untouched", func(t *testing.T) {
		data := dependency(t, convert(t, createSpan(trace.SpanKindClient,
			attribute.String("az.namespace", "Microsoft.Storage"),
		)))
		require.Equal(t, "Dependency", data.Type)
	})

	t.Run("namespace ends up in properties", func(t *testing.T) {
		data := dependency(t, convert(t, createSpan(trace.SpanKindInternal,
			attribute.String("az.namespace", "Microsoft.Storage"),
		)))
		require.Equal(t, "Microsoft.Storage", data.Properties["az.namespace"])
	})
}

func TestEnvelopeJSON(t *testing.T) {
	stub := createSpan(trace.SpanKindClient,
		attribute.String("http.url", "https://api.example.com/v1/items"),
		attribute.String("http.method", "GET"),
		attribute.String("component", "http"),
	)
	stub.Parent = trace.NewSpanContext(trace.SpanContextConfig{TraceID: testTraceID, SpanID: testParentID})

	env := convert(t, stub)

	b, err := json.Marshal(env)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))
	require.Equal(t, float64(1), wire["ver"])
	require.Equal(t, DependencyEnvelopeName, wire["name"])
	require.Equal(t, "ikey", wire["iKey"])
	require.Equal(t, "2024-03-09T13:45:12.345Z", wire["time"])

	tags := wire["tags"].(map[string]any)
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", tags["ai.operation.id"])
	require.Equal(t, "53995c3f42cd8ad8", tags["ai.operation.parentId"])

	data := wire["data"].(map[string]any)
	require.Equal(t, "RemoteDependencyData", data["baseType"])
	base := data["baseData"].(map[string]any)
	require.Equal(t, "GET /v1/items", base["name"])
	require.Equal(t, map[string]any{"component": "http"}, base["properties"])
	require.Equal(t, map[string]any{}, base["measurements"])

	var decoded Envelope
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, env, &decoded)
}
