package tracing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func ErrorCtx(ctx context.Context, err error) error {
	span := trace.SpanFromContext(ctx)

	return Error(span, err)
}

func Errorf(s trace.Span, format string, a ...any) error {
	return Error(s, fmt.Errorf(format, a...))
}

// Error marks the span failed and passes err through. A nil err is a no-op.
func Error(s trace.Span, err error) error {
	if err == nil {
		return nil
	}

	s.RecordError(err)
	s.SetStatus(codes.Error, err.Error())

	return err
}

// HashedString records a value which identifies something without revealing
// it, such as an instrumentation key.
func HashedString(key string, value string) attribute.KeyValue {
	sha := sha256.New()
	sha.Write([]byte(value))
	hash := sha.Sum(nil)

	return attribute.String(key, hex.EncodeToString(hash))
}
