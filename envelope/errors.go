package envelope

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"
)

var ErrUnsupportedSpanKind = errors.New("unsupported span kind")

type UnsupportedSpanKindError struct {
	Kind trace.SpanKind
}

func (e *UnsupportedSpanKindError) Error() string {
	return fmt.Sprintf("unsupported span kind %d", int(e.Kind))
}

func (e *UnsupportedSpanKindError) Is(target error) bool {
	return target == ErrUnsupportedSpanKind
}
