package storage

import (
	"context"

	"spanbridge/envelope"
)

// Record is a spooled envelope and the id it is stored under.
type Record struct {
	ID       int64
	Envelope *envelope.Envelope
}

// Spool keeps envelopes that could not be delivered until a later flush.
// Records are returned oldest first.
type Spool interface {
	Push(ctx context.Context, envelopes []*envelope.Envelope) error
	Peek(ctx context.Context, limit int) ([]Record, error)
	Remove(ctx context.Context, ids ...int64) error
	Count(ctx context.Context) (int, error)
}
