package storage

import (
	"context"
	"slices"
	"sync"

	"spanbridge/envelope"
)

var _ Spool = &Memory{}

type Memory struct {
	mu      sync.Mutex
	nextID  int64
	records []Record
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Push(ctx context.Context, envelopes []*envelope.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, env := range envelopes {
		m.nextID++
		m.records = append(m.records, Record{ID: m.nextID, Envelope: env})
	}

	return nil
}

func (m *Memory) Peek(ctx context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.records[:min(limit, len(m.records))]), nil
}

func (m *Memory) Remove(ctx context.Context, ids ...int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = slices.DeleteFunc(m.records, func(r Record) bool {
		return slices.Contains(ids, r.ID)
	})

	return nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.records), nil
}
