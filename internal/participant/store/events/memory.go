package events

import (
	"context"
	"sync"

	"registrar/internal/participant/models"
)

// InMemoryStore keeps every stream in process memory. Contents are lost on restart.
// Events are cloned on the way in and out.
type InMemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]models.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{streams: make(map[string][]models.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, aggregateType string, event *models.Event) error {
	key := streamKey(aggregateType, event.AggregateID)

	s.mu.Lock()
	defer s.mu.Unlock()
	event.Sequence = int64(len(s.streams[key]) + 1)
	s.streams[key] = append(s.streams[key], event.Clone())
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, aggregateType, aggregateID string) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stream := s.streams[streamKey(aggregateType, aggregateID)]
	out := make([]models.Event, len(stream))
	for i, e := range stream {
		out[i] = e.Clone()
	}
	return out, nil
}
