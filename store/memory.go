package store

import (
	"context"
	"sync"
)

// Memory is an in-process Collection. Documents are returned in insertion
// order. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]Document
}

// NewMemory creates an empty Memory collection.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

// Insert stores a copy of doc.
func (m *Memory) Insert(_ context.Context, doc Document) error {
	id := doc.UID()
	if id == "" {
		return ErrMissingUID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[id]; exists {
		return ErrAlreadyExists
	}
	m.docs[id] = deepCopy(doc).(Document)
	m.order = append(m.order, id)
	return nil
}

// Find returns copies of the documents matching c.
func (m *Memory) Find(_ context.Context, c Criteria) ([]Document, error) {
	if c.UID == nil {
		return nil, ErrUnboundCriteria
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Document{}
	for _, id := range m.order {
		doc := m.docs[id]
		if c.Matches(doc) {
			result = append(result, deepCopy(doc).(Document))
		}
	}
	return result, nil
}

// UpdateMany applies p to every matching document.
func (m *Memory) UpdateMany(_ context.Context, c Criteria, p Patch) (int, error) {
	if c.UID == nil {
		return 0, ErrUnboundCriteria
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, id := range m.order {
		doc := m.docs[id]
		if !c.Matches(doc) {
			continue
		}
		for path, v := range p {
			assign(doc, path, deepCopy(v))
		}
		n++
	}
	return n, nil
}

// RemoveMany deletes every matching document.
func (m *Memory) RemoveMany(_ context.Context, c Criteria) (int, error) {
	if c.UID == nil {
		return 0, ErrUnboundCriteria
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.order[:0]
	n := 0
	for _, id := range m.order {
		if c.Matches(m.docs[id]) {
			delete(m.docs, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return n, nil
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Reset drops every document.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.docs = make(map[string]Document)
}

var _ Collection = (*Memory)(nil)
