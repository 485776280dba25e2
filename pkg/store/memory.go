package store

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk layout of a sentence collection.
//
//	sentences:
//	  - id: s1
//	    texts:
//	      en: ["Every country is a region.", "Each country is a region."]
//	    details:
//	      en:
//	        - name: details_logic
//	          richText: "<code>...</code>"
type Document struct {
	Sentences []Record `json:"sentences" yaml:"sentences"`
}

// DecodeDocument reads a YAML (or JSON) sentence document from r.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &doc, nil
		}
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	for i := range doc.Sentences {
		if err := doc.Sentences[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

// MemoryStore holds sentences in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	closed  bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding the given records.
// Later records replace earlier ones with the same ID.
func NewMemoryStore(records ...Record) *MemoryStore {
	m := &MemoryStore{records: make(map[string]*Record, len(records))}
	for i := range records {
		rec := records[i]
		m.records[rec.SentenceID] = &rec
	}
	return m
}

// LoadDocument creates a store from a YAML sentence document.
func LoadDocument(r io.Reader) (*MemoryStore, error) {
	doc, err := DecodeDocument(r)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(doc.Sentences...), nil
}

// Sentence implements Store.
func (m *MemoryStore) Sentence(ctx context.Context, id string) (Sentence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// IDs implements Store.
func (m *MemoryStore) IDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Records returns copies of all records sorted by ID.
func (m *MemoryStore) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentenceID < out[j].SentenceID })
	return out
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
