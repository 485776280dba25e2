// Package store exposes sentence data through a read-only query contract.
//
// A Sentence carries per-language text, an ordered set of alternative
// phrasings and ordered, named detail sections. Stores are populated from a
// data directory: YAML documents on disk, a SQLite database, or YAML
// documents in an S3 bucket.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNotFound is returned when a sentence ID is unknown.
	ErrNotFound = errors.New("store: sentence not found")

	// ErrClosed is returned by a store after Close.
	ErrClosed = errors.New("store: closed")
)

// TextVariant is one rendered phrasing of a sentence in one language.
type TextVariant struct {
	Text string `json:"text" yaml:"text"`
}

// DetailSection is a labeled block of rich text attached to a sentence.
type DetailSection struct {
	Name     string `json:"name" yaml:"name"`
	RichText string `json:"richText" yaml:"richText"`
}

// Sentence is the read-only view of a sentence used by page composition.
type Sentence interface {
	// ID identifies the sentence. Two sentences with the same ID are the
	// same logical sentence.
	ID() string

	// Text returns the canonical text in lang.
	Text(lang string) string

	// Variants returns the phrasings in lang, canonical first.
	Variants(lang string) []TextVariant

	// Details returns the detail sections in lang in source order.
	// It returns nil when there are none.
	Details(lang string) []DetailSection

	// HasTranslations reports whether multilingual translations exist.
	HasTranslations() bool
}

// Store looks up sentences.
// Implementations must be safe for concurrent use.
type Store interface {
	// Sentence returns the sentence with the given ID or ErrNotFound.
	Sentence(ctx context.Context, id string) (Sentence, error)

	// IDs returns all sentence IDs in sorted order.
	IDs(ctx context.Context) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// Record is the plain data form of a sentence. It implements Sentence.
type Record struct {
	SentenceID string `json:"id" yaml:"id"`

	// Texts maps a language to its phrasings, canonical first.
	Texts map[string][]string `json:"texts" yaml:"texts"`

	// Sections maps a language to its detail sections.
	Sections map[string][]DetailSection `json:"details,omitempty" yaml:"details,omitempty"`

	// Translations marks the sentence as translated even when Texts only
	// holds one language.
	Translations bool `json:"translations,omitempty" yaml:"translations,omitempty"`
}

var _ Sentence = (*Record)(nil)

// ID implements Sentence.
func (r *Record) ID() string { return r.SentenceID }

// Text implements Sentence.
func (r *Record) Text(lang string) string {
	if texts := r.Texts[lang]; len(texts) > 0 {
		return texts[0]
	}
	return ""
}

// Variants implements Sentence.
func (r *Record) Variants(lang string) []TextVariant {
	texts := r.Texts[lang]
	if len(texts) == 0 {
		return nil
	}
	out := make([]TextVariant, len(texts))
	for i, t := range texts {
		out[i] = TextVariant{Text: t}
	}
	return out
}

// Details implements Sentence.
func (r *Record) Details(lang string) []DetailSection {
	sections := r.Sections[lang]
	if len(sections) == 0 {
		return nil
	}
	out := make([]DetailSection, len(sections))
	copy(out, sections)
	return out
}

// HasTranslations implements Sentence.
func (r *Record) HasTranslations() bool {
	return r.Translations || len(r.Texts) > 1
}

// Languages returns the languages the record has text for, sorted.
func (r *Record) Languages() []string {
	langs := make([]string, 0, len(r.Texts))
	for lang := range r.Texts {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Validate checks that the record has an ID and at least one phrasing per
// language it lists.
func (r *Record) Validate() error {
	if r.SentenceID == "" {
		return errors.New("store: record without id")
	}
	for lang, texts := range r.Texts {
		if len(texts) == 0 {
			return fmt.Errorf("store: sentence %q has no text for %q", r.SentenceID, lang)
		}
	}
	return nil
}
