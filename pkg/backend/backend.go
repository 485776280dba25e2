// Package backend provides the shared backend of a wiki: the sentence store,
// the parsing engine binding and the display languages, built once from an
// effective configuration and shared by every session that uses it.
//
// A backend is either constructed directly for one instance, or constructed
// once per name and published into a process-wide registry from which any
// number of instances acquire it:
//
//	reg := backend.DefaultRegistry()
//	go backend.Provide(ctx, reg, "geo", hostParams)
//
//	acq, err := backend.Acquire(ctx, reg, "geo", instanceParams,
//	    backend.WithTimeout(time.Minute))
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/vango-dev/cnlwiki/pkg/engine"
	"github.com/vango-dev/cnlwiki/pkg/params"
	"github.com/vango-dev/cnlwiki/pkg/registry"
	"github.com/vango-dev/cnlwiki/pkg/store"
)

// Backend is the shared resource behind one or more wiki instances.
// Once constructed it is never modified; it is safe for concurrent use as
// long as its store and engine are.
type Backend struct {
	name      string
	params    params.Params
	store     store.Store
	engine    engine.Engine
	languages []string
	logger    *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Option configures backend construction.
type Option func(*options)

type options struct {
	name   string
	store  store.Store
	engine engine.Engine
	s3     store.S3API
	logger *slog.Logger
}

// WithName records the registry name of the backend.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithStore uses st instead of opening the configured data directory.
func WithStore(st store.Store) Option {
	return func(o *options) { o.store = st }
}

// WithEngine uses e instead of the configured engine binding.
func WithEngine(e engine.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithS3Client sets the client used for s3:// data directories.
func WithS3Client(c store.S3API) Option {
	return func(o *options) { o.s3 = c }
}

// WithLogger sets the backend logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New constructs a backend from its effective configuration.
func New(ctx context.Context, p params.Params, opts ...Option) (*Backend, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	raw := p.List(params.KeyLanguages)
	if len(raw) == 0 {
		raw = p.List(params.ContextPrefix + params.KeyLanguages)
	}
	languages, err := CanonicalLanguages(raw)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}

	st := o.store
	if st == nil {
		st, err = store.Open(ctx, p, store.OpenOptions{S3: o.s3})
		if err != nil {
			return nil, fmt.Errorf("backend: %w", err)
		}
	}

	eng := o.engine
	if eng == nil {
		eng = engine.FromParams(p)
	}

	b := &Backend{
		name:      o.name,
		params:    p.Clone(),
		store:     st,
		engine:    eng,
		languages: languages,
		logger:    o.logger.With("component", "backend", "backend", o.name),
	}
	b.logger.Info("backend ready",
		"ontology", p.GetOr(params.KeyOntology, store.DefaultOntology),
		"languages", languages,
		"engine", string(eng.Kind()))
	return b, nil
}

// Name returns the registry name, or "" for a directly constructed backend.
func (b *Backend) Name() string { return b.name }

// Parameters returns a copy of the backend's own configuration.
func (b *Backend) Parameters() params.Params { return b.params.Clone() }

// Store returns the sentence store.
func (b *Backend) Store() store.Store { return b.store }

// Engine returns the parsing engine binding.
func (b *Backend) Engine() engine.Engine { return b.engine }

// Languages returns the configured display languages, default first.
func (b *Backend) Languages() []string { return slices.Clone(b.languages) }

// DefaultLanguage returns the first configured display language.
func (b *Backend) DefaultLanguage() string { return b.languages[0] }

// Multilingual reports whether more than one display language is configured.
func (b *Backend) Multilingual() bool { return len(b.languages) > 1 }

// Close releases the store. It is safe to call more than once.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.store.Close()
		b.logger.Info("backend closed")
	})
	return b.closeErr
}

var defaultRegistry = registry.New[*Backend]()

// DefaultRegistry returns the process-wide backend registry.
func DefaultRegistry() *registry.Registry[*Backend] {
	return defaultRegistry
}

// Provide constructs the backend called name from p and publishes it into
// reg, unless it was already published. Concurrent calls for one name build
// it only once.
func Provide(ctx context.Context, reg *registry.Registry[*Backend], name string, p params.Params, opts ...Option) (*Backend, error) {
	opts = append(opts, WithName(name))
	return reg.Provide(ctx, name, func(ctx context.Context) (*Backend, error) {
		return New(ctx, p, opts...)
	})
}
