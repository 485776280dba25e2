package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/cnlwiki/pkg/backend"
	"github.com/vango-dev/cnlwiki/pkg/metrics"
	"github.com/vango-dev/cnlwiki/pkg/params"
)

// Factory builds instances for one deployed application.
type Factory struct {
	name    string
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
	newID   func() string
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithFactoryLogger sets the logger. Default: slog.Default().
func WithFactoryLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// WithFactoryMetrics counts created instances on c.
func WithFactoryMetrics(c *metrics.Collector) FactoryOption {
	return func(f *Factory) { f.metrics = c }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) { f.now = now }
}

// WithIDGenerator replaces the random session ID source, for tests.
func WithIDGenerator(gen func() string) FactoryOption {
	return func(f *Factory) { f.newID = gen }
}

// NewFactory returns a factory for the deployed application called name.
func NewFactory(name string, opts ...FactoryOption) *Factory {
	f := &Factory{
		name:  name,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "session_factory", "instance", name)
	return f
}

// Name returns the deployed application name.
func (f *Factory) Name() string { return f.name }

// Create builds an instance bound to b with its own copy of cfg. The initial
// display language is the backend's first configured language.
func (f *Factory) Create(b *backend.Backend, cfg params.Params) *Instance {
	now := f.now()
	inst := &Instance{
		id:         f.newID(),
		backend:    b,
		config:     cfg.Clone(),
		createdAt:  now,
		language:   b.DefaultLanguage(),
		lastActive: now,
	}
	f.logger.Info("new application instance", "ontology", cfg.Get(params.KeyOntology), "session_id", inst.id)
	f.metrics.SessionCreated(f.name)
	return inst
}
