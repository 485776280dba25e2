package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vango-dev/cnlwiki/pkg/metrics"
	"github.com/vango-dev/cnlwiki/pkg/params"
	"github.com/vango-dev/cnlwiki/pkg/registry"
)

const (
	// DefaultPollInterval is how often a waiting Acquire re-checks the registry.
	DefaultPollInterval = time.Second

	// DefaultAcquireTimeout bounds how long Acquire waits for a named backend.
	DefaultAcquireTimeout = 2 * time.Minute

	// waitLogEvery is how many polls pass between "still waiting" logs.
	waitLogEvery = 30
)

// ErrStartupUnavailable is returned when a named backend is not published
// within the acquire timeout.
var ErrStartupUnavailable = errors.New("backend: startup unavailable")

// AcquireError describes a failed acquisition.
type AcquireError struct {
	Name   string
	Waited time.Duration
	Err    error
}

// Error returns the error message with the backend name.
func (e *AcquireError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("backend: acquire: %v", e.Err)
	}
	return fmt.Sprintf("backend: acquire %q after %s: %v", e.Name, e.Waited.Round(time.Millisecond), e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *AcquireError) Unwrap() error {
	return e.Err
}

// Status is the outcome of an acquisition that did not fail.
type Status int

const (
	// StatusAcquired means a backend and its effective configuration are set.
	StatusAcquired Status = iota

	// StatusCancelled means the wait was interrupted by shutdown. It is not
	// an error; the caller should stop starting up.
	StatusCancelled
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusAcquired:
		return "acquired"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Acquisition is the result of Acquire.
type Acquisition struct {
	Status Status

	// Backend is the acquired backend. Nil when cancelled.
	Backend *Backend

	// Config is the effective configuration for sessions: the backend's
	// parameters overlaid by the instance parameters.
	Config params.Params

	// Constructed is true when the backend was built by this call and is
	// therefore owned (and closed) by the caller.
	Constructed bool
}

// AcquireOption configures Acquire.
type AcquireOption func(*acquireOptions)

type acquireOptions struct {
	timeout      time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
	metrics      *metrics.Collector
	backendOpts  []Option
}

// WithTimeout bounds the wait for a named backend. Zero waits until the
// context is done.
func WithTimeout(d time.Duration) AcquireOption {
	return func(o *acquireOptions) { o.timeout = d }
}

// WithPollInterval sets how often the registry is re-checked while waiting.
func WithPollInterval(d time.Duration) AcquireOption {
	return func(o *acquireOptions) { o.pollInterval = d }
}

// WithAcquireLogger sets the logger used while acquiring.
func WithAcquireLogger(l *slog.Logger) AcquireOption {
	return func(o *acquireOptions) { o.logger = l }
}

// WithMetrics records acquisitions on c.
func WithMetrics(c *metrics.Collector) AcquireOption {
	return func(o *acquireOptions) { o.metrics = c }
}

// WithBackendOptions passes options to New when Acquire constructs a backend.
func WithBackendOptions(opts ...Option) AcquireOption {
	return func(o *acquireOptions) { o.backendOpts = append(o.backendOpts, opts...) }
}

// tracerName identifies spans started by this package.
const tracerName = "github.com/vango-dev/cnlwiki/pkg/backend"

// Acquire returns the backend an instance should use.
//
// With an empty name a new backend is constructed from p without touching
// the registry. Otherwise Acquire waits until name is published in reg,
// re-checking at the poll interval and waking immediately on publication.
// The effective configuration is the backend's parameters overlaid by p.
//
// Cancelling ctx ends the wait with StatusCancelled and a nil error. When the
// timeout (or a ctx deadline) expires first, the error wraps
// ErrStartupUnavailable; a requested name never falls back to a freshly
// constructed backend.
func Acquire(ctx context.Context, reg *registry.Registry[*Backend], name string, p params.Params, opts ...AcquireOption) (Acquisition, error) {
	o := acquireOptions{
		timeout:      DefaultAcquireTimeout,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	logger := o.logger.With("component", "backend_acquire")

	mode := "lookup"
	if name == "" {
		mode = "construct"
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "backend.acquire")
	span.SetAttributes(
		attribute.String("cnlwiki.backend", name),
		attribute.String("cnlwiki.acquire_mode", mode),
	)
	defer span.End()

	start := time.Now()
	acq, err := acquire(ctx, reg, name, p, o, logger)
	waited := time.Since(start)

	result := acq.Status.String()
	switch {
	case errors.Is(err, ErrStartupUnavailable):
		result = "unavailable"
	case err != nil:
		result = "failed"
	}
	o.metrics.ObserveAcquire(mode, result, waited)
	span.SetAttributes(attribute.String("cnlwiki.acquire_result", result))

	if err != nil {
		err = &AcquireError{Name: name, Waited: waited, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Acquisition{}, err
	}
	return acq, nil
}

func acquire(ctx context.Context, reg *registry.Registry[*Backend], name string, p params.Params, o acquireOptions, logger *slog.Logger) (Acquisition, error) {
	if name == "" {
		logger.Info("create backend")
		b, err := New(ctx, p, append([]Option{WithLogger(o.logger)}, o.backendOpts...)...)
		if err != nil {
			return Acquisition{}, err
		}
		return Acquisition{
			Status:      StatusAcquired,
			Backend:     b,
			Config:      p.Clone(),
			Constructed: true,
		}, nil
	}

	logger = logger.With("backend", name)
	logger.Info("use backend")

	var timeout <-chan time.Time
	if o.timeout > 0 {
		timer := time.NewTimer(o.timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	ready := reg.Ready(name)

	for polls := 0; ; polls++ {
		if b, ok := reg.Lookup(name); ok {
			return Acquisition{
				Status:  StatusAcquired,
				Backend: b,
				Config:  params.Merge(b.Parameters(), p),
			}, nil
		}
		if polls > 0 && polls%waitLogEvery == 0 {
			logger.Warn("still waiting for backend", "polls", polls)
		}

		select {
		case <-ready:
			// Re-arm in case the name is removed before the next lookup.
			ready = reg.Ready(name)
		case <-ticker.C:
		case <-timeout:
			return Acquisition{}, ErrStartupUnavailable
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Acquisition{}, fmt.Errorf("%w: %w", ErrStartupUnavailable, ctx.Err())
			}
			logger.Info("backend wait cancelled")
			return Acquisition{Status: StatusCancelled}, nil
		}
	}
}
