// Package cnlwiki serves controlled-natural-language wikis.
//
// An App mounts one or more wiki instances on a chi router. Each instance is
// bound to a backend (sentence store, parsing engine and display languages),
// either constructed privately or shared by name through the backend
// registry. Every browser session gets its own session instance; requests are
// normalized before page logic runs and sentence pages are composed and
// rendered to HTML.
//
//	app := cnlwiki.New(cnlwiki.DefaultConfig())
//	if err := app.Start(ctx, descriptor); err != nil {
//	    log.Fatal(err)
//	}
//	app.Run(ctx, ":8080")
package cnlwiki

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/cnlwiki/internal/config"
	"github.com/vango-dev/cnlwiki/pkg/assets"
	"github.com/vango-dev/cnlwiki/pkg/backend"
	"github.com/vango-dev/cnlwiki/pkg/metrics"
	"github.com/vango-dev/cnlwiki/pkg/params"
	"github.com/vango-dev/cnlwiki/pkg/registry"
	"github.com/vango-dev/cnlwiki/pkg/routepath"
)

// Process-level paths. Instances cannot be mounted on them.
const (
	MetricsPath = "/metrics"
	HealthPath  = "/healthz"
)

var (
	// ErrPathInUse is returned when an instance is mounted on a taken path.
	ErrPathInUse = errors.New("cnlwiki: mount path in use")

	// ErrStopped is returned by Mount after Shutdown.
	ErrStopped = errors.New("cnlwiki: app is stopped")

	// ErrBackendFailed is returned by Start for instances whose declared
	// backend could not be constructed.
	ErrBackendFailed = errors.New("cnlwiki: backend failed to start")
)

// App is an HTTP handler serving mounted wiki instances.
type App struct {
	config   Config
	logger   *slog.Logger
	registry *registry.Registry[*backend.Backend]
	metrics  *metrics.Collector
	assets   *assets.Bundle
	router   atomic.Pointer[chi.Mux]

	mu        sync.Mutex
	instances []*Instance
	pending   map[string]bool
	owned     []*backend.Backend
	server    *http.Server
	stopped   bool
}

// New creates an application with the given configuration.
func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = backend.DefaultRegistry()
	}
	if cfg.AcquireTimeout == 0 {
		cfg.AcquireTimeout = backend.DefaultAcquireTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = backend.DefaultPollInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.TracerName == "" {
		cfg.TracerName = "cnlwiki"
	}

	a := &App{
		config:   cfg,
		logger:   cfg.Logger.With("component", "app"),
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		assets:   assets.Default(!cfg.DevMode),
		pending:  make(map[string]bool),
	}
	a.router.Store(a.buildRouter())
	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.Load().ServeHTTP(w, r)
}

// Handler returns the App as an http.Handler.
func (a *App) Handler() http.Handler {
	return a
}

// Config returns the app configuration.
func (a *App) Config() Config {
	return a.config
}

// Instances returns the mounted instances in mount order.
func (a *App) Instances() []*Instance {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.instances)
}

// PublishBackend constructs the backend called name from p and publishes it
// into the registry. When name is already published the existing backend is
// returned. Backends constructed here are closed by Shutdown.
func (a *App) PublishBackend(ctx context.Context, name string, p params.Params) (*backend.Backend, error) {
	_, existed := a.registry.Lookup(name)
	b, err := backend.Provide(ctx, a.registry, name, p, a.backendOptions()...)
	if errors.Is(err, registry.ErrAlreadyPublished) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cnlwiki: publish backend %q: %w", name, err)
	}
	if !existed {
		a.own(b)
		a.logger.Info("backend published", "backend", name)
	}
	return b, nil
}

func (a *App) backendOptions() []backend.Option {
	opts := []backend.Option{backend.WithLogger(a.config.Logger)}
	if a.config.S3 != nil {
		opts = append(opts, backend.WithS3Client(a.config.S3))
	}
	return opts
}

func (a *App) own(b *backend.Backend) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !slices.Contains(a.owned, b) {
		a.owned = append(a.owned, b)
	}
}

// InstanceSpec describes an instance to mount.
type InstanceSpec struct {
	// Name identifies the instance in logs, metrics and cookies.
	Name string

	// Path is the mount path.
	Path string

	// Params are the resolved instance parameters. A non-empty
	// params.KeyBackend entry binds the instance to that named backend.
	Params params.Params
}

// Mount acquires the instance's backend and mounts the instance. It blocks
// while a named backend has not been published yet. When ctx is cancelled
// during that wait the returned error wraps ctx.Err().
func (a *App) Mount(ctx context.Context, spec InstanceSpec) (*Instance, error) {
	path, err := routepath.Canonicalize(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("cnlwiki: mount %s: %w", spec.Name, err)
	}
	spec.Path = path
	if spec.Name == "" {
		return nil, fmt.Errorf("cnlwiki: instance at %s has no name", spec.Path)
	}
	if spec.Path == MetricsPath || spec.Path == HealthPath {
		return nil, fmt.Errorf("%w: %s is reserved", ErrPathInUse, spec.Path)
	}
	if err := a.reserve(spec.Path); err != nil {
		return nil, err
	}

	acq, err := backend.Acquire(ctx, a.registry, spec.Params.Get(params.KeyBackend), spec.Params,
		backend.WithTimeout(max(a.config.AcquireTimeout, 0)),
		backend.WithPollInterval(a.config.PollInterval),
		backend.WithAcquireLogger(a.config.Logger.With("instance", spec.Name)),
		backend.WithMetrics(a.metrics),
		backend.WithBackendOptions(a.backendOptions()...),
	)
	if err != nil {
		a.release(spec.Path)
		return nil, fmt.Errorf("cnlwiki: mount %s: %w", spec.Name, err)
	}
	if acq.Status == backend.StatusCancelled {
		a.release(spec.Path)
		return nil, fmt.Errorf("cnlwiki: mount %s: %w", spec.Name, context.Cause(ctx))
	}
	if acq.Constructed {
		a.own(acq.Backend)
	}

	inst := newInstance(a, spec, acq)

	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, spec.Path)
	if a.stopped {
		inst.sessions.Shutdown(context.Background())
		if acq.Constructed {
			acq.Backend.Close()
		}
		return nil, ErrStopped
	}
	a.instances = append(a.instances, inst)
	a.router.Store(a.buildRouter())
	a.logger.Info("instance mounted",
		"instance", spec.Name,
		"path", spec.Path,
		"backend", acq.Backend.Name(),
		"status", acq.Status.String())
	return inst, nil
}

// reserve claims path for a Mount in progress so two concurrent Mount calls
// cannot both wait for a backend on one path.
func (a *App) reserve(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return ErrStopped
	}
	if a.pending[path] {
		return fmt.Errorf("%w: %s", ErrPathInUse, path)
	}
	for _, inst := range a.instances {
		if inst.path == path {
			return fmt.Errorf("%w: %s", ErrPathInUse, path)
		}
	}
	a.pending[path] = true
	return nil
}

func (a *App) release(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, path)
}

// buildRouter returns a router for the process paths and the mounted
// instances. Callers hold a.mu.
func (a *App) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Get(HealthPath, a.serveHealth)
	r.Handle(MetricsPath, promhttp.HandlerFor(a.config.Gatherer, promhttp.HandlerOpts{}))
	for _, inst := range a.instances {
		r.Mount(inst.path, inst)
	}
	return r
}

// Start publishes the descriptor's backends and mounts its instances. Both
// run concurrently: instances bound to a named backend wait until it is
// published. An instance bound to a declared backend whose construction
// fails stops waiting and fails with ErrBackendFailed. Start returns nil when
// ctx is cancelled during startup.
func (a *App) Start(ctx context.Context, desc *config.Config) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	// Instances bound to a declared backend stop waiting once it fails.
	dependents := make(map[string]context.Context, len(desc.Backends))
	abort := make(map[string]context.CancelCauseFunc, len(desc.Backends))
	for _, b := range desc.Backends {
		dependents[b.Name], abort[b.Name] = context.WithCancelCause(ctx)
	}
	defer func() {
		for _, cancel := range abort {
			cancel(nil)
		}
	}()

	for _, b := range desc.Backends {
		wg.Add(1)
		go func(b config.BackendConfig) {
			defer wg.Done()
			if _, err := a.PublishBackend(ctx, b.Name, desc.BackendParams(b)); err != nil {
				fail(err)
				abort[b.Name](fmt.Errorf("%w: %q", ErrBackendFailed, b.Name))
			}
		}(b)
	}
	for _, inst := range desc.Instances {
		mountCtx := ctx
		if dctx, ok := dependents[inst.Backend]; ok {
			mountCtx = dctx
		}
		wg.Add(1)
		go func(inst config.InstanceConfig) {
			defer wg.Done()
			_, err := a.Mount(mountCtx, InstanceSpec{
				Name:   inst.Name,
				Path:   inst.Path,
				Params: desc.InstanceParams(inst),
			})
			if err != nil {
				fail(err)
			}
		}(inst)
	}
	wg.Wait()

	if ctx.Err() != nil {
		a.logger.Info("startup cancelled")
		return nil
	}
	return errors.Join(errs...)
}

// Run serves HTTP on addr until ctx is done, then shuts down gracefully.
func (a *App) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cnlwiki: listen %s: %w", addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is done, then shuts down gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(a.config.Logger.Handler(), slog.LevelWarn),
	}
	a.mu.Lock()
	a.server = srv
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the HTTP server, drops all sessions and closes the
// backends this App constructed. Published backends are removed from the
// registry first so no new instance can acquire a closing backend.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	srv := a.server
	instances := slices.Clone(a.instances)
	owned := slices.Clone(a.owned)
	a.mu.Unlock()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error("shutdown error", "error", err)
			errs = append(errs, err)
		}
	}
	for _, inst := range instances {
		if err := inst.sessions.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, b := range owned {
		if b.Name() != "" {
			if cur, ok := a.registry.Lookup(b.Name()); ok && cur == b {
				a.registry.Remove(b.Name())
			}
		}
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cnlwiki: close backend %q: %w", b.Name(), err))
		}
	}

	a.logger.Info("server shutdown complete")
	return errors.Join(errs...)
}

func (a *App) serveHealth(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	stopped := a.stopped
	n := len(a.instances)
	a.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if stopped {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "stopping")
		return
	}
	fmt.Fprintf(w, "ok %d instances\n", n)
}
