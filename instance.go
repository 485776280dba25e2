package cnlwiki

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/cnlwiki/pkg/assets"
	"github.com/vango-dev/cnlwiki/pkg/backend"
	"github.com/vango-dev/cnlwiki/pkg/live"
	"github.com/vango-dev/cnlwiki/pkg/metrics"
	"github.com/vango-dev/cnlwiki/pkg/middleware"
	"github.com/vango-dev/cnlwiki/pkg/normalize"
	"github.com/vango-dev/cnlwiki/pkg/params"
	"github.com/vango-dev/cnlwiki/pkg/render"
	"github.com/vango-dev/cnlwiki/pkg/routepath"
	"github.com/vango-dev/cnlwiki/pkg/session"
)

// Instance paths relative to the mount path.
const (
	LivePath   = "/_live"
	ParsePath  = "/_parse"
	AssetsPath = "/_assets"
)

// Instance is a mounted wiki.
type Instance struct {
	name     string
	path     string
	backend  *backend.Backend
	config   params.Params
	owned    bool
	sessions *session.Manager
	renderer *render.Renderer
	metrics  *metrics.Collector
	logger   *slog.Logger
	devMode  bool
	handler  http.Handler
}

func newInstance(a *App, spec InstanceSpec, acq backend.Acquisition) *Instance {
	logger := a.config.Logger.With("instance", spec.Name)

	factory := session.NewFactory(spec.Name,
		session.WithFactoryLogger(logger),
		session.WithFactoryMetrics(a.metrics))

	cookieName := a.config.CookieName
	if cookieName == "" {
		cookieName = session.DefaultCookieName
	}
	sessions := session.NewManager(factory, acq.Backend, acq.Config, session.ManagerConfig{
		CookieName:    cookieName + "_" + spec.Name,
		CookiePath:    spec.Path,
		SecureCookies: a.config.SecureCookies,
		IdleTimeout:   a.config.SessionIdleTimeout,
		Metrics:       a.metrics,
	}, logger)

	stylesheet := assets.NewResolver(a.assets.Manifest(), routepath.Join(spec.Path, AssetsPath)+"/")

	i := &Instance{
		name:     spec.Name,
		path:     spec.Path,
		backend:  acq.Backend,
		config:   acq.Config,
		owned:    acq.Constructed,
		sessions: sessions,
		renderer: render.NewRenderer(render.RendererConfig{
			Title:      acq.Config.GetOr(params.KeyTitle, spec.Name),
			Labels:     a.config.Labels,
			Stylesheet: stylesheet.Asset(assets.Stylesheet),
		}),
		metrics: a.metrics,
		logger:  logger.With("component", "instance"),
		devMode: a.config.DevMode,
	}
	i.handler = i.routes(a.config, a.assets)
	return i
}

// routes builds the instance router. The live channel looks sessions up
// without creating them; pages resolve the session and run the normalizer
// first.
func (i *Instance) routes(cfg Config, bundle *assets.Bundle) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.OpenTelemetry(
		middleware.WithTracerName(cfg.TracerName),
		middleware.WithInstanceName(i.name),
	))
	r.Use(middleware.Recover(cfg.Logger, i.name))
	r.Use(middleware.Metrics(i.metrics, i.name))
	r.Use(i.canonicalSlash)

	r.Handle(LivePath, live.NewHandler(i.sessions, cfg.Live, i.logger))
	r.Get(ParsePath, i.serveParse)
	r.Get(AssetsPath+"/*", bundle.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(i.sessions.Middleware)
		r.Use(correlate)
		r.Use(normalize.Middleware(session.IsNew, func(_ *http.Request, out normalize.Outcome) {
			i.metrics.RecordRedirect(string(out.Rule))
		}))
		r.Get("/", i.servePage)
		r.Head("/", i.servePage)
	})
	return r
}

// canonicalSlash redirects the bare mount path to its slash form, so that
// relative redirect targets resolve inside the instance.
func (i *Instance) canonicalSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i.path != "/" && r.URL.Path == i.path {
			target := routepath.Dir(i.path)
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// correlate records the session on the request's correlation IDs.
func correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inst := session.FromContext(r.Context()); inst != nil {
			middleware.CorrelationFrom(r.Context()).SetSessionID(inst.ID())
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (i *Instance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	i.handler.ServeHTTP(w, r)
}

// Name returns the instance name.
func (i *Instance) Name() string { return i.name }

// Path returns the mount path.
func (i *Instance) Path() string { return i.path }

// Backend returns the backend the instance is bound to.
func (i *Instance) Backend() *backend.Backend { return i.backend }

// Config returns a copy of the effective configuration.
func (i *Instance) Config() params.Params { return i.config.Clone() }

// Sessions returns the session manager of the instance.
func (i *Instance) Sessions() *session.Manager { return i.sessions }

// SharedBackend reports whether the backend was acquired by name rather
// than constructed for this instance.
func (i *Instance) SharedBackend() bool { return !i.owned }
