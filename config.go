package cnlwiki

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/cnlwiki/pkg/backend"
	"github.com/vango-dev/cnlwiki/pkg/live"
	"github.com/vango-dev/cnlwiki/pkg/metrics"
	"github.com/vango-dev/cnlwiki/pkg/registry"
	"github.com/vango-dev/cnlwiki/pkg/store"
)

// Config is the application configuration.
type Config struct {
	// Logger is the structured logger for the application.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Registry is where named backends are published and looked up.
	// Default: backend.DefaultRegistry()
	Registry *registry.Registry[*backend.Backend]

	// AcquireTimeout bounds how long an instance waits for a named backend.
	// Zero means backend.DefaultAcquireTimeout. A negative value waits until
	// the startup context is done.
	AcquireTimeout time.Duration

	// PollInterval is how often a waiting instance re-checks the registry.
	// Default: 1 second.
	PollInterval time.Duration

	// SessionIdleTimeout expires sessions without requests.
	// Default: 30 minutes.
	SessionIdleTimeout time.Duration

	// CookieName is the prefix of the per-instance session cookie names.
	// Default: "cnlwiki_session".
	CookieName string

	// SecureCookies marks session cookies Secure.
	SecureCookies bool

	// Metrics records process metrics. Default: metrics.Default().
	Metrics *metrics.Collector

	// Gatherer backs the /metrics endpoint.
	// Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	// TracerName names the tracer of request spans.
	// Default: "cnlwiki".
	TracerName string

	// Labels override the renderer's label texts.
	Labels map[string]string

	// Live configures the websocket navigation channel.
	Live live.Config

	// S3 is used by backends whose data directory is an s3:// location.
	// When nil a client is built from the backend parameters.
	S3 store.S3API

	// DevMode shows fault details in error responses.
	DevMode bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		AcquireTimeout:     backend.DefaultAcquireTimeout,
		PollInterval:       backend.DefaultPollInterval,
		SessionIdleTimeout: 30 * time.Minute,
	}
}
