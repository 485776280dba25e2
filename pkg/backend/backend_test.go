package backend

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vango-dev/cnlwiki/pkg/engine"
	"github.com/vango-dev/cnlwiki/pkg/metrics"
	"github.com/vango-dev/cnlwiki/pkg/params"
	"github.com/vango-dev/cnlwiki/pkg/registry"
	"github.com/vango-dev/cnlwiki/pkg/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestBackend(t *testing.T, p params.Params, opts ...Option) *Backend {
	t.Helper()
	opts = append([]Option{WithStore(store.NewMemoryStore()), WithLogger(testLogger())}, opts...)
	b, err := New(context.Background(), p, opts...)
	require.NoError(t, err)
	return b
}

func TestNewBackend(t *testing.T) {
	p := params.Resolve(map[string]string{"languages": "en, DE", "ontology": "geo"}, nil)
	b := newTestBackend(t, p, WithName("geo"))

	assert.Equal(t, "geo", b.Name())
	assert.Equal(t, []string{"en", "de"}, b.Languages())
	assert.Equal(t, "en", b.DefaultLanguage())
	assert.True(t, b.Multilingual())
	assert.Equal(t, engine.KindCommand, b.Engine().Kind())
	assert.Equal(t, p, b.Parameters())

	got := b.Parameters()
	got["ontology"] = "changed"
	assert.Equal(t, "geo", b.Parameters().Get("ontology"), "Parameters must return a copy")

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestNewBackendDefaults(t *testing.T) {
	b := newTestBackend(t, params.Resolve(nil, nil))
	assert.Equal(t, []string{DefaultLanguage}, b.Languages())
	assert.False(t, b.Multilingual())
}

func TestNewBackendInvalidLanguage(t *testing.T) {
	_, err := New(context.Background(), params.Params{"languages": "en,???"}, WithStore(store.NewMemoryStore()))
	assert.Error(t, err)
}

func TestNewBackendOpensDataDir(t *testing.T) {
	b, err := New(context.Background(), params.Params{params.KeyDataDir: t.TempDir()}, WithLogger(testLogger()))
	require.NoError(t, err)
	ids, err := b.Store().IDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMatchLanguage(t *testing.T) {
	b := newTestBackend(t, params.Params{"languages": "en,de"})

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"en", "en", true},
		{"EN-us", "en", true},
		{"de-CH", "de", true},
		{"ja", "", false},
		{"not a tag", "", false},
	}
	for _, tt := range tests {
		got, ok := b.MatchLanguage(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAcquireEmptyNameConstructs(t *testing.T) {
	reg := registry.New[*Backend]()
	p := params.Resolve(map[string]string{"ontology": "geo"}, nil)

	acq, err := Acquire(context.Background(), reg, "", p,
		WithAcquireLogger(testLogger()),
		WithBackendOptions(WithStore(store.NewMemoryStore())))
	require.NoError(t, err)

	assert.Equal(t, StatusAcquired, acq.Status)
	assert.True(t, acq.Constructed)
	require.NotNil(t, acq.Backend)
	assert.Equal(t, p, acq.Config)
	assert.Empty(t, reg.Names(), "construction must not touch the registry")
}

func TestAcquirePublishedReturnsPromptly(t *testing.T) {
	reg := registry.New[*Backend]()
	shared := newTestBackend(t, params.Params{"ontology": "geo", "title": "Geo", params.KeyDataDir: "/srv"})
	require.NoError(t, reg.Publish("geo", shared))

	start := time.Now()
	acq, err := Acquire(context.Background(), reg, "geo",
		params.Params{"title": "Geography"},
		WithPollInterval(time.Hour), WithAcquireLogger(testLogger()))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Same(t, shared, acq.Backend)
	assert.False(t, acq.Constructed)
	assert.Equal(t, params.Params{
		"ontology":       "geo",
		"title":          "Geography",
		params.KeyDataDir: "/srv",
	}, acq.Config, "instance parameters win over backend parameters")
}

func TestAcquireWaitsForPublication(t *testing.T) {
	reg := registry.New[*Backend]()
	shared := newTestBackend(t, params.Params{})

	go func() {
		time.Sleep(30 * time.Millisecond)
		reg.Publish("late", shared)
	}()

	acq, err := Acquire(context.Background(), reg, "late", nil,
		WithPollInterval(time.Hour), WithAcquireLogger(testLogger()))
	require.NoError(t, err)
	assert.Same(t, shared, acq.Backend)
}

func TestAcquireCancelledIsNotAnError(t *testing.T) {
	reg := registry.New[*Backend]()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	acq, err := Acquire(ctx, reg, "never", nil,
		WithPollInterval(5*time.Millisecond), WithAcquireLogger(testLogger()))
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, acq.Status)
	assert.Nil(t, acq.Backend)
}

func TestAcquireTimeout(t *testing.T) {
	reg := registry.New[*Backend]()

	_, err := Acquire(context.Background(), reg, "missing", nil,
		WithTimeout(30*time.Millisecond),
		WithPollInterval(5*time.Millisecond),
		WithAcquireLogger(testLogger()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStartupUnavailable)

	var acqErr *AcquireError
	require.True(t, errors.As(err, &acqErr))
	assert.Equal(t, "missing", acqErr.Name)
	assert.GreaterOrEqual(t, acqErr.Waited, 30*time.Millisecond)
	assert.Empty(t, reg.Names(), "no fallback backend may be constructed")
}

func TestAcquireContextDeadlineIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Acquire(ctx, registry.New[*Backend](), "missing", nil,
		WithTimeout(0), WithAcquireLogger(testLogger()))
	assert.ErrorIs(t, err, ErrStartupUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquireConstructionFailure(t *testing.T) {
	_, err := Acquire(context.Background(), registry.New[*Backend](), "", params.Params{"languages": "!!"},
		WithAcquireLogger(testLogger()),
		WithBackendOptions(WithStore(store.NewMemoryStore())))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStartupUnavailable)
}

func TestProvideBuildsOnceForConcurrentInstances(t *testing.T) {
	reg := registry.New[*Backend]()
	p := params.Params{"ontology": "geo"}

	const instances = 8
	got := make([]*Backend, instances)
	var wg sync.WaitGroup
	for i := 0; i < instances; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := Provide(context.Background(), reg, "geo", p,
				WithStore(store.NewMemoryStore()), WithLogger(testLogger()))
			if err == nil {
				got[i] = b
			}
		}(i)
	}
	wg.Wait()

	for i := range got {
		require.NotNil(t, got[i])
		assert.Same(t, got[0], got[i])
	}
	assert.Equal(t, "geo", got[0].Name())
	assert.Equal(t, []string{"geo"}, reg.Names())
}

func TestAcquireRecordsMetricsAndSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	collector := metrics.New(metrics.WithRegistry(prometheus.NewRegistry()))
	reg := registry.New[*Backend]()
	require.NoError(t, reg.Publish("geo", newTestBackend(t, params.Params{})))

	_, err := Acquire(context.Background(), reg, "geo", nil,
		WithMetrics(collector), WithAcquireLogger(testLogger()))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "backend.acquire", spans[0].Name())
}
