package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/cnlwiki/internal/errors"
	"github.com/vango-dev/cnlwiki/pkg/params"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func codeOf(t *testing.T, err error) *errors.CodedError {
	t.Helper()
	var ce *errors.CodedError
	require.True(t, stderrors.As(err, &ce), "expected a coded error, got %v", err)
	return ce
}

const sampleYAML = `server:
  addr: ":9090"
  acquireTimeout: 30s
  logFormat: json

context:
  datadir: /srv/data
  languages: en,de

backends:
  - name: geo
    params:
      ontology: geography

instances:
  - name: geo
    path: /geo/
    backend: geo
    params:
      title: Geography
  - path: /scratch
    params:
      ontology: scratch
`

func TestNew(t *testing.T) {
	cfg := New()
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultAcquireTimeout, cfg.Server.AcquireTimeout.Std())
	assert.Equal(t, DefaultPollInterval, cfg.Server.PollInterval.Std())
	assert.Equal(t, DefaultSessionIdleTimeout, cfg.Server.SessionIdleTimeout.Std())
	assert.Equal(t, DefaultLogFormat, cfg.Server.LogFormat)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cnlwiki.yaml", sampleYAML)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join(dir, "cnlwiki.yaml"), cfg.Path())
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.AcquireTimeout.Std())
	assert.Equal(t, DefaultSessionIdleTimeout, cfg.Server.SessionIdleTimeout.Std())
	assert.Equal(t, "json", cfg.Server.LogFormat)

	require.Len(t, cfg.Instances, 2)
	assert.Equal(t, "/geo", cfg.Instances[0].Path, "trailing slash trimmed")
	assert.Equal(t, "scratch", cfg.Instances[1].Name, "name derived from path")

	bp := cfg.BackendParams(cfg.Backends[0])
	assert.Equal(t, "geography", bp.Get(params.KeyOntology))
	assert.Equal(t, "/srv/data", bp.Get(params.KeyDataDir))

	ip := cfg.InstanceParams(cfg.Instances[0])
	assert.Equal(t, "geo", ip.Get(params.KeyBackend))
	assert.Equal(t, "Geography", ip.Get(params.KeyTitle))
	assert.Equal(t, "en,de", ip.Get(params.ContextPrefix+params.KeyLanguages))

	_, hasBackend := cfg.InstanceParams(cfg.Instances[1]).Lookup(params.KeyBackend)
	assert.False(t, hasBackend)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cnlwiki.json", `{
  "server": {"acquireTimeout": "0s"},
  "instances": [{"name": "main", "path": "/"}]
}`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Duration(0), cfg.Server.AcquireTimeout.Std(), "explicit zero disables the timeout")
	assert.Equal(t, "/", cfg.Instances[0].Path)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, "E101", codeOf(t, err).Code)

	_, err = LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, "E101", codeOf(t, err).Code)
}

func TestLoadParseError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cnlwiki.yaml", "instances:\n\t- name: a\n")

	_, err := LoadFile(path)
	ce := codeOf(t, err)
	assert.Equal(t, "E102", ce.Code)
	require.NotNil(t, ce.Location)
	assert.Equal(t, path, ce.Location.File)
}

func TestLoadUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cnlwiki.yaml", "instancez: []\n")

	_, err := LoadFile(path)
	assert.Equal(t, "E102", codeOf(t, err).Code)

	jsonPath := writeFile(t, dir, "cnlwiki.json", `{"instancez": []}`)
	_, err = LoadFile(jsonPath)
	assert.Equal(t, "E102", codeOf(t, err).Code)
}

func TestLoadBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cnlwiki.yaml", "server:\n  acquireTimeout: soon\ninstances:\n  - name: a\n")

	_, err := LoadFile(path)
	ce := codeOf(t, err)
	assert.Equal(t, "E106", ce.Code)
	require.NotNil(t, ce.Location)
	assert.Equal(t, 2, ce.Location.Line)

	jsonPath := writeFile(t, dir, "cnlwiki.json", `{"server": {"pollInterval": "often"}}`)
	_, err = LoadFile(jsonPath)
	assert.Equal(t, "E106", codeOf(t, err).Code)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code string
	}{
		{"no instances", "instances: []\n", "E103"},
		{"duplicate path", "instances:\n  - name: a\n    path: /x\n  - name: b\n    path: /x\n", "E103"},
		{"duplicate name", "instances:\n  - name: a\n    path: /x\n  - name: a\n    path: /y\n", "E103"},
		{"relative path", "instances:\n  - name: a\n    path: x\n", "E103"},
		{"path escapes root", "instances:\n  - name: a\n    path: /../x\n", "E103"},
		{"path with query", "instances:\n  - name: a\n    path: /x?y=1\n", "E103"},
		{"unnamed backend", "backends:\n  - params: {}\ninstances:\n  - name: a\n", "E104"},
		{"duplicate backend", "backends:\n  - name: g\n  - name: g\ninstances:\n  - name: a\n", "E104"},
		{"unknown backend", "instances:\n  - name: a\n    backend: geo\n", "E105"},
		{"bad log format", "server:\n  logFormat: xml\ninstances:\n  - name: a\n", "E102"},
		{"negative timeout", "server:\n  acquireTimeout: -1s\ninstances:\n  - name: a\n", "E106"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "cnlwiki.yaml", tt.yaml)
			cfg, err := LoadFile(path)
			require.NoError(t, err)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.code, codeOf(t, err).Code)
		})
	}
}

func TestValidateExternalBackend(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cnlwiki.yaml",
		"externalBackends: [geo]\ninstances:\n  - name: a\n    backend: geo\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidateLocatesInstance(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cnlwiki.yaml",
		"instances:\n  - name: a\n  - name: b\n    backend: missing\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	ce := codeOf(t, cfg.Validate())
	assert.Equal(t, "E105", ce.Code)
	require.NotNil(t, ce.Location)
	assert.Equal(t, 3, ce.Location.Line)
}

func TestDurationMarshal(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	v, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", v)
}
