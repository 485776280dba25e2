package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/cnlwiki/internal/errors"
	"github.com/vango-dev/cnlwiki/pkg/params"
	"github.com/vango-dev/cnlwiki/pkg/routepath"
)

// ConfigFileNames are tried in order by Load.
var ConfigFileNames = []string{"cnlwiki.yaml", "cnlwiki.yml", "cnlwiki.json"}

const (
	// DefaultAddr is the default HTTP listen address.
	DefaultAddr = ":8080"

	// DefaultAcquireTimeout bounds the wait for a named backend.
	DefaultAcquireTimeout = 2 * time.Minute

	// DefaultPollInterval is how often a waiting instance re-checks the registry.
	DefaultPollInterval = time.Second

	// DefaultSessionIdleTimeout expires sessions without requests.
	DefaultSessionIdleTimeout = 30 * time.Minute

	// DefaultLogFormat is the log handler used by the command.
	DefaultLogFormat = "text"
)

// Config is a deployment descriptor.
type Config struct {
	// Server holds process-wide settings.
	Server ServerConfig `yaml:"server" json:"server"`

	// Context holds deployment-context parameters shared by every instance.
	Context map[string]string `yaml:"context,omitempty" json:"context,omitempty"`

	// Backends are constructed at startup and published by name.
	Backends []BackendConfig `yaml:"backends,omitempty" json:"backends,omitempty"`

	// ExternalBackends are published by embedding code. Instances may
	// reference them without a descriptor entry.
	ExternalBackends []string `yaml:"externalBackends,omitempty" json:"externalBackends,omitempty"`

	// Instances are the wikis mounted by the server.
	Instances []InstanceConfig `yaml:"instances" json:"instances"`

	configPath string
}

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	// Addr is the HTTP listen address.
	// Default: ":8080"
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`

	// AcquireTimeout bounds the wait for a named backend. 0 waits forever.
	// Default: 2m
	AcquireTimeout Duration `yaml:"acquireTimeout" json:"acquireTimeout"`

	// PollInterval is how often a waiting instance re-checks the registry.
	// Default: 1s
	PollInterval Duration `yaml:"pollInterval,omitempty" json:"pollInterval,omitempty"`

	// SessionIdleTimeout expires sessions without requests.
	// Default: 30m
	SessionIdleTimeout Duration `yaml:"sessionIdleTimeout,omitempty" json:"sessionIdleTimeout,omitempty"`

	// CookieName names the session cookie.
	CookieName string `yaml:"cookieName,omitempty" json:"cookieName,omitempty"`

	// SecureCookies marks session cookies Secure.
	SecureCookies bool `yaml:"secureCookies,omitempty" json:"secureCookies,omitempty"`

	// LogFormat is "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"logFormat,omitempty" json:"logFormat,omitempty"`

	// DevMode shows fault details in error pages.
	DevMode bool `yaml:"devMode,omitempty" json:"devMode,omitempty"`
}

// BackendConfig declares a named backend.
type BackendConfig struct {
	Name   string            `yaml:"name" json:"name"`
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`

	line int
}

// UnmarshalYAML records the line of the entry for error reports.
func (b *BackendConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain BackendConfig
	if err := value.Decode((*plain)(b)); err != nil {
		return err
	}
	b.line = value.Line
	return nil
}

// InstanceConfig declares a mounted wiki instance.
type InstanceConfig struct {
	// Name identifies the instance in logs and metrics.
	// Default: derived from Path.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Path is the mount path. Default: "/" + Name.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Backend names a shared backend. Empty constructs a private one.
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"`

	// Params are the instance parameters.
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`

	line int
}

// UnmarshalYAML records the line of the entry for error reports.
func (i *InstanceConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain InstanceConfig
	if err := value.Decode((*plain)(i)); err != nil {
		return err
	}
	i.line = value.Line
	return nil
}

// New creates a descriptor with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               DefaultAddr,
			AcquireTimeout:     Duration(DefaultAcquireTimeout),
			PollInterval:       Duration(DefaultPollInterval),
			SessionIdleTimeout: Duration(DefaultSessionIdleTimeout),
			LogFormat:          DefaultLogFormat,
		},
	}
}

// Load reads the first descriptor found in dir.
func Load(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E101").
		WithDetail("No " + strings.Join(ConfigFileNames, ", ") + " found in " + dir).
		WithSuggestion("Create cnlwiki.yaml or pass --config")
}

// LoadFile reads the descriptor at path. Files ending in .json are decoded
// as JSON, everything else as YAML.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("No descriptor at " + path).
				WithSuggestion("Check the --config path")
		}
		return nil, errors.New("E102").Wrap(err)
	}

	cfg := New()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = decodeJSON(data, cfg)
	} else {
		err = decodeYAML(data, cfg)
	}
	if err != nil {
		var de *DurationError
		if stderrors.As(err, &de) {
			ce := errors.New("E106").WithDetail(de.Error())
			if de.Line > 0 {
				ce.WithLocation(path, de.Line)
			}
			return nil, ce
		}
		return nil, errors.New("E102").
			WithLocationFromError(path, err).
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check the descriptor syntax and field names")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func decodeJSON(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Path returns the file the descriptor was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for missing fields.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.PollInterval <= 0 {
		c.Server.PollInterval = Duration(DefaultPollInterval)
	}
	if c.Server.SessionIdleTimeout <= 0 {
		c.Server.SessionIdleTimeout = Duration(DefaultSessionIdleTimeout)
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = DefaultLogFormat
	}
	for i := range c.Instances {
		inst := &c.Instances[i]
		if inst.Path == "" && inst.Name != "" {
			inst.Path = "/" + inst.Name
		}
		if strings.HasPrefix(inst.Path, "/") {
			if p, err := routepath.Canonicalize(inst.Path); err == nil {
				inst.Path = p
			}
		}
		if inst.Name == "" && inst.Path != "" {
			inst.Name = nameFromPath(inst.Path)
		}
	}
}

// nameFromPath derives an instance name from its mount path.
func nameFromPath(path string) string {
	name := strings.Trim(path, "/")
	if name == "" {
		return "root"
	}
	return strings.ReplaceAll(name, "/", "-")
}

// located points ce at line of the descriptor when known.
func (c *Config) located(ce *errors.CodedError, line int) *errors.CodedError {
	if line > 0 && c.configPath != "" {
		ce.WithLocation(c.configPath, line)
	}
	return ce
}

// Validate checks the descriptor for consistency.
func (c *Config) Validate() error {
	switch c.Server.LogFormat {
	case "text", "json":
	default:
		return errors.New("E102").
			WithDetail(fmt.Sprintf("Unknown log format %q", c.Server.LogFormat)).
			WithSuggestion(`Use "text" or "json"`)
	}
	if c.Server.AcquireTimeout < 0 {
		return errors.New("E106").WithDetail("acquireTimeout must not be negative")
	}

	known := make(map[string]bool, len(c.Backends)+len(c.ExternalBackends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return c.located(errors.New("E104").WithDetail("A backend has no name"), b.line)
		}
		if known[b.Name] {
			return c.located(errors.New("E104").
				WithDetail(fmt.Sprintf("Backend %q is declared twice", b.Name)), b.line)
		}
		known[b.Name] = true
	}
	for _, name := range c.ExternalBackends {
		if name == "" {
			return errors.New("E104").WithDetail("externalBackends contains an empty name")
		}
		known[name] = true
	}

	if len(c.Instances) == 0 {
		return errors.New("E103").
			WithDetail("The descriptor declares no instances").
			WithSuggestion("Add an entry under instances")
	}
	names := make(map[string]bool, len(c.Instances))
	paths := make(map[string]bool, len(c.Instances))
	for _, inst := range c.Instances {
		if inst.Name == "" {
			return c.located(errors.New("E103").
				WithDetail("An instance has neither a name nor a path"), inst.line)
		}
		if _, err := routepath.Canonicalize(inst.Path); err != nil || !strings.HasPrefix(inst.Path, "/") {
			return c.located(errors.New("E103").
				WithDetail(fmt.Sprintf("Instance %q has invalid path %q", inst.Name, inst.Path)).
				WithSuggestion("Mount paths start with '/' and carry no query or '..'"), inst.line)
		}
		if names[inst.Name] {
			return c.located(errors.New("E103").
				WithDetail(fmt.Sprintf("Instance name %q is used twice", inst.Name)), inst.line)
		}
		if paths[inst.Path] {
			return c.located(errors.New("E103").
				WithDetail(fmt.Sprintf("Mount path %q is used twice", inst.Path)), inst.line)
		}
		names[inst.Name] = true
		paths[inst.Path] = true

		if inst.Backend != "" && !known[inst.Backend] {
			return c.located(errors.New("E105").
				WithDetail(fmt.Sprintf("Instance %q names backend %q", inst.Name, inst.Backend)).
				WithSuggestion("Declare it under backends or list it in externalBackends"), inst.line)
		}
	}
	return nil
}

// BackendParams returns the resolved parameters of a declared backend.
func (c *Config) BackendParams(b BackendConfig) params.Params {
	return params.Resolve(b.Params, c.Context)
}

// InstanceParams returns the resolved parameters of an instance. The backend
// reference is exposed under params.KeyBackend.
func (c *Config) InstanceParams(inst InstanceConfig) params.Params {
	p := params.Resolve(inst.Params, c.Context)
	if inst.Backend != "" {
		p[params.KeyBackend] = inst.Backend
	}
	return p
}
