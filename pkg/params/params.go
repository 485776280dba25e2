// Package params builds the effective configuration of a wiki instance.
//
// Parameters come from three places: the deployment context (shared by every
// instance in the process), the instance itself, and, for instances bound to a
// named backend, the backend's own parameters. Context keys are stored under
// the "context:" namespace so they can never shadow an instance key.
//
//	p := params.Resolve(instanceParams, contextParams)
//	p.Get(params.KeyDataDir) // "data" unless configured
package params

import (
	"maps"
	"sort"
	"strconv"
	"strings"
)

// ContextPrefix is prepended to every deployment-context key.
const ContextPrefix = "context:"

// Well-known parameter keys.
const (
	// KeyBackend names a shared backend published by the process.
	KeyBackend = "backend"

	// KeyOntology identifies the content served by an instance.
	KeyOntology = "ontology"

	// KeyLanguages is a comma separated list of display languages.
	// The first entry is the default display language.
	KeyLanguages = "languages"

	// KeyTitle is the human readable wiki title.
	KeyTitle = "title"

	// KeyEngineCommand is the local parsing engine executable.
	KeyEngineCommand = ContextPrefix + "apecommand"

	// KeyEngineSocket is a host:port of a socket parsing engine.
	KeyEngineSocket = ContextPrefix + "apesocket"

	// KeyEngineWebService is the URL of a web service parsing engine.
	KeyEngineWebService = ContextPrefix + "apewebservice"

	// KeyLogDir is the directory log files are written to.
	KeyLogDir = ContextPrefix + "logdir"

	// KeyDataDir is where sentence data is read from. It may be a local
	// directory or an s3://bucket/prefix location.
	KeyDataDir = ContextPrefix + "datadir"

	// KeyS3Region and KeyS3Endpoint configure s3:// data directories.
	KeyS3Region   = ContextPrefix + "s3region"
	KeyS3Endpoint = ContextPrefix + "s3endpoint"
)

// Default values applied by Resolve.
const (
	DefaultEngineCommand = "ape.exe"
	DefaultLogDir        = "logs"
	DefaultDataDir       = "data"
)

// Params is an effective configuration: string keys to string values.
// A nil Params behaves like an empty one for reads.
type Params map[string]string

// Resolve merges deployment-context parameters and instance parameters into
// one configuration and fills in defaults for keys that are still missing.
// Context keys are namespaced with ContextPrefix; instance keys are kept as-is.
func Resolve(instance, context map[string]string) Params {
	p := make(Params, len(instance)+len(context)+3)
	for k, v := range context {
		p[ContextPrefix+k] = v
	}
	for k, v := range instance {
		p[k] = v
	}

	if _, ok := p[KeyEngineCommand]; !ok {
		p[KeyEngineCommand] = DefaultEngineCommand
	}
	if _, ok := p[KeyLogDir]; !ok {
		p[KeyLogDir] = DefaultLogDir
	}
	if _, ok := p[KeyDataDir]; !ok {
		p[KeyDataDir] = DefaultDataDir
	}
	return p
}

// Merge returns a new Params holding lower overlaid by higher.
// Values from higher win on key collision. Neither input is modified.
func Merge(lower, higher Params) Params {
	out := make(Params, len(lower)+len(higher))
	maps.Copy(out, lower)
	maps.Copy(out, higher)
	return out
}

// Clone returns a copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	return maps.Clone(p)
}

// Get returns the value for key, or "" when absent.
func (p Params) Get(key string) string {
	return p[key]
}

// Lookup returns the value for key and whether it was present.
func (p Params) Lookup(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// GetOr returns the value for key, or def when absent or empty.
func (p Params) GetOr(key, def string) string {
	if v := p[key]; v != "" {
		return v
	}
	return def
}

// Bool parses key as a boolean ("true", "on", "yes", "1").
// Missing or unparsable values yield false.
func (p Params) Bool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(p[key]))
	switch v {
	case "on", "yes":
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// List splits a comma separated value, trimming blanks and dropping empty
// entries. Order is preserved.
func (p Params) List(key string) []string {
	raw := p[key]
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Context returns the deployment-context parameters with the prefix removed.
func (p Params) Context() map[string]string {
	out := make(map[string]string)
	for k, v := range p {
		if name, ok := strings.CutPrefix(k, ContextPrefix); ok {
			out[name] = v
		}
	}
	return out
}

// Keys returns the keys of p in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
