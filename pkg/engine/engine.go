// Package engine binds the external sentence-parsing engine.
//
// The engine itself is not part of this repository. It is reached either by
// running a local executable, over a plain TCP socket, or through an HTTP web
// service. The binding is chosen from the effective configuration.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/vango-dev/cnlwiki/pkg/params"
)

// ErrEmptyText is returned when Parse is called without input.
var ErrEmptyText = errors.New("engine: empty text")

// DefaultTimeout bounds a single parse call.
const DefaultTimeout = 30 * time.Second

// Kind names an engine binding.
type Kind string

const (
	KindCommand    Kind = "command"
	KindSocket     Kind = "socket"
	KindWebService Kind = "webservice"
)

// Engine parses sentence text and returns the engine's raw output.
type Engine interface {
	Parse(ctx context.Context, text string) (string, error)
	Kind() Kind
}

// FromParams chooses the binding configured in p: a web service wins over a
// socket, which wins over the local command. The command is always
// available because Resolve fills in its default.
func FromParams(p params.Params) Engine {
	if u := p.Get(params.KeyEngineWebService); u != "" {
		return NewWebService(u, nil)
	}
	if addr := p.Get(params.KeyEngineSocket); addr != "" {
		return NewSocket(addr)
	}
	return NewCommand(p.GetOr(params.KeyEngineCommand, params.DefaultEngineCommand))
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}
