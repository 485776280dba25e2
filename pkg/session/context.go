package session

import (
	"context"
	"net/http"
)

type ctxKey int

const (
	instanceKey ctxKey = iota
	newKey
)

// WithInstance returns a copy of ctx carrying inst. isNew records whether the
// current request created it.
func WithInstance(ctx context.Context, inst *Instance, isNew bool) context.Context {
	ctx = context.WithValue(ctx, instanceKey, inst)
	return context.WithValue(ctx, newKey, isNew)
}

// FromContext returns the instance stored by WithInstance, or nil.
func FromContext(ctx context.Context) *Instance {
	inst, _ := ctx.Value(instanceKey).(*Instance)
	return inst
}

// IsNew reports whether the request's session was created by the request.
func IsNew(r *http.Request) bool {
	isNew, _ := r.Context().Value(newKey).(bool)
	return isNew
}

// Middleware resolves the session for every request and stores the instance
// in the request context. Requests that arrive after Shutdown get 503.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inst, isNew, err := m.Resolve(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithInstance(r.Context(), inst, isNew)))
	})
}
