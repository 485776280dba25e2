package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds request IDs accepted from clients.
const maxRequestIDLen = 128

// Correlation holds the identifiers logged with a request fault. The session
// ID is filled in by inner handlers once the session is known.
type Correlation struct {
	RequestID string

	mu        sync.Mutex
	sessionID string
}

// SetSessionID records the session serving the request.
func (c *Correlation) SetSessionID(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// SessionID returns the recorded session ID.
func (c *Correlation) SessionID() string {
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

type correlationKey struct{}

// CorrelationFrom returns the correlation record of the request, or nil.
func CorrelationFrom(ctx context.Context) *Correlation {
	c, _ := ctx.Value(correlationKey{}).(*Correlation)
	return c
}

// RequestIDFrom returns the request ID, or "".
func RequestIDFrom(ctx context.Context) string {
	if c := CorrelationFrom(ctx); c != nil {
		return c.RequestID
	}
	return ""
}

// RequestID attaches a Correlation to every request. A client supplied
// X-Request-ID is reused when it is printable and short; otherwise a random
// UUID is generated. The ID is echoed in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		c := &Correlation{RequestID: id}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationKey{}, c)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
