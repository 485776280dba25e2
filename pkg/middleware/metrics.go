package middleware

import (
	"net/http"
	"time"

	"github.com/vango-dev/cnlwiki/pkg/metrics"
)

// Metrics returns middleware that records request counts and latency for
// instance on c. A panicking handler is counted with outcome "panic" before
// the panic continues.
func Metrics(c *metrics.Collector, instance string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := wrapWriter(w)
			defer func() {
				if v := recover(); v != nil {
					c.ObserveRequest(instance, "panic", time.Since(start))
					panic(v)
				}
				c.ObserveRequest(instance, outcome(rec.status), time.Since(start))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
