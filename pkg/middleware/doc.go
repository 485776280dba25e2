// Package middleware provides the net/http middleware wrapped around every
// wiki instance.
//
// This package includes:
//   - RequestID, which assigns a correlation record to each request
//   - OpenTelemetry tracing with one server span per request
//   - Prometheus request metrics
//   - Recover, which logs request faults with correlation IDs and re-panics
//
// The intended order, outermost first, is:
//
//	h = middleware.RequestID(
//	    middleware.OpenTelemetry(middleware.WithInstanceName("geo"))(
//	        middleware.Recover(logger, "geo")(
//	            middleware.Metrics(collector, "geo")(app))))
//
// Recover never swallows a panic. It adds observability and hands the fault
// back to net/http, which aborts the response.
package middleware
