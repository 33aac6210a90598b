/*
Package render owns the headless rendering session of a pipeline.

An Engine is the narrow capability the session needs from a browser: open,
navigate, call a script with a JSON payload, close. Session adds the
lifecycle rules on top: one engine session per pipeline, idempotent start,
one batched measurement call bounded by a timeout, and failures reported as
domain.RenderingError.
*/
package render

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces to tracing key 'fontmetrics.render'.
func tracer() tracing.Trace {
	return tracing.Select("fontmetrics.render")
}
