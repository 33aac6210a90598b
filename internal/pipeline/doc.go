/*
Package pipeline sequences one metrics-extraction run.

A run moves through the stages

	idle → validating → server-starting → browser-starting → measuring → persisting → done

and drops to failed from any running stage. Each stage runs only after the
previous one succeeded; the first failure is returned as a *StageError that
unwraps to the originating domain error. Content server and rendering
session stay up after a run so the next run reuses them; Finish tears both
down.
*/
package pipeline

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces to tracing key 'fontmetrics.pipeline'.
func tracer() tracing.Trace {
	return tracing.Select("fontmetrics.pipeline")
}
