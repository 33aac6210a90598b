/*
Package config resolves, validates and loads the configuration of a
font-metrics run.

Options are a partial configuration: nil scalars and nil sequences mean
"not supplied". Resolve merges them over Defaults into a domain.RunConfig,
which Validate then checks before any server or browser is acquired.
*/
package config

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces to tracing key 'fontmetrics.config'.
func tracer() tracing.Trace {
	return tracing.Select("fontmetrics.config")
}
