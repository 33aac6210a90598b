/*
Package server hosts the measurement page and font assets over HTTP.

The rendering session navigates to a same-origin page served here, because
in-page font loading and canvas text measurement are unreliable from file://
URLs. The server mounts the measurement page at "/", every configured
additional mount under its alias, and individually published font files
under "/_fonts/".
*/
package server

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces to tracing key 'fontmetrics.server'.
func tracer() tracing.Trace {
	return tracing.Select("fontmetrics.server")
}
