/*
Package measure holds the measurement routine executed inside the
rendering context.

The routine loads every font face that declares a source, waits for all
loads to settle, and only then measures the probe string for every family on
one shared drawing surface. Script is the browser rendition of the routine;
Routine is the same algorithm in Go over injected FaceLoader and Surface
capabilities, used to exercise engines without a browser.

Both renditions report through the same outcome document, decoded by Decode.
*/
package measure

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces to tracing key 'fontmetrics.measure'.
func tracer() tracing.Trace {
	return tracing.Select("fontmetrics.measure")
}
