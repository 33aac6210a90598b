package render

import (
	"context"
	"encoding/json"

	"font-metrics/internal/domain"
)

// Engine abstracts the browser process for testability.
type Engine interface {
	// Open starts the engine session.
	Open(ctx context.Context, opts domain.EngineOptions) error
	// Navigate loads url and waits until the page is ready.
	Navigate(ctx context.Context, url string) error
	// Call evaluates script, an async function expression, with args as its
	// only argument, awaits it and returns the resolved value as JSON.
	Call(ctx context.Context, script string, args any) (json.RawMessage, error)
	// Close ends the engine session.
	Close() error
}
