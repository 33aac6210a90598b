package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"font-metrics/internal/domain"
	"font-metrics/internal/measure"
)

// Session controls the single engine session of a pipeline.
type Session struct {
	mu      sync.Mutex
	engine  Engine
	started bool
	timeout time.Duration
}

// NewSession wraps engine. A nil engine selects Chrome.
func NewSession(engine Engine) *Session {
	if engine == nil {
		engine = NewChrome()
	}
	return &Session{engine: engine}
}

// Start opens the engine with the options of cfg. Starting a started
// session is a no-op.
func (s *Session) Start(ctx context.Context, cfg domain.RunConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		tracer().Debugf("rendering session already started")
		return nil
	}
	if err := s.engine.Open(ctx, cfg.Engine); err != nil {
		return err
	}
	s.started = true
	s.timeout = cfg.Engine.Timeout
	return nil
}

// Started reports whether the engine session is open.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// RunMeasurement navigates to url and performs one batched measurement call
// of script with args. All failures are *domain.RenderingError.
func (s *Session) RunMeasurement(ctx context.Context, url, script string, args measure.Args, requested []domain.FontRequest) (domain.MeasurementResult, error) {
	s.mu.Lock()
	started, timeout := s.started, s.timeout
	s.mu.Unlock()

	if !started {
		return domain.MeasurementResult{}, &domain.RenderingError{
			Cause: domain.CauseNavigationFailed,
			Err:   errors.New("rendering session is not started"),
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tracer().Debugf("navigating to %s", url)
	if err := s.engine.Navigate(ctx, url); err != nil {
		return domain.MeasurementResult{}, classify(ctx, domain.CauseNavigationFailed, err)
	}

	tracer().Debugf("measuring %d font(s)", len(args.Fonts))
	raw, err := s.engine.Call(ctx, script, args)
	if err != nil {
		return domain.MeasurementResult{}, classify(ctx, domain.CauseScriptThrew, err)
	}
	return measure.Decode(raw, requested)
}

// Stop closes the engine session. Stopping a stopped session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false
	if err := s.engine.Close(); err != nil {
		return fmt.Errorf("close rendering session: %w", err)
	}
	return nil
}

func classify(ctx context.Context, cause domain.RenderCause, err error) error {
	var renderErr *domain.RenderingError
	if errors.As(err, &renderErr) {
		return renderErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cause = domain.CauseTimeout
	}
	return &domain.RenderingError{Cause: cause, Err: err}
}
