package render

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"font-metrics/internal/domain"
	"font-metrics/internal/measure"
)

// fakeLoader fails the families listed in broken.
type fakeLoader struct {
	broken map[string]error
}

func (l fakeLoader) Load(_ context.Context, family, _ string) error {
	return l.broken[family]
}

// fakeSurface measures the width as the length of the current font string.
type fakeSurface struct {
	baseline string
	font     string
}

func (s *fakeSurface) SetTextBaseline(b string) { s.baseline = b }
func (s *fakeSurface) TextBaseline() string     { return s.baseline }
func (s *fakeSurface) SetFont(f string)         { s.font = f }

func (s *fakeSurface) MeasureText(text string) domain.MetricsRecord {
	return domain.MetricsRecord{
		Width:                   float64(len(s.font)),
		FontBoundingBoxAscent:   22,
		FontBoundingBoxDescent:  5,
		ActualBoundingBoxAscent: float64(len(text)),
		EmHeightAscent:          19,
		EmHeightDescent:         5,
		HangingBaseline:         15.25,
		IdeographicBaseline:     -5,
	}
}

// fakeEngine runs the measurement routine in process and answers Call with
// the encoded outcome document.
type fakeEngine struct {
	opened      int
	closed      int
	navigated   []string
	calls       int
	openErr     error
	navigateErr error
	callErr     error
	block       bool
	broken      map[string]error
	raw         json.RawMessage
}

func (e *fakeEngine) Open(_ context.Context, _ domain.EngineOptions) error {
	if e.openErr != nil {
		return e.openErr
	}
	e.opened++
	return nil
}

func (e *fakeEngine) Navigate(_ context.Context, url string) error {
	e.navigated = append(e.navigated, url)
	return e.navigateErr
}

func (e *fakeEngine) Call(ctx context.Context, _ string, args any) (json.RawMessage, error) {
	e.calls++
	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if e.callErr != nil {
		return nil, e.callErr
	}
	if e.raw != nil {
		return e.raw, nil
	}
	routine := measure.Routine{
		Loader:  fakeLoader{broken: e.broken},
		Surface: func() (measure.Surface, error) { return &fakeSurface{}, nil },
	}
	metrics, err := routine.Run(ctx, args.(measure.Args))
	return measure.Encode(metrics, err)
}

func (e *fakeEngine) Close() error {
	e.closed++
	return nil
}

func src(s string) *string { return &s }

func startedSession(t *testing.T, engine *fakeEngine, timeout time.Duration) *Session {
	t.Helper()
	s := NewSession(engine)
	cfg := domain.RunConfig{Engine: domain.EngineOptions{Timeout: timeout}}
	require.NoError(t, s.Start(context.Background(), cfg))
	return s
}

// TestSessionStartIsIdempotent checks only one engine session is opened.
func TestSessionStartIsIdempotent(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.render")
	defer teardown()

	engine := &fakeEngine{}
	s := startedSession(t, engine, time.Second)
	require.NoError(t, s.Start(context.Background(), domain.RunConfig{}))

	assert.Equal(t, 1, engine.opened)
	assert.True(t, s.Started())

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.Equal(t, 1, engine.closed)
	assert.False(t, s.Started())
}

// TestSessionStartError checks a failed launch leaves the session stopped.
func TestSessionStartError(t *testing.T) {
	engine := &fakeEngine{openErr: errors.New("chrome not found")}
	s := NewSession(engine)

	err := s.Start(context.Background(), domain.RunConfig{})
	require.Error(t, err)
	assert.False(t, s.Started())
}

// TestRunMeasurementSuccess checks the happy path returns one record per
// family and navigates to the page exactly once.
func TestRunMeasurementSuccess(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.render")
	defer teardown()

	engine := &fakeEngine{}
	s := startedSession(t, engine, time.Second)

	requested := []domain.FontRequest{{FontFamily: "Arial"}, {FontFamily: "Custom", Source: src("/_fonts/x.woff2")}}
	faces := []measure.Face{{FontFamily: "Arial"}, {FontFamily: "Custom", URL: src("/_fonts/x.woff2")}}

	result, err := s.RunMeasurement(context.Background(), "http://127.0.0.1:3000/", measure.Script,
		measure.NewArgs(faces, 24, "Example", "canvas"), requested)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://127.0.0.1:3000/"}, engine.navigated)
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, requested, result.RequestedFonts)
	require.Len(t, result.Metrics, 2)
	assert.Equal(t, "alphabetic", result.Metrics["Arial"].TextBaseline)
	assert.Equal(t, 24.0, result.Metrics["Custom"].FontSizeUsed)
	assert.Equal(t, float64(len("24px Arial")), result.Metrics["Arial"].Width)
}

// TestRunMeasurementFailures checks every failure is classified.
func TestRunMeasurementFailures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.render")
	defer teardown()

	tests := []struct {
		name   string
		engine *fakeEngine
		cause  domain.RenderCause
		family string
	}{
		{name: "navigation", engine: &fakeEngine{navigateErr: errors.New("net::ERR_CONNECTION_REFUSED")}, cause: domain.CauseNavigationFailed},
		{name: "script", engine: &fakeEngine{callErr: errors.New("exception: canvas is null")}, cause: domain.CauseScriptThrew},
		{name: "font load", engine: &fakeEngine{broken: map[string]error{"Custom": errors.New("NetworkError")}}, cause: domain.CauseFontLoadFailed, family: "Custom"},
		{name: "malformed", engine: &fakeEngine{raw: json.RawMessage(`{"metrics":{}}`)}, cause: domain.CauseMalformedResult, family: "Arial"},
		{name: "timeout", engine: &fakeEngine{block: true}, cause: domain.CauseTimeout},
	}

	requested := []domain.FontRequest{{FontFamily: "Arial"}, {FontFamily: "Custom", Source: src("http://bad-host/x.woff")}}
	faces := []measure.Face{{FontFamily: "Arial"}, {FontFamily: "Custom", URL: src("http://bad-host/x.woff")}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startedSession(t, tt.engine, 50*time.Millisecond)

			_, err := s.RunMeasurement(context.Background(), "http://127.0.0.1:3000/", measure.Script,
				measure.NewArgs(faces, 24, "Example", "canvas"), requested)

			var renderErr *domain.RenderingError
			require.ErrorAs(t, err, &renderErr)
			assert.Equal(t, tt.cause, renderErr.Cause)
			if tt.family != "" {
				assert.Equal(t, tt.family, renderErr.FontFamily)
			}
		})
	}
}

// TestRunMeasurementRequiresStart checks measuring without a session fails.
func TestRunMeasurementRequiresStart(t *testing.T) {
	engine := &fakeEngine{}
	s := NewSession(engine)

	_, err := s.RunMeasurement(context.Background(), "http://127.0.0.1:3000/", measure.Script,
		measure.NewArgs(nil, 24, "Example", "canvas"), nil)

	var renderErr *domain.RenderingError
	require.ErrorAs(t, err, &renderErr)
	assert.Empty(t, engine.navigated)
}
