package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"font-metrics/internal/config"
	"font-metrics/internal/domain"
	"font-metrics/internal/fontsrc"
	"font-metrics/internal/measure"
	"font-metrics/internal/persist"
	"font-metrics/internal/render"
	"font-metrics/internal/server"
)

// StageError is a stage-aware run failure. Err is the domain error of the
// taxonomy that caused it.
type StageError struct {
	Stage domain.RunStatus `json:"stage"`
	Err   error            `json:"-"`
}

// Error formats the failing stage and its cause.
func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Outcome is the result of a successful run.
type Outcome struct {
	RunID        string                   `json:"runId"`
	Result       domain.MeasurementResult `json:"result"`
	OutputFile   string                   `json:"outputFile"`
	SpecimenFile string                   `json:"specimenFile,omitempty"`
}

// contentServer isolates the content server behind an interface.
type contentServer interface {
	Start(ctx context.Context, cfg domain.RunConfig) error
	Stop() error
	URL() string
	Publish(localPath string) (string, error)
}

// renderSession isolates the rendering session behind an interface.
type renderSession interface {
	Start(ctx context.Context, cfg domain.RunConfig) error
	RunMeasurement(ctx context.Context, url, script string, args measure.Args, requested []domain.FontRequest) (domain.MeasurementResult, error)
	Stop() error
}

// fontResolver turns font requests into loadable faces.
type fontResolver interface {
	Resolve(fonts []domain.FontRequest, mounts []domain.Mount, pub fontsrc.Publisher) ([]measure.Face, error)
}

// Pipeline orchestrates validation, serving, rendering and persistence.
type Pipeline struct {
	server   contentServer
	session  renderSession
	resolver fontResolver
	machine  *Machine
	events   *EventBus

	save         func(result domain.MeasurementResult, outputPath, outputFilename string) (string, error)
	saveSpecimen func(result domain.MeasurementResult, probe, outputPath, filename string) (string, error)
	newID        func() string

	runMu sync.Mutex
}

// NewPipeline constructs the production pipeline: echo content server,
// Chrome rendering session, file system font resolver.
func NewPipeline() *Pipeline {
	return NewPipelineForTests(server.New(), render.NewSession(nil), fontsrc.NewResolver())
}

// NewPipelineForTests constructs a pipeline with injectable components.
func NewPipelineForTests(srv contentServer, session renderSession, resolver fontResolver) *Pipeline {
	return &Pipeline{
		server:       srv,
		session:      session,
		resolver:     resolver,
		machine:      NewMachine(),
		events:       NewEventBus(1000),
		save:         persist.Save,
		saveSpecimen: persist.SaveSpecimen,
		newID:        uuid.NewString,
	}
}

// Run resolves opts over the defaults and executes one measurement run.
// Runs are serialized; a failure is a *StageError.
func (p *Pipeline) Run(ctx context.Context, opts config.Options) (Outcome, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	runID := p.newID()
	if err := p.machine.Begin(runID); err != nil {
		return Outcome{}, err
	}
	p.publishStatus(runID, domain.RunStatusValidating, "Run started")

	cfg := config.Resolve(opts)
	if err := config.Validate(cfg); err != nil {
		return Outcome{}, p.fail(runID, domain.RunStatusValidating, err)
	}

	if err := p.advance(runID, domain.RunStatusServerStarting, "Starting content server"); err != nil {
		return Outcome{}, err
	}
	if err := p.server.Start(ctx, cfg); err != nil {
		return Outcome{}, p.fail(runID, domain.RunStatusServerStarting, err)
	}
	p.publishLog(runID, "Content server at "+p.server.URL())

	if err := p.advance(runID, domain.RunStatusBrowserStarting, "Starting rendering session"); err != nil {
		return Outcome{}, err
	}
	if err := p.session.Start(ctx, cfg); err != nil {
		return Outcome{}, p.fail(runID, domain.RunStatusBrowserStarting, err)
	}

	if err := p.advance(runID, domain.RunStatusMeasuring, fmt.Sprintf("Measuring %d font(s)", len(cfg.Fonts))); err != nil {
		return Outcome{}, err
	}
	faces, err := p.resolver.Resolve(cfg.Fonts, cfg.AdditionalMounts, p.server)
	if err != nil {
		return Outcome{}, p.fail(runID, domain.RunStatusMeasuring, err)
	}
	args := measure.NewArgs(faces, cfg.FontSize, cfg.ProbeText, server.SurfaceID)
	result, err := p.session.RunMeasurement(ctx, p.server.URL(), measure.Script, args, cfg.Fonts)
	if err != nil {
		// The server stays warm; the session is reopened by the next run.
		if stopErr := p.session.Stop(); stopErr != nil {
			tracer().Errorf("run %s: %v", runID, stopErr)
		}
		return Outcome{}, p.fail(runID, domain.RunStatusMeasuring, err)
	}

	if err := p.advance(runID, domain.RunStatusPersisting, "Writing metrics"); err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{RunID: runID, Result: result}
	// The metrics artifact goes last so a failed run never replaces it.
	if cfg.SpecimenFilename != "" {
		if outcome.SpecimenFile, err = p.saveSpecimen(result, cfg.ProbeText, cfg.OutputPath, cfg.SpecimenFilename); err != nil {
			return Outcome{}, p.fail(runID, domain.RunStatusPersisting, err)
		}
	}
	if outcome.OutputFile, err = p.save(result, cfg.OutputPath, cfg.OutputFilename); err != nil {
		return Outcome{}, p.fail(runID, domain.RunStatusPersisting, err)
	}

	if err := p.advance(runID, domain.RunStatusDone, "Run completed"); err != nil {
		return Outcome{}, err
	}
	p.events.Publish(Event{
		RunID:   runID,
		Type:    EventTypeResult,
		Status:  domain.RunStatusDone,
		Message: fmt.Sprintf("Metrics written for %d font(s)", len(result.Metrics)),
		Path:    outcome.OutputFile,
	})
	return outcome, nil
}

// Finish stops the rendering session and the content server. It is safe to
// call repeatedly and when no run happened.
func (p *Pipeline) Finish() error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	sessionErr := p.session.Stop()
	serverErr := p.server.Stop()
	if err := errors.Join(sessionErr, serverErr); err != nil {
		tracer().Errorf("teardown: %v", err)
		return err
	}
	tracer().Debugf("pipeline resources released")
	return nil
}

// Current returns a snapshot of the current or last run.
func (p *Pipeline) Current() domain.Run {
	return p.machine.Current()
}

// Events returns all events with sequence greater than since.
func (p *Pipeline) Events(since int64) []Event {
	return p.events.Since(since)
}

// advance moves the run to status and publishes the transition.
func (p *Pipeline) advance(runID string, status domain.RunStatus, message string) error {
	if err := p.machine.Transition(status); err != nil {
		return err
	}
	p.publishStatus(runID, status, message)
	return nil
}

// fail moves the run to failed and wraps err with its stage.
func (p *Pipeline) fail(runID string, stage domain.RunStatus, err error) error {
	stageErr := &StageError{Stage: stage, Err: err}
	if transitionErr := p.machine.Fail(stageErr); transitionErr != nil {
		tracer().Errorf("%v", transitionErr)
	}
	tracer().Errorf("run %s failed in %s: %v", runID, stage, err)

	event := Event{
		RunID:   runID,
		Type:    EventTypeError,
		Status:  domain.RunStatusFailed,
		Message: err.Error(),
	}
	var renderErr *domain.RenderingError
	if errors.As(err, &renderErr) {
		event.FontFamily = renderErr.FontFamily
	}
	var persistErr *domain.PersistenceError
	if errors.As(err, &persistErr) {
		event.Path = persistErr.Path
	}
	p.publishStatus(runID, domain.RunStatusFailed, "Run failed")
	p.events.Publish(event)
	return stageErr
}

func (p *Pipeline) publishStatus(runID string, status domain.RunStatus, message string) {
	tracer().Debugf("run %s: %s", runID, status)
	p.events.Publish(Event{
		RunID:   runID,
		Type:    EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

func (p *Pipeline) publishLog(runID, message string) {
	tracer().Infof("%s", message)
	p.events.Publish(Event{
		RunID:   runID,
		Type:    EventTypeLog,
		Message: message,
	})
}
