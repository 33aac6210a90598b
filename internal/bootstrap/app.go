// Package bootstrap wires the options store, tracing, the measurement
// pipeline and the preflight checker into an App.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"

	"font-metrics/internal/config"
	"font-metrics/internal/diagnostics"
	"font-metrics/internal/domain"
	"font-metrics/internal/pipeline"
)

// TraceKeys lists the tracing key of every package.
var TraceKeys = []string{
	"fontmetrics.config",
	"fontmetrics.server",
	"fontmetrics.render",
	"fontmetrics.measure",
	"fontmetrics.fontsrc",
	"fontmetrics.persist",
	"fontmetrics.pipeline",
	"fontmetrics.diagnostics",
}

// App wires configuration, pipeline, and diagnostics for the CLI.
type App struct {
	Store    config.Store
	Pipeline pipelineRunner
	Checker  checker
	trace    tracing.Trace
}

// pipelineRunner isolates the measurement pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, opts config.Options) (pipeline.Outcome, error)
	Finish() error
	Current() domain.Run
	Events(since int64) []pipeline.Event
}

// checker isolates the preflight checks behind an interface.
type checker interface {
	Run(cfg domain.RunConfig) domain.DiagnosticReport
}

// New builds the application. An empty configPath means no options file.
func New(configPath string) *App {
	var store config.Store
	if configPath != "" {
		store = config.NewJSONStore(configPath)
	}
	return &App{
		Store:    store,
		Pipeline: pipeline.NewPipeline(),
		Checker:  diagnostics.NewChecker(),
		trace:    gologadapter.New(),
	}
}

// Options loads the options file and applies overrides on top of it.
func (a *App) Options(overrides config.Options) (config.Options, error) {
	var opts config.Options
	if a.Store != nil {
		loaded, err := a.Store.Load()
		if err != nil {
			return config.Options{}, fmt.Errorf("load options: %w", err)
		}
		opts = loaded
	}
	return opts.Override(overrides), nil
}

// Measure runs one measurement with the loaded options and overrides.
func (a *App) Measure(ctx context.Context, overrides config.Options) (pipeline.Outcome, error) {
	opts, err := a.Options(overrides)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	a.configureTracing(opts.Debug != nil && *opts.Debug)

	outcome, err := a.Pipeline.Run(ctx, opts)
	if err != nil {
		a.tracer().Errorf("measurement failed: %v", err)
		return pipeline.Outcome{}, err
	}
	a.tracer().Infof("run %s wrote %s", outcome.RunID, outcome.OutputFile)
	return outcome, nil
}

// Check runs the preflight checks for the loaded options and overrides.
func (a *App) Check(overrides config.Options) (domain.DiagnosticReport, error) {
	opts, err := a.Options(overrides)
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	a.configureTracing(opts.Debug != nil && *opts.Debug)
	return a.Checker.Run(config.Resolve(opts)), nil
}

// CurrentRun returns the status of the current or last run.
func (a *App) CurrentRun() domain.Run {
	return a.Pipeline.Current()
}

// Events returns all run events with sequence greater than sinceSeq.
func (a *App) Events(sinceSeq int64) []pipeline.Event {
	return a.Pipeline.Events(sinceSeq)
}

// Close releases the content server and the rendering session.
func (a *App) Close() error {
	return a.Pipeline.Finish()
}

// configureTracing sets every package tracer to debug or error level.
func (a *App) configureTracing(debug bool) {
	level := tracing.LevelError
	if debug {
		level = tracing.LevelDebug
	}
	for _, key := range TraceKeys {
		tracing.Select(key).SetTraceLevel(level)
	}
	a.tracer().SetTraceLevel(level)
}

func (a *App) tracer() tracing.Trace {
	if a.trace == nil {
		a.trace = gologadapter.New()
	}
	return a.trace
}
