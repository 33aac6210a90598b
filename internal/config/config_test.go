package config

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"font-metrics/internal/domain"
)

func validConfig() domain.RunConfig {
	cfg := Defaults()
	cfg.Fonts = []domain.FontRequest{{FontFamily: "Arial"}}
	return cfg
}

// TestDefaults verifies baseline defaults are present.
func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 24.0, cfg.FontSize)
	assert.Equal(t, "./", cfg.OutputPath)
	assert.Equal(t, "fontMetrics.json", cfg.OutputFilename)
	assert.Equal(t, 3000, cfg.ServerPort)
	assert.Empty(t, cfg.AdditionalMounts)
	assert.Empty(t, cfg.Fonts)
	assert.False(t, cfg.Debug)
	assert.False(t, cfg.Engine.Show)
	assert.Equal(t, "Example", cfg.ProbeText)
	assert.Equal(t, true, cfg.Engine.Flags["enable-experimental-web-platform-features"])
}

// TestResolveOverridesScalarsAndReplacesSequences checks the merge policy.
func TestResolveOverridesScalarsAndReplacesSequences(t *testing.T) {
	src := "fonts/custom.woff2"
	cfg := Resolve(Options{
		Fonts:          []domain.FontRequest{{FontFamily: "Custom", Source: &src}},
		FontSize:       Ptr(12.5),
		OutputFilename: Ptr("m.json"),
		ServerPort:     Ptr(4100),
		AdditionalMounts: []domain.Mount{
			{Alias: "/fonts", LocalPath: "./assets"},
		},
		Engine: EngineOptions{
			Show:    Ptr(true),
			Flags:   map[string]any{"disable-gpu": true},
			Timeout: Ptr(Duration(5 * time.Second)),
		},
	})

	require.Len(t, cfg.Fonts, 1)
	assert.Equal(t, "Custom", cfg.Fonts[0].FontFamily)
	assert.Equal(t, 12.5, cfg.FontSize)
	assert.Equal(t, "./", cfg.OutputPath, "unset scalars keep the default")
	assert.Equal(t, "m.json", cfg.OutputFilename)
	assert.Equal(t, 4100, cfg.ServerPort)
	assert.Equal(t, []domain.Mount{{Alias: "/fonts", LocalPath: "./assets"}}, cfg.AdditionalMounts)
	assert.True(t, cfg.Engine.Show)
	assert.Equal(t, 5*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, true, cfg.Engine.Flags["disable-gpu"])
	assert.Equal(t, true, cfg.Engine.Flags["enable-experimental-web-platform-features"])
}

// TestResolveDoesNotAliasOptions checks Resolve is free of shared state.
func TestResolveDoesNotAliasOptions(t *testing.T) {
	opts := Options{Fonts: []domain.FontRequest{{FontFamily: "A"}}}
	cfg := Resolve(opts)
	opts.Fonts[0].FontFamily = "B"
	if cfg.Fonts[0].FontFamily != "A" {
		t.Fatalf("font family = %q, want A", cfg.Fonts[0].FontFamily)
	}

	cfg.Engine.Flags["mutated"] = true
	if _, ok := Defaults().Engine.Flags["mutated"]; ok {
		t.Fatal("defaults share the engine flag map")
	}
}

// TestOverrideLayersOptions checks flags replace file options only when set.
func TestOverrideLayersOptions(t *testing.T) {
	file := Options{
		FontSize:   Ptr(30.0),
		OutputPath: Ptr("out"),
		Engine:     EngineOptions{Flags: map[string]any{"a": true}},
	}
	flags := Options{
		OutputPath: Ptr("elsewhere"),
		Engine:     EngineOptions{Flags: map[string]any{"b": false}},
	}

	got := file.Override(flags)
	assert.Equal(t, 30.0, *got.FontSize)
	assert.Equal(t, "elsewhere", *got.OutputPath)
	assert.Equal(t, map[string]any{"a": true, "b": false}, got.Engine.Flags)
	assert.Equal(t, map[string]any{"a": true}, file.Engine.Flags)
}

// TestValidateAcceptsValidConfig checks the happy path.
func TestValidateAcceptsValidConfig(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.config")
	defer teardown()

	cfg := validConfig()
	empty := ""
	cfg.Fonts = append(cfg.Fonts, domain.FontRequest{FontFamily: "Blank Source", Source: &empty})
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

// TestValidateReasons checks each rule in isolation.
func TestValidateReasons(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.config")
	defer teardown()

	tests := []struct {
		name   string
		mutate func(*domain.RunConfig)
		want   domain.ConfigReason
	}{
		{"empty font list", func(c *domain.RunConfig) { c.Fonts = nil }, domain.ReasonEmptyFontList},
		{"blank family", func(c *domain.RunConfig) { c.Fonts = []domain.FontRequest{{FontFamily: "  "}} }, domain.ReasonInvalidFontEntry},
		{"empty output path", func(c *domain.RunConfig) { c.OutputPath = "" }, domain.ReasonInvalidOutputPath},
		{"empty output filename", func(c *domain.RunConfig) { c.OutputFilename = "" }, domain.ReasonInvalidOutputPath},
		{"zero font size", func(c *domain.RunConfig) { c.FontSize = 0 }, domain.ReasonInvalidFontSize},
		{"negative font size", func(c *domain.RunConfig) { c.FontSize = -3 }, domain.ReasonInvalidFontSize},
		{"NaN font size", func(c *domain.RunConfig) { c.FontSize = math.NaN() }, domain.ReasonInvalidFontSize},
		{"infinite font size", func(c *domain.RunConfig) { c.FontSize = math.Inf(1) }, domain.ReasonInvalidFontSize},
		{"root mount alias", func(c *domain.RunConfig) { c.AdditionalMounts = []domain.Mount{{Alias: "/", LocalPath: "x"}} }, domain.ReasonInvalidMount},
		{"empty mount path", func(c *domain.RunConfig) { c.AdditionalMounts = []domain.Mount{{Alias: "/f", LocalPath: ""}} }, domain.ReasonInvalidMount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assertReason(t, Validate(cfg), tt.want)
		})
	}
}

// TestValidateReportsFirstDefect checks the fixed rule order.
func TestValidateReportsFirstDefect(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "fontmetrics.config")
	defer teardown()

	cfg := validConfig()
	cfg.Fonts = nil
	cfg.FontSize = -1
	cfg.OutputPath = ""
	assertReason(t, Validate(cfg), domain.ReasonEmptyFontList)

	cfg = validConfig()
	cfg.Fonts = []domain.FontRequest{{FontFamily: ""}}
	cfg.OutputPath = ""
	assertReason(t, Validate(cfg), domain.ReasonInvalidFontEntry)

	cfg = validConfig()
	cfg.OutputFilename = ""
	cfg.FontSize = math.NaN()
	assertReason(t, Validate(cfg), domain.ReasonInvalidOutputPath)

	cfg = validConfig()
	cfg.FontSize = 0
	cfg.AdditionalMounts = []domain.Mount{{}}
	assertReason(t, Validate(cfg), domain.ReasonInvalidFontSize)
}

func assertReason(t *testing.T, err error, want domain.ConfigReason) {
	t.Helper()
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v (%T), want *domain.ConfigurationError", err, err)
	}
	if cfgErr.Reason != want {
		t.Fatalf("reason = %s, want %s", cfgErr.Reason, want)
	}
}
