package config

import (
	"time"

	"font-metrics/internal/domain"
)

const (
	DefaultFontSize       = 24
	DefaultOutputPath     = "./"
	DefaultOutputFilename = "fontMetrics.json"
	DefaultServerPort     = 3000
	DefaultProbeText      = "Example"
	DefaultTimeout        = 30 * time.Second
)

// DefaultEngineFlags returns the Chrome switches needed for full
// TextMetrics support.
func DefaultEngineFlags() map[string]any {
	return map[string]any{
		"enable-experimental-web-platform-features": true,
	}
}

// Defaults returns the baseline run configuration. Every call returns fresh
// slices and maps.
func Defaults() domain.RunConfig {
	return domain.RunConfig{
		Fonts:            []domain.FontRequest{},
		FontSize:         DefaultFontSize,
		OutputPath:       DefaultOutputPath,
		OutputFilename:   DefaultOutputFilename,
		ServerPort:       DefaultServerPort,
		AdditionalMounts: []domain.Mount{},
		Debug:            false,
		ProbeText:        DefaultProbeText,
		Engine: domain.EngineOptions{
			Show:    false,
			Flags:   DefaultEngineFlags(),
			Timeout: DefaultTimeout,
		},
	}
}
