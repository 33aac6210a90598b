package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"font-metrics/internal/domain"
)

// Options is a partial run configuration as supplied by a caller.
type Options struct {
	Fonts            []domain.FontRequest `json:"fonts,omitempty"`
	FontSize         *float64             `json:"fontSize,omitempty"`
	OutputPath       *string              `json:"outputPath,omitempty"`
	OutputFilename   *string              `json:"outputFilename,omitempty"`
	ServerPort       *int                 `json:"serverPort,omitempty"`
	AdditionalMounts []domain.Mount       `json:"additionalMounts,omitempty"`
	Debug            *bool                `json:"debug,omitempty"`
	PageDir          *string              `json:"pageDir,omitempty"`
	ProbeText        *string              `json:"probeText,omitempty"`
	SpecimenFilename *string              `json:"specimenFilename,omitempty"`
	Engine           EngineOptions        `json:"engine"`
}

// EngineOptions is the partial form of domain.EngineOptions.
type EngineOptions struct {
	Show     *bool          `json:"show,omitempty"`
	ExecPath *string        `json:"execPath,omitempty"`
	Flags    map[string]any `json:"flags,omitempty"`
	Timeout  *Duration      `json:"timeout,omitempty"`
}

// Duration reads either a Go duration string ("45s") or a number of
// seconds from JSON.
type Duration time.Duration

// UnmarshalJSON accepts "1m30s" or 90.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(v * float64(time.Second))
	default:
		return fmt.Errorf("duration must be a string or a number of seconds, got %s", string(data))
	}
	return nil
}

// MarshalJSON writes the duration in Go notation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Resolve merges opts over Defaults. Scalars override the default, supplied
// sequences replace the default sequence, engine flags are merged key by key.
// Resolve has no side effects and never aliases slices or maps of opts.
func Resolve(opts Options) domain.RunConfig {
	cfg := Defaults()

	if opts.Fonts != nil {
		cfg.Fonts = slices.Clone(opts.Fonts)
	}
	if opts.FontSize != nil {
		cfg.FontSize = *opts.FontSize
	}
	if opts.OutputPath != nil {
		cfg.OutputPath = *opts.OutputPath
	}
	if opts.OutputFilename != nil {
		cfg.OutputFilename = *opts.OutputFilename
	}
	if opts.ServerPort != nil {
		cfg.ServerPort = *opts.ServerPort
	}
	if opts.AdditionalMounts != nil {
		cfg.AdditionalMounts = slices.Clone(opts.AdditionalMounts)
	}
	if opts.Debug != nil {
		cfg.Debug = *opts.Debug
	}
	if opts.PageDir != nil {
		cfg.PageDir = *opts.PageDir
	}
	if opts.ProbeText != nil {
		cfg.ProbeText = *opts.ProbeText
	}
	if opts.SpecimenFilename != nil {
		cfg.SpecimenFilename = *opts.SpecimenFilename
	}

	if opts.Engine.Show != nil {
		cfg.Engine.Show = *opts.Engine.Show
	}
	if opts.Engine.ExecPath != nil {
		cfg.Engine.ExecPath = *opts.Engine.ExecPath
	}
	maps.Copy(cfg.Engine.Flags, opts.Engine.Flags)
	if opts.Engine.Timeout != nil {
		cfg.Engine.Timeout = time.Duration(*opts.Engine.Timeout)
	}

	tracer().Debugf("resolved configuration: %d fonts, size %v, port %d", len(cfg.Fonts), cfg.FontSize, cfg.ServerPort)
	return cfg
}

// Override returns o with every option supplied in over replacing o's value.
// It layers command-line flags over a configuration file.
func (o Options) Override(over Options) Options {
	out := o
	if over.Fonts != nil {
		out.Fonts = over.Fonts
	}
	if over.FontSize != nil {
		out.FontSize = over.FontSize
	}
	if over.OutputPath != nil {
		out.OutputPath = over.OutputPath
	}
	if over.OutputFilename != nil {
		out.OutputFilename = over.OutputFilename
	}
	if over.ServerPort != nil {
		out.ServerPort = over.ServerPort
	}
	if over.AdditionalMounts != nil {
		out.AdditionalMounts = over.AdditionalMounts
	}
	if over.Debug != nil {
		out.Debug = over.Debug
	}
	if over.PageDir != nil {
		out.PageDir = over.PageDir
	}
	if over.ProbeText != nil {
		out.ProbeText = over.ProbeText
	}
	if over.SpecimenFilename != nil {
		out.SpecimenFilename = over.SpecimenFilename
	}
	if over.Engine.Show != nil {
		out.Engine.Show = over.Engine.Show
	}
	if over.Engine.ExecPath != nil {
		out.Engine.ExecPath = over.Engine.ExecPath
	}
	if over.Engine.Flags != nil {
		merged := maps.Clone(o.Engine.Flags)
		if merged == nil {
			merged = map[string]any{}
		}
		maps.Copy(merged, over.Engine.Flags)
		out.Engine.Flags = merged
	}
	if over.Engine.Timeout != nil {
		out.Engine.Timeout = over.Engine.Timeout
	}
	return out
}

// Ptr returns a pointer to v, for building Options in code.
func Ptr[T any](v T) *T {
	return &v
}
