package config

import (
	"fmt"
	"math"
	"strings"

	"font-metrics/internal/domain"
)

// Validate checks cfg before any resource is acquired. Rules run in a fixed
// order (font list, font entries, output path, font size, mounts) and the
// first violated rule determines the reported reason.
func Validate(cfg domain.RunConfig) error {
	if len(cfg.Fonts) == 0 {
		return invalid(domain.ReasonEmptyFontList, "at least one font is required")
	}

	for i, font := range cfg.Fonts {
		if strings.TrimSpace(font.FontFamily) == "" {
			return invalid(domain.ReasonInvalidFontEntry, fmt.Sprintf("fonts[%d]: fontFamily is required", i))
		}
	}

	if strings.TrimSpace(cfg.OutputPath) == "" {
		return invalid(domain.ReasonInvalidOutputPath, "outputPath is empty")
	}
	if strings.TrimSpace(cfg.OutputFilename) == "" {
		return invalid(domain.ReasonInvalidOutputPath, "outputFilename is empty")
	}

	if math.IsNaN(cfg.FontSize) || math.IsInf(cfg.FontSize, 0) || cfg.FontSize <= 0 {
		return invalid(domain.ReasonInvalidFontSize, fmt.Sprintf("fontSize %v is not a positive number", cfg.FontSize))
	}

	for i, mount := range cfg.AdditionalMounts {
		alias := strings.Trim(strings.TrimSpace(mount.Alias), "/")
		if alias == "" {
			return invalid(domain.ReasonInvalidMount, fmt.Sprintf("additionalMounts[%d]: alias must name a sub-path", i))
		}
		if strings.TrimSpace(mount.LocalPath) == "" {
			return invalid(domain.ReasonInvalidMount, fmt.Sprintf("additionalMounts[%d]: localPath is empty", i))
		}
	}

	return nil
}

func invalid(reason domain.ConfigReason, detail string) error {
	tracer().Errorf("configuration rejected: %s: %s", reason, detail)
	return &domain.ConfigurationError{Reason: reason, Detail: detail}
}
