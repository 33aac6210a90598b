package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"font-metrics/internal/domain"
)

// Store defines persistence operations for run options.
type Store interface {
	Load() (Options, error)
	Save(Options) error
}

// JSONStore persists options in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed options store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads options from disk or returns empty options when the file is
// missing. A value of the wrong JSON type is reported as the
// ConfigurationError the validator would raise for that option.
func (s *JSONStore) Load() (Options, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			tracer().Debugf("no options file at %s, using defaults", s.path)
			return Options{}, nil
		}

		return Options{}, err
	}

	var opts Options
	if err := json.Unmarshal(data, &opts); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Options{}, &domain.ConfigurationError{
				Reason: reasonForField(typeErr),
				Detail: fmt.Sprintf("%s: unexpected %s", typeErr.Field, typeErr.Value),
				Err:    err,
			}
		}
		return Options{}, fmt.Errorf("parse %s: %w", s.path, err)
	}

	return opts, nil
}

// Save writes options as indented JSON and creates parent directories.
func (s *JSONStore) Save(opts Options) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}

// reasonForField maps a JSON type mismatch to a validation reason.
func reasonForField(typeErr *json.UnmarshalTypeError) domain.ConfigReason {
	field := typeErr.Field
	switch {
	case field == "fonts" && typeErr.Type != nil && typeErr.Type.Kind() == reflect.Slice:
		return domain.ReasonEmptyFontList
	case field == "fonts" || strings.HasPrefix(field, "fonts."):
		return domain.ReasonInvalidFontEntry
	case field == "outputPath" || field == "outputFilename":
		return domain.ReasonInvalidOutputPath
	case field == "fontSize":
		return domain.ReasonInvalidFontSize
	case strings.HasPrefix(field, "additionalMounts"):
		return domain.ReasonInvalidMount
	default:
		return domain.ReasonInvalidOption
	}
}
