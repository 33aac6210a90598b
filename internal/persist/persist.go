// Package persist writes the measurement artifact.
//
// Every write goes to a temporary file in the destination directory that is
// renamed over the target once complete, so readers see either the previous
// artifact or the new one.
package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/npillmayer/schuko/tracing"

	"font-metrics/internal/domain"
	"font-metrics/internal/specimen"
)

// tracer traces to tracing key 'fontmetrics.persist'.
func tracer() tracing.Trace {
	return tracing.Select("fontmetrics.persist")
}

const indent = "    "

// Target resolves outputFilename against outputPath to an absolute path.
func Target(outputPath, outputFilename string) (string, error) {
	return filepath.Abs(filepath.Join(outputPath, outputFilename))
}

// Save writes result as indented JSON to outputPath/outputFilename,
// creating missing directories and replacing an existing file. It returns
// the absolute path written. Failures are *domain.PersistenceError.
func Save(result domain.MeasurementResult, outputPath, outputFilename string) (string, error) {
	path, err := Target(outputPath, outputFilename)
	if err != nil {
		return "", &domain.PersistenceError{Path: filepath.Join(outputPath, outputFilename), Err: err}
	}

	data, err := json.MarshalIndent(result, "", indent)
	if err != nil {
		return "", &domain.PersistenceError{Path: path, Err: fmt.Errorf("encode result: %w", err)}
	}
	data = append(data, '\n')

	if err := writeAtomic(path, bytes.NewReader(data)); err != nil {
		return "", &domain.PersistenceError{Path: path, Err: err}
	}
	tracer().Infof("wrote %d font metric record(s) to %s", len(result.Metrics), path)
	return path, nil
}

// SaveSpecimen writes the SVG specimen of result next to the artifact.
func SaveSpecimen(result domain.MeasurementResult, probe, outputPath, filename string) (string, error) {
	path, err := Target(outputPath, filename)
	if err != nil {
		return "", &domain.PersistenceError{Path: filepath.Join(outputPath, filename), Err: err}
	}

	var buf bytes.Buffer
	if err := specimen.Render(&buf, result, probe); err != nil {
		return "", &domain.PersistenceError{Path: path, Err: fmt.Errorf("render specimen: %w", err)}
	}
	if err := writeAtomic(path, &buf); err != nil {
		return "", &domain.PersistenceError{Path: path, Err: err}
	}
	tracer().Infof("wrote specimen to %s", path)
	return path, nil
}

// Load reads an artifact written by Save.
func Load(path string) (domain.MeasurementResult, error) {
	var result domain.MeasurementResult
	data, err := os.ReadFile(path)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decode %s: %w", path, err)
	}
	return result, nil
}

func writeAtomic(path string, content io.Reader) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
