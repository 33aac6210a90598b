package measure

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/samber/lo"

	"font-metrics/internal/domain"
)

// Script is the browser rendition of the routine: an async function
// expression taking Args and resolving to an outcome document.
//
//go:embed measure.js
var Script string

// Baseline is the fixed text baseline every family is measured against.
const Baseline = "alphabetic"

// Face is one font family as seen by the routine. URL is set when the face
// must be loaded before measuring.
type Face struct {
	FontFamily string  `json:"fontFamily"`
	URL        *string `json:"url,omitempty"`
}

// Args is the input payload of one batched measurement call.
type Args struct {
	Fonts       []Face   `json:"fonts"`
	FontSize    float64  `json:"fontSize"`
	ProbeText   string   `json:"probeText"`
	Baseline    string   `json:"baseline"`
	SurfaceID   string   `json:"surfaceId"`
	MetricNames []string `json:"metricNames"`
}

// NewArgs builds the payload for faces measured at size with probe text.
func NewArgs(faces []Face, size float64, probe, surfaceID string) Args {
	return Args{
		Fonts:       faces,
		FontSize:    size,
		ProbeText:   probe,
		Baseline:    Baseline,
		SurfaceID:   surfaceID,
		MetricNames: domain.MetricNames,
	}
}

// outcome is the document both renditions of the routine resolve to.
type outcome struct {
	Metrics map[string]map[string]json.RawMessage `json:"metrics,omitempty"`
	Failure *failure                              `json:"failure,omitempty"`
}

type failure struct {
	Kind       string `json:"kind"`
	FontFamily string `json:"fontFamily,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Decode turns the raw outcome document into a measurement result for
// requested. A reported font load failure becomes a FONT_LOAD_FAILED
// rendering error; a record that misses a requested family or carries a
// non-numeric metric is a MALFORMED_RESULT.
func Decode(raw []byte, requested []domain.FontRequest) (domain.MeasurementResult, error) {
	var out outcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.MeasurementResult{}, malformed("", fmt.Errorf("decode outcome: %w", err))
	}

	if out.Failure != nil {
		msg := errors.New(out.Failure.Message)
		if out.Failure.Kind == string(domain.CauseFontLoadFailed) {
			tracer().Errorf("font %q failed to load: %s", out.Failure.FontFamily, out.Failure.Message)
			return domain.MeasurementResult{}, domain.FontLoadFailed(out.Failure.FontFamily, msg)
		}
		return domain.MeasurementResult{}, &domain.RenderingError{Cause: domain.CauseScriptThrew, Err: msg}
	}

	metrics := make(map[string]domain.MetricsRecord, len(out.Metrics))
	for _, family := range lo.Uniq(lo.Map(requested, func(f domain.FontRequest, _ int) string { return f.FontFamily })) {
		fields, ok := out.Metrics[family]
		if !ok {
			return domain.MeasurementResult{}, malformed(family, errors.New("no metrics reported"))
		}
		record, err := decodeRecord(fields)
		if err != nil {
			return domain.MeasurementResult{}, malformed(family, err)
		}
		metrics[family] = record
	}

	return domain.MeasurementResult{
		RequestedFonts: requested,
		Metrics:        metrics,
	}, nil
}

// decodeRecord checks every metric is a finite number before decoding the
// record.
func decodeRecord(fields map[string]json.RawMessage) (domain.MetricsRecord, error) {
	for _, name := range append([]string{"fontSizeUsed"}, domain.MetricNames...) {
		raw, ok := fields[name]
		if !ok {
			return domain.MetricsRecord{}, fmt.Errorf("metric %s missing", name)
		}
		var v *float64
		if err := json.Unmarshal(raw, &v); err != nil || v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return domain.MetricsRecord{}, fmt.Errorf("metric %s is not numeric: %s", name, string(raw))
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return domain.MetricsRecord{}, err
	}
	var record domain.MetricsRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.MetricsRecord{}, err
	}
	return record, nil
}

// Encode renders a routine result as the outcome document Decode reads.
func Encode(metrics map[string]domain.MetricsRecord, err error) ([]byte, error) {
	var out outcome
	var renderErr *domain.RenderingError
	switch {
	case err == nil:
		out.Metrics = make(map[string]map[string]json.RawMessage, len(metrics))
		for family, record := range metrics {
			data, mErr := json.Marshal(record)
			if mErr != nil {
				return nil, mErr
			}
			var fields map[string]json.RawMessage
			if uErr := json.Unmarshal(data, &fields); uErr != nil {
				return nil, uErr
			}
			out.Metrics[family] = fields
		}
	case errors.As(err, &renderErr) && renderErr.Cause == domain.CauseFontLoadFailed:
		out.Failure = &failure{Kind: string(renderErr.Cause), FontFamily: renderErr.FontFamily, Message: errorText(renderErr.Err)}
	default:
		return nil, err
	}
	return json.Marshal(out)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func malformed(family string, err error) error {
	return &domain.RenderingError{Cause: domain.CauseMalformedResult, FontFamily: family, Err: err}
}

var plainFamily = regexp.MustCompile(`^[A-Za-z_-][A-Za-z0-9_ -]*$`)
var quotedFamily = regexp.MustCompile(`^(?:'.*'|".*")$`)

// FontShorthand builds the canvas font value "<size>px <family>". Families
// that are not plain identifiers are quoted.
func FontShorthand(size float64, family string) string {
	if !plainFamily.MatchString(family) && !quotedFamily.MatchString(family) {
		family = strconv.Quote(family)
	}
	return strconv.FormatFloat(size, 'f', -1, 64) + "px " + family
}
