// Package specimen draws an SVG sheet of measured fonts: one row per family
// with the probe string, its actual bounding box and the alphabetic
// baseline.
package specimen

import (
	"fmt"
	"io"
	"math"
	"strings"

	svg "github.com/ajstarks/svgo"
	"github.com/samber/lo"

	"font-metrics/internal/domain"
)

const (
	margin     = 16
	labelWidth = 220
	rowGap     = 12
	labelStyle = "font-family:sans-serif;font-size:12px;fill:#555"
	boxStyle   = "fill:none;stroke:#d33;stroke-width:1"
	lineStyle  = "stroke:#36c;stroke-width:1;stroke-dasharray:4,2"
)

// Render writes the specimen of result to w. Families are drawn in request
// order; a family without metrics is skipped.
func Render(w io.Writer, result domain.MeasurementResult, probe string) error {
	families := lo.Filter(
		lo.Uniq(lo.Map(result.RequestedFonts, func(f domain.FontRequest, _ int) string { return f.FontFamily })),
		func(family string, _ int) bool { _, ok := result.Metrics[family]; return ok },
	)

	width := labelWidth + 2*margin
	height := margin
	for _, family := range families {
		m := result.Metrics[family]
		width = max(width, labelWidth+2*margin+ceil(m.Width+m.ActualBoundingBoxLeft))
		height += rowHeight(m) + rowGap
	}
	height += margin - rowGap

	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(width, max(height, 2*margin))
	canvas.Title("font metrics specimen")

	top := margin
	for _, family := range families {
		m := result.Metrics[family]
		baseline := top + ceil(m.FontBoundingBoxAscent)
		x := margin + labelWidth

		canvas.Text(margin, baseline, family, labelStyle)
		canvas.Line(x, baseline, width-margin, baseline, lineStyle)
		canvas.Rect(
			x-ceil(m.ActualBoundingBoxLeft),
			baseline-ceil(m.ActualBoundingBoxAscent),
			ceil(m.ActualBoundingBoxLeft+m.ActualBoundingBoxRight),
			ceil(m.ActualBoundingBoxAscent+m.ActualBoundingBoxDescent),
			boxStyle,
		)
		canvas.Text(x, baseline, probe, probeStyle(family, m.FontSizeUsed))

		top += rowHeight(m) + rowGap
	}
	canvas.End()
	return ew.err
}

func rowHeight(m domain.MetricsRecord) int {
	return max(ceil(m.FontBoundingBoxAscent+m.FontBoundingBoxDescent), ceil(m.FontSizeUsed))
}

func probeStyle(family string, size float64) string {
	return fmt.Sprintf("font-family:'%s';font-size:%gpx", styleSafe(family), size)
}

// styleSafe drops the characters that would end the font-family value or
// the style attribute.
func styleSafe(family string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"', ';', '=', '<', '>', '&', '\\':
			return -1
		}
		return r
	}, strings.Trim(family, `"'`))
}

func ceil(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Ceil(v))
}

// errWriter keeps the first write error; svgo does not report errors.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return len(p), nil
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
