package measure

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"font-metrics/internal/domain"
)

// FaceLoader loads the font face for family from url and makes it
// available to the drawing surface.
type FaceLoader interface {
	Load(ctx context.Context, family, url string) error
}

// Surface is a drawing surface with a text-measurement primitive.
type Surface interface {
	SetTextBaseline(baseline string)
	TextBaseline() string
	SetFont(font string)
	// MeasureText fills the twelve numeric metric fields for text in the
	// current font.
	MeasureText(text string) domain.MetricsRecord
}

// Routine is the measurement routine over injected capabilities.
type Routine struct {
	Loader FaceLoader
	// Surface obtains the shared drawing surface. It is called once per run,
	// after every load has resolved.
	Surface func() (Surface, error)
}

// Run loads every face with a URL concurrently, waits for all loads, and
// then measures every family. Any failed load fails the whole run with a
// FONT_LOAD_FAILED rendering error naming the first failing family in
// request order.
func (r Routine) Run(ctx context.Context, args Args) (map[string]domain.MetricsRecord, error) {
	pending := lo.Filter(args.Fonts, func(f Face, _ int) bool { return f.URL != nil })

	errs := make([]error, len(pending))
	var wg sync.WaitGroup
	for i, face := range pending {
		wg.Add(1)
		go func(i int, face Face) {
			defer wg.Done()
			errs[i] = r.Loader.Load(ctx, face.FontFamily, *face.URL)
		}(i, face)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, domain.FontLoadFailed(pending[i].FontFamily, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tracer().Debugf("%d font faces loaded", len(pending))

	surface, err := r.Surface()
	if err != nil {
		return nil, fmt.Errorf("obtain drawing surface: %w", err)
	}
	surface.SetTextBaseline(args.Baseline)

	metrics := make(map[string]domain.MetricsRecord, len(args.Fonts))
	for _, face := range args.Fonts {
		surface.SetFont(FontShorthand(args.FontSize, face.FontFamily))
		record := surface.MeasureText(args.ProbeText)
		record.TextBaseline = surface.TextBaseline()
		record.FontSizeUsed = args.FontSize
		metrics[face.FontFamily] = record
	}
	return metrics, nil
}
