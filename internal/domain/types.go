package domain

import "time"

// RunStatus tracks each pipeline stage for a single measurement run.
type RunStatus string

const (
	RunStatusIdle            RunStatus = "idle"
	RunStatusValidating      RunStatus = "validating"
	RunStatusServerStarting  RunStatus = "server-starting"
	RunStatusBrowserStarting RunStatus = "browser-starting"
	RunStatusMeasuring       RunStatus = "measuring"
	RunStatusPersisting      RunStatus = "persisting"
	RunStatusDone            RunStatus = "done"
	RunStatusFailed          RunStatus = "failed"
)

// Run is the snapshot of the current or last measurement run.
type Run struct {
	ID     string    `json:"id"`
	Status RunStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// FontRequest is one entry in the configured font list. A nil Source means
// the family is expected to be available in the rendering environment.
type FontRequest struct {
	FontFamily string  `json:"fontFamily"`
	Source     *string `json:"source,omitempty"`
}

// HasSource reports whether the request names a font resource to load.
func (f FontRequest) HasSource() bool {
	return f.Source != nil
}

// SourceValue returns the declared source or "" when absent.
func (f FontRequest) SourceValue() string {
	if f.Source == nil {
		return ""
	}
	return *f.Source
}

// Mount serves LocalPath under Alias on the content server.
type Mount struct {
	Alias     string `json:"alias"`
	LocalPath string `json:"localPath"`
}

// EngineOptions configures the headless rendering engine.
type EngineOptions struct {
	Show     bool           `json:"show"`
	ExecPath string         `json:"execPath,omitempty"`
	Flags    map[string]any `json:"flags,omitempty"`
	Timeout  time.Duration  `json:"timeout"`
}

// RunConfig is the resolved configuration for one pipeline execution.
// It is never mutated once validation succeeded.
type RunConfig struct {
	Fonts            []FontRequest `json:"fonts"`
	FontSize         float64       `json:"fontSize"`
	OutputPath       string        `json:"outputPath"`
	OutputFilename   string        `json:"outputFilename"`
	ServerPort       int           `json:"serverPort"`
	AdditionalMounts []Mount       `json:"additionalMounts"`
	Debug            bool          `json:"debug"`
	PageDir          string        `json:"pageDir,omitempty"`
	ProbeText        string        `json:"probeText"`
	SpecimenFilename string        `json:"specimenFilename,omitempty"`
	Engine           EngineOptions `json:"engine"`
}

// MetricsRecord is one font's measured output for the probe string.
type MetricsRecord struct {
	TextBaseline             string  `json:"textBaseline"`
	FontSizeUsed             float64 `json:"fontSizeUsed"`
	Width                    float64 `json:"width"`
	ActualBoundingBoxLeft    float64 `json:"actualBoundingBoxLeft"`
	ActualBoundingBoxRight   float64 `json:"actualBoundingBoxRight"`
	FontBoundingBoxAscent    float64 `json:"fontBoundingBoxAscent"`
	FontBoundingBoxDescent   float64 `json:"fontBoundingBoxDescent"`
	ActualBoundingBoxAscent  float64 `json:"actualBoundingBoxAscent"`
	ActualBoundingBoxDescent float64 `json:"actualBoundingBoxDescent"`
	EmHeightAscent           float64 `json:"emHeightAscent"`
	EmHeightDescent          float64 `json:"emHeightDescent"`
	HangingBaseline          float64 `json:"hangingBaseline"`
	AlphabeticBaseline       float64 `json:"alphabeticBaseline"`
	IdeographicBaseline      float64 `json:"ideographicBaseline"`
}

// MetricNames lists the twelve numeric fields a text-measurement primitive
// reports, in the order the artifact declares them.
var MetricNames = []string{
	"width",
	"actualBoundingBoxLeft",
	"actualBoundingBoxRight",
	"fontBoundingBoxAscent",
	"fontBoundingBoxDescent",
	"actualBoundingBoxAscent",
	"actualBoundingBoxDescent",
	"emHeightAscent",
	"emHeightDescent",
	"hangingBaseline",
	"alphabeticBaseline",
	"ideographicBaseline",
}

// MeasurementResult is the terminal artifact of a run.
type MeasurementResult struct {
	RequestedFonts []FontRequest            `json:"requestedFonts"`
	Metrics        map[string]MetricsRecord `json:"metrics"`
}
