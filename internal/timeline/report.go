package timeline

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// FeatureReport is the per-rendition document produced by the extraction
// tool: one whole-file video segment with per-frame statistics, plus audio
// and device blocks copied into the model input verbatim.
type FeatureReport struct {
	I11  json.RawMessage `json:"I11,omitempty"`
	I13  ReportVideo     `json:"I13"`
	IGen json.RawMessage `json:"IGen,omitempty"`
}

// ReportVideo holds the extracted video track description.
type ReportVideo struct {
	StreamID json.RawMessage `json:"streamId,omitempty"`
	Segments []ReportSegment `json:"segments"`
}

// ReportSegment describes the whole rendition file. Bitrate passes through
// untyped because the extractor reports it as a string in some container
// formats and as a number in others.
type ReportSegment struct {
	Codec      string            `json:"codec"`
	Resolution string            `json:"resolution"`
	Bitrate    json.RawMessage   `json:"bitrate"`
	FPS        float64           `json:"fps"`
	Frames     []json.RawMessage `json:"frames"`
}

// LoadFeatureReport reads and decodes one rendition's feature report.
func LoadFeatureReport(path string) (*FeatureReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature report: %w", err)
	}
	var report FeatureReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse feature report: %w", err)
	}
	if len(report.I13.Segments) == 0 {
		return nil, fmt.Errorf("feature report %s has no video segment", path)
	}
	return &report, nil
}

// Input is the document handed to the quality model.
type Input struct {
	I11  json.RawMessage `json:"I11"`
	I13  InputVideo      `json:"I13"`
	I23  InputStalling   `json:"I23"`
	IGen json.RawMessage `json:"IGen"`
}

// InputVideo carries the reconstructed per-segment video description.
type InputVideo struct {
	StreamID int            `json:"streamId"`
	Segments []InputSegment `json:"segments"`
}

// InputStalling carries the reconstructed stall list.
type InputStalling struct {
	StreamID int     `json:"streamId"`
	Stalling []Stall `json:"stalling"`
}

// InputSegment is one playback segment with its sliced frame statistics.
type InputSegment struct {
	Codec      string            `json:"codec"`
	Start      float64           `json:"start"`
	Duration   float64           `json:"duration"`
	Resolution string            `json:"resolution"`
	Bitrate    json.RawMessage   `json:"bitrate"`
	FPS        float64           `json:"fps"`
	Frames     []json.RawMessage `json:"frames"`
}

// inputStreamID is the fixed stream identifier stamped on model inputs.
const inputStreamID = 42
