package model

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Box is a bounding box in integer pixel coordinates: x1, y1, x2, y2.
// It travels on the wire as a four element array.
type Box [4]int

// X1 returns the left edge.
func (b Box) X1() int { return b[0] }

// Y1 returns the top edge.
func (b Box) Y1() int { return b[1] }

// X2 returns the right edge.
func (b Box) X2() int { return b[2] }

// Y2 returns the bottom edge.
func (b Box) Y2() int { return b[3] }

// Detection is one labeled object returned by the detection oracle.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Validate checks the confidence range and box ordering.
func (d Detection) Validate() error {
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("detection %q: confidence %.3f outside [0,1]", d.Label, d.Confidence)
	}
	if d.Box.X1() >= d.Box.X2() || d.Box.Y1() >= d.Box.Y2() {
		return fmt.Errorf("detection %q: malformed box %v", d.Label, d.Box)
	}
	return nil
}

func (d Detection) String() string {
	return fmt.Sprintf("%s %.2f (x1: %d, y1: %d, x2: %d, y2: %d)",
		d.Label, d.Confidence, d.Box.X1(), d.Box.Y1(), d.Box.X2(), d.Box.Y2())
}

// DetectionResult is what the detection client returns for one frame. It is
// never mutated after the client hands it out.
type DetectionResult struct {
	AnnotatedImage []byte      `json:"annotated_image"`
	Detections     []Detection `json:"detections"`
	Message        string      `json:"message,omitempty"`
}

// MarshalDetections encodes detections the way the review store keeps them.
// A nil slice encodes as an empty array.
func MarshalDetections(detections []Detection) (string, error) {
	if detections == nil {
		detections = []Detection{}
	}
	data, err := json.Marshal(detections)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode detections")
	}
	return string(data), nil
}

// UnmarshalDetections is the inverse of MarshalDetections. Empty input
// yields an empty slice.
func UnmarshalDetections(raw string) ([]Detection, error) {
	detections := []Detection{}
	if raw == "" {
		return detections, nil
	}
	if err := json.Unmarshal([]byte(raw), &detections); err != nil {
		return nil, errors.Wrap(err, "failed to decode detections")
	}
	return detections, nil
}
