package model

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"
)

func TestDetectionValidate(t *testing.T) {
	tests := []struct {
		name  string
		det   Detection
		valid bool
	}{
		{"ok", Detection{Label: "person", Confidence: 0.91, Box: Box{10, 20, 110, 220}}, true},
		{"zero confidence", Detection{Label: "cat", Confidence: 0, Box: Box{0, 0, 1, 1}}, true},
		{"full confidence", Detection{Label: "cat", Confidence: 1, Box: Box{0, 0, 1, 1}}, true},
		{"negative confidence", Detection{Label: "dog", Confidence: -0.1, Box: Box{0, 0, 5, 5}}, false},
		{"confidence above one", Detection{Label: "dog", Confidence: 1.2, Box: Box{0, 0, 5, 5}}, false},
		{"flat box", Detection{Label: "car", Confidence: 0.5, Box: Box{5, 5, 5, 9}}, false},
		{"inverted box", Detection{Label: "car", Confidence: 0.5, Box: Box{5, 9, 8, 2}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.det.Validate()
			if tt.valid {
				test.That(t, err, test.ShouldBeNil)
			} else {
				test.That(t, err, test.ShouldNotBeNil)
			}
		})
	}
}

func TestBoxWireFormat(t *testing.T) {
	var det Detection
	err := json.Unmarshal([]byte(`{"label":"bus","confidence":0.75,"box":[1,2,30,40]}`), &det)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, det.Box, test.ShouldResemble, Box{1, 2, 30, 40})
	test.That(t, det.String(), test.ShouldEqual, "bus 0.75 (x1: 1, y1: 2, x2: 30, y2: 40)")
}

func TestMarshalDetections(t *testing.T) {
	raw, err := MarshalDetections(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw, test.ShouldEqual, "[]")

	dets := []Detection{{Label: "person", Confidence: 0.5, Box: Box{1, 1, 2, 2}}}
	raw, err = MarshalDetections(dets)
	test.That(t, err, test.ShouldBeNil)

	back, err := UnmarshalDetections(raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back, test.ShouldResemble, dets)

	empty, err := UnmarshalDetections("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty, test.ShouldHaveLength, 0)

	_, err = UnmarshalDetections("{not json")
	test.That(t, err, test.ShouldNotBeNil)
}
