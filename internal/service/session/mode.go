package session

import (
	"github.com/pkg/errors"

	"detectreview/internal/model"
	"detectreview/internal/service/review"
)

// Mode is the active session mode. Exactly one is active at a time.
type Mode int

const (
	Idle Mode = iota
	LiveCamera
	PlayingVideo
	SingleShot
	Reviewing
)

var modeNames = map[Mode]string{
	Idle:         "idle",
	LiveCamera:   "live_camera",
	PlayingVideo: "playing_video",
	SingleShot:   "single_shot",
	Reviewing:    "reviewing",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	for mode, name := range modeNames {
		if name == string(text) {
			*m = mode
			return nil
		}
	}
	return errors.Errorf("unknown mode %q", text)
}

// acquiring reports whether the mode owns an acquisition loop.
func (m Mode) acquiring() bool {
	return m == LiveCamera || m == PlayingVideo || m == SingleShot
}

// Snapshot is what the presentation layer sees after every change.
type Snapshot struct {
	Seq        uint64                 `json:"seq"`
	Mode       Mode                   `json:"mode"`
	Result     *model.DetectionResult `json:"result,omitempty"`
	Capturable bool                   `json:"capturable"`
	Message    string                 `json:"message,omitempty"`
	ErrorKind  string                 `json:"error_kind,omitempty"`
	Review     *review.Session        `json:"review,omitempty"`
	Dropped    uint64                 `json:"dropped"`
}

// Presenter receives snapshots. Present is called with the machine's state
// lock held and must not block.
type Presenter interface {
	Present(Snapshot)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(Snapshot)

func (f PresenterFunc) Present(s Snapshot) { f(s) }
