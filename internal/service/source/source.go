// Package source defines where frames come from: a camera device, a decoded
// video file or a single still image.
package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"detectreview/internal/errs"
)

// ErrEndOfStream is returned by Read once a finite source is exhausted. It
// is a normal termination, not a failure.
var ErrEndOfStream = errors.New("end of stream")

// Kind identifies the source type.
type Kind int

const (
	Camera Kind = iota
	Video
	Still
)

func (k Kind) String() string {
	switch k {
	case Camera:
		return "camera"
	case Video:
		return "video"
	case Still:
		return "still"
	default:
		return "unknown"
	}
}

// Frame is one encoded image read from a source. It lives for a single loop
// iteration.
type Frame struct {
	Data       []byte
	Encoding   string
	Seq        int
	CapturedAt time.Time
}

// Source yields frames until it is exhausted or fails. Read blocks until a
// frame is available. Close releases the underlying handle and is safe to
// call more than once.
type Source interface {
	Kind() Kind
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Opener opens the three kinds of sources.
type Opener interface {
	OpenCamera() (Source, error)
	OpenVideo(path string) (Source, error)
	OpenStill(path string) (Source, error)
}

// StillSource yields one frame read from an image file, then ErrEndOfStream.
type StillSource struct {
	path string
	data []byte
	read bool
}

// OpenStill reads the image file up front so a missing file fails the open.
func OpenStill(path string) (*StillSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrSourceReadFailed, "failed to open still %s: %v", path, err)
	}
	return &StillSource{path: path, data: data}, nil
}

// NewStill wraps already encoded bytes.
func NewStill(data []byte) *StillSource {
	return &StillSource{data: data}
}

func (s *StillSource) Kind() Kind { return Still }

func (s *StillSource) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.read {
		return Frame{}, ErrEndOfStream
	}
	s.read = true
	return Frame{Data: s.data, Encoding: encodingOf(s.path), Seq: 1, CapturedAt: time.Now()}, nil
}

func (s *StillSource) Close() error {
	s.data = nil
	return nil
}

func encodingOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".bmp":
		return "bmp"
	default:
		return "jpeg"
	}
}
