// Package capture opens OpenCV-backed frame sources: camera devices and
// decoded video files.
package capture

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"detectreview/internal/errs"
	"detectreview/internal/service/source"
)

// capture reads Mats from a gocv.VideoCapture and encodes them as JPEG.
type capture struct {
	kind    source.Kind
	name    string
	capture *gocv.VideoCapture
	img     gocv.Mat
	seq     int

	closeOnce sync.Once
	closeErr  error
}

func newCapture(kind source.Kind, name string, vc *gocv.VideoCapture) *capture {
	return &capture{kind: kind, name: name, capture: vc, img: gocv.NewMat()}
}

func (c *capture) Kind() source.Kind { return c.kind }

// Read grabs the next frame. A camera that stops delivering is a read
// failure; a video that stops delivering has reached its end.
func (c *capture) Read(ctx context.Context) (source.Frame, error) {
	if err := ctx.Err(); err != nil {
		return source.Frame{}, err
	}

	if ok := c.capture.Read(&c.img); !ok || c.img.Empty() {
		if c.kind == source.Video {
			return source.Frame{}, source.ErrEndOfStream
		}
		return source.Frame{}, errs.Wrapf(errs.ErrSourceReadFailed, "cannot read camera device %s", c.name)
	}

	buf, err := gocv.IMEncode(".jpg", c.img)
	if err != nil {
		return source.Frame{}, errs.Wrapf(errs.ErrSourceReadFailed, "failed to encode frame from %s: %v", c.name, err)
	}
	defer buf.Close()
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())

	c.seq++
	return source.Frame{Data: data, Encoding: "jpeg", Seq: c.seq, CapturedAt: time.Now()}, nil
}

// Close releases the Mat and the capture handle.
func (c *capture) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = multierr.Combine(c.img.Close(), c.capture.Close())
	})
	return c.closeErr
}

// OpenCamera opens an OpenCV camera device by index.
func OpenCamera(deviceID int) (source.Source, error) {
	vc, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrDeviceUnavailable, "cannot open camera device %d: %v", deviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errs.Wrapf(errs.ErrDeviceUnavailable, "camera device %d is not available", deviceID)
	}
	return newCapture(source.Camera, deviceName(deviceID), vc), nil
}

// OpenVideo opens a video file for decoding.
func OpenVideo(path string) (source.Source, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrSourceReadFailed, "cannot open video %s: %v", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errs.Wrapf(errs.ErrSourceReadFailed, "cannot decode video %s", path)
	}
	return newCapture(source.Video, path, vc), nil
}

// Devices opens sources for the session: the configured camera, video files
// through OpenCV and still images from disk.
type Devices struct {
	CameraID int
}

func (d Devices) OpenCamera() (source.Source, error) {
	return OpenCamera(d.CameraID)
}

func (d Devices) OpenVideo(path string) (source.Source, error) {
	return OpenVideo(path)
}

func (d Devices) OpenStill(path string) (source.Source, error) {
	still, err := source.OpenStill(path)
	if err != nil {
		return nil, err
	}
	return still, nil
}

func deviceName(id int) string {
	return "#" + strconv.Itoa(id)
}
