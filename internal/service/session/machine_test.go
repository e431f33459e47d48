package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.viam.com/test"

	"detectreview/internal/errs"
	"detectreview/internal/logger"
	"detectreview/internal/model"
	"detectreview/internal/service/review"
	"detectreview/internal/service/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ========================================
// Fakes
// ========================================

type fakeSource struct {
	kind   source.Kind
	frames int // -1 for endless
	failAt int

	mu     sync.Mutex
	read   int
	closed bool
}

func (s *fakeSource) Kind() source.Kind { return s.kind }

func (s *fakeSource) Read(ctx context.Context) (source.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read++
	if s.failAt != 0 && s.read == s.failAt {
		return source.Frame{}, errs.Wrapf(errs.ErrSourceReadFailed, "device lost")
	}
	if s.frames >= 0 && s.read > s.frames {
		return source.Frame{}, source.ErrEndOfStream
	}
	return source.Frame{Data: []byte{byte(s.read)}, Seq: s.read}, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOpener struct {
	camera    *fakeSource
	video     *fakeSource
	still     *fakeSource
	cameraErr error
	lastPath  string
}

func (o *fakeOpener) OpenCamera() (source.Source, error) {
	if o.cameraErr != nil {
		return nil, o.cameraErr
	}
	return o.camera, nil
}

func (o *fakeOpener) OpenVideo(path string) (source.Source, error) {
	o.lastPath = path
	return o.video, nil
}

func (o *fakeOpener) OpenStill(path string) (source.Source, error) {
	o.lastPath = path
	return o.still, nil
}

// gatedDetector waits for a token per frame when gate is set and rejects the
// listed frame numbers.
type gatedDetector struct {
	gate   chan struct{}
	reject map[byte]bool
}

func (d *gatedDetector) Detect(ctx context.Context, frame []byte) (model.DetectionResult, error) {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return model.DetectionResult{}, ctx.Err()
		}
	}
	if d.reject[frame[0]] {
		return model.DetectionResult{}, errs.Wrapf(errs.ErrOracleRejected, "bad frame %d", frame[0])
	}
	return model.DetectionResult{
		AnnotatedImage: []byte{frame[0]},
		Detections:     []model.Detection{{Label: "person", Confidence: 0.9, Box: model.Box{0, 0, 9, 9}}},
	}, nil
}

type stubStore struct {
	mu      sync.Mutex
	records []model.CapturedRecord
	creates []string
}

func (s *stubStore) Create(ctx context.Context, path string, detections []model.Detection) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = append(s.creates, path)
	id := int64(len(s.records) + 1)
	s.records = append(s.records, model.CapturedRecord{ID: id, ImagePath: path, Detections: detections})
	return id, nil
}

func (s *stubStore) List(ctx context.Context) ([]model.CapturedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CapturedRecord(nil), s.records...), nil
}

func (s *stubStore) Update(ctx context.Context, id int64, notes string) (model.CapturedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Notes = &notes
			return s.records[i], nil
		}
	}
	return model.CapturedRecord{}, errs.Wrapf(errs.ErrRecordNotFound, "image %d", id)
}

func (s *stubStore) Delete(ctx context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return "", nil
		}
	}
	return "", errs.Wrapf(errs.ErrRecordNotFound, "image %d", id)
}

func (s *stubStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creates)
}

// recorder keeps every snapshot for the test to inspect.
type recorder struct {
	ch chan Snapshot
}

func (r *recorder) Present(s Snapshot) {
	select {
	case r.ch <- s:
	default:
	}
}

func (r *recorder) waitFor(t *testing.T, what string, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s := <-r.ch:
			if pred(s) {
				return s
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

type harness struct {
	machine  *Machine
	opener   *fakeOpener
	detector *gatedDetector
	store    *stubStore
	rec      *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		opener: &fakeOpener{
			camera: &fakeSource{kind: source.Camera, frames: -1},
			video:  &fakeSource{kind: source.Video, frames: 10},
			still:  &fakeSource{kind: source.Still, frames: 1},
		},
		detector: &gatedDetector{gate: make(chan struct{}), reject: map[byte]bool{}},
		store:    &stubStore{},
		rec:      &recorder{ch: make(chan Snapshot, 1024)},
	}
	proxy := review.NewProxy(h.store, logger.NewNop())
	save := func(image []byte) (string, error) { return "static_img/captured_test.jpg", nil }
	h.machine = New(h.opener, h.detector, proxy, save, h.rec, Options{})
	t.Cleanup(h.machine.Close)
	return h
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func isKind(kind error) func(error) bool {
	return func(err error) bool { return errors.Is(err, kind) }
}

// ========================================
// Transitions
// ========================================

func TestStartsIdle(t *testing.T) {
	h := newHarness(t)
	test.That(t, h.machine.Mode(), test.ShouldEqual, Idle)
	test.That(t, h.machine.State().Result, test.ShouldBeNil)
}

func TestInvalidTransitionsFromIdle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	calls := map[string]func() error{
		"stop camera":  h.machine.StopCamera,
		"stop video":   h.machine.StopVideo,
		"close still":  h.machine.CloseStill,
		"close review": h.machine.CloseReview,
		"navigate":     func() error { return h.machine.Navigate(1) },
		"select":       func() error { return h.machine.SelectIndex(0) },
		"notes":        func() error { return h.machine.UpdateNotes(ctx, 1, "x") },
		"delete":       func() error { return h.machine.DeleteRecord(ctx, 1) },
		"capture":      func() error { _, err := h.machine.Capture(ctx); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			test.That(t, isKind(errs.ErrInvalidTransition)(err), test.ShouldBeTrue)
			test.That(t, h.machine.Mode(), test.ShouldEqual, Idle)
			test.That(t, h.machine.State().ErrorKind, test.ShouldEqual, "InvalidTransition")
		})
	}
}

func TestSecondAcquisitionModeIsBusy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	test.That(t, h.machine.StartCamera(), test.ShouldBeNil)
	test.That(t, h.machine.Mode(), test.ShouldEqual, LiveCamera)

	test.That(t, isKind(errs.ErrModeBusy)(h.machine.StartCamera()), test.ShouldBeTrue)
	test.That(t, isKind(errs.ErrModeBusy)(h.machine.StartVideo("clip.mp4")), test.ShouldBeTrue)
	test.That(t, isKind(errs.ErrModeBusy)(h.machine.SelectStill("a.jpg")), test.ShouldBeTrue)
	test.That(t, isKind(errs.ErrModeBusy)(h.machine.OpenReview(ctx)), test.ShouldBeTrue)
	test.That(t, isKind(errs.ErrInvalidTransition)(h.machine.StopVideo()), test.ShouldBeTrue)

	// The running mode is unaffected.
	test.That(t, h.machine.Mode(), test.ShouldEqual, LiveCamera)
	h.detector.gate <- struct{}{}
	h.rec.waitFor(t, "camera result", func(s Snapshot) bool { return s.Capturable })
	test.That(t, h.opener.video.isClosed(), test.ShouldBeFalse)

	test.That(t, h.machine.StopCamera(), test.ShouldBeNil)
	test.That(t, h.machine.Mode(), test.ShouldEqual, Idle)
	test.That(t, h.opener.camera.isClosed(), test.ShouldBeTrue)
}

func TestStopReleasesSourceBeforeReturning(t *testing.T) {
	h := newHarness(t)
	test.That(t, h.machine.StartVideo("clip.mp4"), test.ShouldBeNil)
	test.That(t, h.opener.lastPath, test.ShouldEqual, "clip.mp4")

	// The worker is parked inside Detect; stop must still complete.
	test.That(t, h.machine.StopVideo(), test.ShouldBeNil)
	test.That(t, h.opener.video.isClosed(), test.ShouldBeTrue)
	test.That(t, h.machine.Mode(), test.ShouldEqual, Idle)
	test.That(t, h.machine.State().Capturable, test.ShouldBeFalse)
}

func TestCameraOpenFailureStaysIdle(t *testing.T) {
	h := newHarness(t)
	h.opener.cameraErr = errs.Wrapf(errs.ErrDeviceUnavailable, "no camera 0")

	err := h.machine.StartCamera()
	test.That(t, isKind(errs.ErrDeviceUnavailable)(err), test.ShouldBeTrue)
	test.That(t, h.machine.Mode(), test.ShouldEqual, Idle)
	test.That(t, h.machine.State().ErrorKind, test.ShouldEqual, "DeviceUnavailable")
}

func TestCameraReadFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t)
	h.opener.camera.failAt = 2
	test.That(t, h.machine.StartCamera(), test.ShouldBeNil)

	h.detector.gate <- struct{}{}
	s := h.rec.waitFor(t, "idle after read failure", func(s Snapshot) bool { return s.Mode == Idle })
	test.That(t, s.ErrorKind, test.ShouldEqual, "SourceReadFailed")
	test.That(t, s.Result, test.ShouldBeNil)
	test.That(t, h.opener.camera.isClosed(), test.ShouldBeTrue)
}

// ========================================
// Capture
// ========================================

func TestCaptureLegality(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.detector.reject[1] = true
	test.That(t, h.machine.StartCamera(), test.ShouldBeNil)

	_, err := h.machine.Capture(ctx)
	test.That(t, isKind(errs.ErrNothingToCapture)(err), test.ShouldBeTrue)

	// A rejected frame is not capturable.
	h.detector.gate <- struct{}{}
	h.rec.waitFor(t, "rejected frame", func(s Snapshot) bool { return s.ErrorKind == "OracleRejected" })
	_, err = h.machine.Capture(ctx)
	test.That(t, isKind(errs.ErrNothingToCapture)(err), test.ShouldBeTrue)
	test.That(t, h.store.createCount(), test.ShouldEqual, 0)

	h.detector.gate <- struct{}{}
	h.rec.waitFor(t, "capturable frame", func(s Snapshot) bool { return s.Capturable })
	id, err := h.machine.Capture(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldEqual, int64(1))
	test.That(t, h.store.createCount(), test.ShouldEqual, 1)
	test.That(t, h.machine.Mode(), test.ShouldEqual, LiveCamera)
	test.That(t, h.machine.State().Message, test.ShouldEqual, "Captured record 1")
}

func TestCaptureNotAllowedWhileReviewing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	test.That(t, h.machine.OpenReview(ctx), test.ShouldBeNil)

	_, err := h.machine.Capture(ctx)
	test.That(t, isKind(errs.ErrInvalidTransition)(err), test.ShouldBeTrue)
	test.That(t, isKind(errs.ErrInvalidTransition)(h.machine.StartCamera()), test.ShouldBeTrue)
	test.That(t, h.machine.Mode(), test.ShouldEqual, Reviewing)
}

// ========================================
// Video and still
// ========================================

func TestVideoWithRejectedFrameRunsToEnd(t *testing.T) {
	h := newHarness(t)
	h.detector.reject[7] = true
	test.That(t, h.machine.StartVideo("clip.mp4"), test.ShouldBeNil)

	for i := 1; i <= 10; i++ {
		h.detector.gate <- struct{}{}
		frame := byte(i)
		if i == 7 {
			s := h.rec.waitFor(t, "frame 7 error", func(s Snapshot) bool { return s.ErrorKind == "OracleRejected" })
			test.That(t, s.Mode, test.ShouldEqual, PlayingVideo)
			test.That(t, s.Capturable, test.ShouldBeFalse)
			test.That(t, s.Message, test.ShouldContainSubstring, "bad frame 7")
			continue
		}
		s := h.rec.waitFor(t, "frame result", func(s Snapshot) bool {
			return s.Result != nil && s.Result.AnnotatedImage[0] == frame
		})
		test.That(t, s.Mode, test.ShouldEqual, PlayingVideo)
		test.That(t, s.Capturable, test.ShouldBeTrue)
	}

	s := h.rec.waitFor(t, "end of stream", func(s Snapshot) bool { return s.Mode == Idle })
	test.That(t, s.Message, test.ShouldEqual, "end of stream")
	test.That(t, h.opener.video.isClosed(), test.ShouldBeTrue)
	test.That(t, isKind(errs.ErrInvalidTransition)(h.machine.StopVideo()), test.ShouldBeTrue)
}

func TestStillStaysUpForCapture(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	test.That(t, h.machine.SelectStill("photo.jpg"), test.ShouldBeNil)
	h.detector.gate <- struct{}{}
	h.rec.waitFor(t, "still result", func(s Snapshot) bool { return s.Capturable })

	eventually(t, "still source released", h.opener.still.isClosed)
	test.That(t, h.machine.Mode(), test.ShouldEqual, SingleShot)
	test.That(t, isKind(errs.ErrModeBusy)(h.machine.SelectStill("other.jpg")), test.ShouldBeTrue)

	_, err := h.machine.Capture(ctx)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, h.machine.CloseStill(), test.ShouldBeNil)
	test.That(t, h.machine.Mode(), test.ShouldEqual, Idle)
}

func TestRejectedStillReturnsToIdle(t *testing.T) {
	h := newHarness(t)
	h.detector.reject[1] = true
	test.That(t, h.machine.SelectStill("photo.jpg"), test.ShouldBeNil)
	h.detector.gate <- struct{}{}

	s := h.rec.waitFor(t, "idle", func(s Snapshot) bool { return s.Mode == Idle })
	test.That(t, s.ErrorKind, test.ShouldEqual, "OracleRejected")
	test.That(t, s.Capturable, test.ShouldBeFalse)
}

// ========================================
// Review
// ========================================

func TestReviewScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.records = []model.CapturedRecord{{ID: 1, ImagePath: "a.jpg"}, {ID: 2, ImagePath: "b.jpg"}}

	test.That(t, h.machine.OpenReview(ctx), test.ShouldBeNil)
	s := h.machine.State()
	test.That(t, s.Mode, test.ShouldEqual, Reviewing)
	test.That(t, s.Review.Cursor, test.ShouldEqual, 0)

	test.That(t, h.machine.Navigate(1), test.ShouldBeNil)
	test.That(t, h.machine.State().Review.Cursor, test.ShouldEqual, 1)
	test.That(t, h.machine.Navigate(1), test.ShouldBeNil)
	test.That(t, h.machine.State().Review.Cursor, test.ShouldEqual, 1)

	test.That(t, h.machine.UpdateNotes(ctx, 2, "two people"), test.ShouldBeNil)
	test.That(t, h.machine.State().Review.Records[1].NotesText(), test.ShouldEqual, "two people")

	test.That(t, h.machine.DeleteRecord(ctx, 2), test.ShouldBeNil)
	s = h.machine.State()
	test.That(t, s.Review.Records, test.ShouldHaveLength, 1)
	test.That(t, s.Review.Cursor, test.ShouldEqual, 0)

	err := h.machine.DeleteRecord(ctx, 2)
	test.That(t, isKind(errs.ErrRecordNotFound)(err), test.ShouldBeTrue)
	test.That(t, h.machine.Mode(), test.ShouldEqual, Reviewing)

	err = h.machine.SelectIndex(5)
	test.That(t, isKind(errs.ErrInvalidTransition)(err), test.ShouldBeTrue)

	test.That(t, h.machine.CloseReview(), test.ShouldBeNil)
	test.That(t, h.machine.Mode(), test.ShouldEqual, Idle)
	test.That(t, h.machine.State().Review, test.ShouldBeNil)
}

// ========================================
// Dispatch and snapshots
// ========================================

func TestDispatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.records = []model.CapturedRecord{{ID: 1}, {ID: 2}, {ID: 3}}

	s, err := h.machine.Dispatch(ctx, Command{Name: OpenReview})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Mode, test.ShouldEqual, Reviewing)

	s, err = h.machine.Dispatch(ctx, Command{Name: SelectIndex, Index: 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Review.Cursor, test.ShouldEqual, 2)

	s, err = h.machine.Dispatch(ctx, Command{Name: "dance"})
	test.That(t, isKind(errs.ErrInvalidTransition)(err), test.ShouldBeTrue)
	test.That(t, s.Mode, test.ShouldEqual, Reviewing)
	test.That(t, s.ErrorKind, test.ShouldEqual, "InvalidTransition")
}

func TestSnapshotJSON(t *testing.T) {
	data, err := json.Marshal(Snapshot{Seq: 3, Mode: PlayingVideo, Capturable: true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"mode":"playing_video"`)

	var back Snapshot
	test.That(t, json.Unmarshal(data, &back), test.ShouldBeNil)
	test.That(t, back.Mode, test.ShouldEqual, PlayingVideo)

	var mode Mode
	test.That(t, mode.UnmarshalText([]byte("flying")), test.ShouldNotBeNil)
}
