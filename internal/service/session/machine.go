// Package session holds the state machine that decides which mode is active
// and which commands are valid. It starts and stops the acquisition loop,
// drives the review proxy and publishes snapshots to a Presenter.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"detectreview/internal/errs"
	"detectreview/internal/logger"
	"detectreview/internal/model"
	"detectreview/internal/service/acquisition"
	"detectreview/internal/service/review"
	"detectreview/internal/service/source"
)

// Options configures the acquisition loops the machine starts.
type Options struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   *logger.Logger
}

// Machine is the single owner of session state. Commands are serialized;
// the acquisition worker only reaches the state through the pump goroutine.
type Machine struct {
	opener    source.Opener
	detector  acquisition.Detector
	proxy     *review.Proxy
	save      review.SaveFunc
	presenter Presenter
	logger    *logger.Logger
	loopOpts  acquisition.Options

	ctx    context.Context
	cancel context.CancelFunc

	cmdMu sync.Mutex

	mu         sync.Mutex
	mode       Mode
	loop       *acquisition.Loop
	mailbox    *acquisition.Mailbox
	pumpDone   chan struct{}
	result     *model.DetectionResult
	capturable bool
	message    string
	errKind    string
	seq        uint64
}

// New creates a machine in Idle.
func New(opener source.Opener, detector acquisition.Detector, proxy *review.Proxy, save review.SaveFunc, presenter Presenter, opts Options) *Machine {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		opener:    opener,
		detector:  detector,
		proxy:     proxy,
		save:      save,
		presenter: presenter,
		logger:    opts.Logger,
		loopOpts: acquisition.Options{
			Interval: opts.Interval,
			Clock:    opts.Clock,
			Logger:   opts.Logger,
		},
		ctx:    ctx,
		cancel: cancel,
		mode:   Idle,
	}
}

// Mode returns the active mode.
func (m *Machine) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// State returns the current snapshot without publishing it.
func (m *Machine) State() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Close stops any running loop and waits for its source to be released.
func (m *Machine) Close() {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	m.cancel()
	m.mu.Lock()
	loop, pumpDone := m.loop, m.pumpDone
	m.mu.Unlock()
	if loop != nil {
		loop.Stop()
		<-pumpDone
	}
}

// StartCamera enters LiveCamera.
func (m *Machine) StartCamera() error {
	return m.startAcquisition(LiveCamera, m.opener.OpenCamera)
}

// StartVideo enters PlayingVideo with the file at path.
func (m *Machine) StartVideo(path string) error {
	return m.startAcquisition(PlayingVideo, func() (source.Source, error) {
		return m.opener.OpenVideo(path)
	})
}

// SelectStill enters SingleShot and runs one detection on the image at path.
func (m *Machine) SelectStill(path string) error {
	return m.startAcquisition(SingleShot, func() (source.Source, error) {
		return m.opener.OpenStill(path)
	})
}

// StopCamera returns from LiveCamera to Idle once the device is released.
func (m *Machine) StopCamera() error {
	return m.stopAcquisition(LiveCamera)
}

// StopVideo returns from PlayingVideo to Idle once the decoder is released.
func (m *Machine) StopVideo() error {
	return m.stopAcquisition(PlayingVideo)
}

// CloseStill dismisses a single shot, stopping it if it is still running.
func (m *Machine) CloseStill() error {
	return m.stopAcquisition(SingleShot)
}

// Capture persists the current result. It is valid only while a source is
// active and the latest iteration produced a capturable result.
func (m *Machine) Capture(ctx context.Context) (int64, error) {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	m.mu.Lock()
	if !m.mode.acquiring() {
		mode := m.mode
		m.mu.Unlock()
		return 0, m.reject(errs.Wrapf(errs.ErrInvalidTransition, "capture is not allowed in %s", mode))
	}
	m.drainLocked()
	if m.result == nil || !m.capturable {
		m.mu.Unlock()
		return 0, m.reject(errs.Wrapf(errs.ErrNothingToCapture, "no capturable result yet"))
	}
	result := *m.result
	m.mu.Unlock()

	id, err := m.proxy.CapturePersist(ctx, result, m.save)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.logger.Error("Capture failed: %v", err)
		m.setMessageLocked("", err)
	} else {
		m.setMessageLocked(fmt.Sprintf("Captured record %d", id), nil)
	}
	m.presentLocked()
	return id, err
}

// OpenReview loads every record and enters Reviewing.
func (m *Machine) OpenReview(ctx context.Context) error {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	if err := m.checkEntry(Reviewing); err != nil {
		return m.reject(err)
	}

	session, err := m.proxy.LoadAll(ctx)
	if err != nil {
		return m.reject(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = Reviewing
	m.clearResultLocked()
	m.setMessageLocked(fmt.Sprintf("Loaded %d records", session.Len()), nil)
	m.presentLocked()
	return nil
}

// CloseReview discards the review session and returns to Idle.
func (m *Machine) CloseReview() error {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	if err := m.require(Reviewing, "close review"); err != nil {
		return m.reject(err)
	}
	m.proxy.Discard()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = Idle
	m.setMessageLocked("", nil)
	m.presentLocked()
	return nil
}

// Navigate moves the review cursor by delta; it does not move past either end.
func (m *Machine) Navigate(delta int) error {
	return m.reviewOp("navigate", func() error {
		m.proxy.Navigate(delta)
		return nil
	})
}

// SelectIndex moves the review cursor to index i.
func (m *Machine) SelectIndex(i int) error {
	return m.reviewOp("select", func() error {
		_, err := m.proxy.SelectIndex(i)
		return err
	})
}

// UpdateNotes replaces the notes of a reviewed record.
func (m *Machine) UpdateNotes(ctx context.Context, id int64, notes string) error {
	return m.reviewOp("update notes", func() error {
		_, err := m.proxy.UpdateNotes(ctx, id, notes)
		return err
	})
}

// DeleteRecord removes a reviewed record and its image.
func (m *Machine) DeleteRecord(ctx context.Context, id int64) error {
	var warning string
	err := m.reviewOp("delete", func() error {
		var err error
		warning, err = m.proxy.DeleteRecord(ctx, id)
		return err
	})
	if err == nil && warning != "" {
		m.mu.Lock()
		m.message = fmt.Sprintf("Record %d deleted: %s", id, warning)
		m.presentLocked()
		m.mu.Unlock()
	}
	return err
}

func (m *Machine) reviewOp(action string, op func() error) error {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	if err := m.require(Reviewing, action); err != nil {
		return m.reject(err)
	}
	if err := op(); err != nil {
		return m.reject(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setMessageLocked("", nil)
	m.presentLocked()
	return nil
}

func (m *Machine) startAcquisition(mode Mode, open func() (source.Source, error)) error {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	if err := m.checkEntry(mode); err != nil {
		return m.reject(err)
	}

	// Idle has no loop, so nothing else changes the state while the source opens.
	src, err := open()
	if err != nil {
		m.logger.Error("Failed to enter %s: %v", mode, err)
		return m.reject(err)
	}

	mailbox := acquisition.NewMailbox()
	loop := acquisition.Start(m.ctx, src, m.detector, mailbox, m.loopOpts)
	pumpDone := make(chan struct{})

	m.mu.Lock()
	m.mode = mode
	m.loop = loop
	m.mailbox = mailbox
	m.pumpDone = pumpDone
	m.clearResultLocked()
	m.setMessageLocked("", nil)
	m.presentLocked()
	m.mu.Unlock()

	m.logger.Info("Entered %s", mode)
	go m.pump(loop, mailbox, pumpDone)
	return nil
}

func (m *Machine) stopAcquisition(mode Mode) error {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	if err := m.require(mode, "stop"); err != nil {
		return m.reject(err)
	}

	m.mu.Lock()
	loop, pumpDone := m.loop, m.pumpDone
	m.mu.Unlock()

	// The state lock is free here so the pump can apply the exit.
	if loop != nil {
		loop.Stop()
		<-pumpDone
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = Idle
	m.loop = nil
	m.mailbox = nil
	m.clearResultLocked()
	m.setMessageLocked("", nil)
	m.presentLocked()
	m.logger.Info("Left %s", mode)
	return nil
}

// pump moves loop events into the session state until the loop exits.
func (m *Machine) pump(loop *acquisition.Loop, mailbox *acquisition.Mailbox, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-mailbox.Ready():
			m.mu.Lock()
			if m.loop == loop && m.drainLocked() {
				m.presentLocked()
			}
			m.mu.Unlock()
		case <-loop.Done():
			m.finish(loop)
			return
		}
	}
}

// finish applies a loop's exit if the loop is still the current one.
func (m *Machine) finish(loop *acquisition.Loop) {
	exit := loop.Exit()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loop != loop {
		return
	}
	if m.drainLocked() {
		m.presentLocked()
	}

	m.loop = nil
	switch exit.Reason {
	case acquisition.Completed:
		if m.capturable {
			// A detected still stays up for capture until CloseStill.
			m.logger.Info("Still detected, waiting for capture or close")
			return
		}
		m.mode = Idle
		m.mailbox = nil
	case acquisition.Failed:
		m.mode = Idle
		m.mailbox = nil
		m.clearResultLocked()
		m.setMessageLocked("", exit.Err)
	default:
		m.mode = Idle
		m.mailbox = nil
		m.clearResultLocked()
		m.setMessageLocked(exit.Reason.String(), nil)
	}
	m.logger.Info("Acquisition ended (%s), session is %s", exit.Reason, m.mode)
	m.presentLocked()
}

// drainLocked applies a pending loop event. It reports whether there was one.
func (m *Machine) drainLocked() bool {
	if m.mailbox == nil {
		return false
	}
	ev, ok := m.mailbox.Take()
	if !ok {
		return false
	}
	if ev.Capturable {
		m.result = ev.Result
		m.capturable = true
		msg := ev.Result.Message
		if msg == "" {
			msg = fmt.Sprintf("%s frame %d: %d detections", ev.Source, ev.Seq, len(ev.Result.Detections))
		}
		m.setMessageLocked(msg, nil)
	} else {
		m.result = nil
		m.capturable = false
		m.setMessageLocked("", ev.Err)
	}
	return true
}

func (m *Machine) checkEntry(target Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.mode == Idle:
		return nil
	case m.mode.acquiring():
		return errs.Wrapf(errs.ErrModeBusy, "cannot enter %s while %s is active", target, m.mode)
	default:
		return errs.Wrapf(errs.ErrInvalidTransition, "cannot enter %s from %s", target, m.mode)
	}
}

func (m *Machine) require(mode Mode, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != mode {
		return errs.Wrapf(errs.ErrInvalidTransition, "%s is not allowed in %s", action, m.mode)
	}
	return nil
}

// reject surfaces err on a fresh snapshot without touching the mode.
func (m *Machine) reject(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setMessageLocked("", err)
	m.presentLocked()
	return err
}

func (m *Machine) clearResultLocked() {
	m.result = nil
	m.capturable = false
}

func (m *Machine) setMessageLocked(msg string, err error) {
	m.message = msg
	m.errKind = errs.KindOf(err)
	if err != nil {
		m.message = err.Error()
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		Seq:        m.seq,
		Mode:       m.mode,
		Result:     m.result,
		Capturable: m.capturable,
		Message:    m.message,
		ErrorKind:  m.errKind,
	}
	if m.mailbox != nil {
		s.Dropped = m.mailbox.Drops()
	}
	if m.mode == Reviewing {
		rs := m.proxy.Session()
		s.Review = &rs
	}
	return s
}

func (m *Machine) presentLocked() {
	m.seq++
	if m.presenter != nil {
		m.presenter.Present(m.snapshotLocked())
	}
}
