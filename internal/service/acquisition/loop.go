// Package acquisition runs the frame acquisition loop: read a frame, send it
// to the detector, publish the outcome, repeat.
package acquisition

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"detectreview/internal/errs"
	"detectreview/internal/logger"
	"detectreview/internal/model"
	"detectreview/internal/service/source"
)

// Detector is the part of the detection client the loop needs.
type Detector interface {
	Detect(ctx context.Context, frame []byte) (model.DetectionResult, error)
}

// ExitReason says why a loop finished.
type ExitReason int

const (
	// Stopped means Stop was called or the parent context ended.
	Stopped ExitReason = iota
	// EndOfStream means a video ran out of frames.
	EndOfStream
	// Completed means a still image was processed.
	Completed
	// Failed means the source could not be read.
	Failed
)

func (r ExitReason) String() string {
	switch r {
	case Stopped:
		return "stopped"
	case EndOfStream:
		return "end of stream"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Exit describes how a loop ended. Err is set only for Failed.
type Exit struct {
	Reason ExitReason
	Err    error
}

// Options tunes a loop. Zero values are usable.
type Options struct {
	// Interval is the pause after each camera or video iteration.
	Interval time.Duration
	Clock    clock.Clock
	Logger   *logger.Logger
}

// Loop owns one source for its whole lifetime and publishes into a Mailbox.
type Loop struct {
	src     source.Source
	det     Detector
	mailbox *Mailbox
	clock   clock.Clock
	logger  *logger.Logger
	every   time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	exit   Exit
}

// Start launches the worker goroutine. The loop takes ownership of src and
// closes it on every exit path before Done is closed.
func Start(ctx context.Context, src source.Source, det Detector, mailbox *Mailbox, opts Options) *Loop {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &Loop{
		src:     src,
		det:     det,
		mailbox: mailbox,
		clock:   opts.Clock,
		logger:  opts.Logger,
		every:   opts.Interval,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go l.run(ctx)
	return l
}

// Done is closed once the worker has exited and the source is released.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Exit reports how the loop ended. Valid only after Done is closed.
func (l *Loop) Exit() Exit {
	<-l.done
	return l.exit
}

// Stop cancels the loop and waits for the source to be released. An
// in-flight read or detect call is allowed to return first.
func (l *Loop) Stop() Exit {
	l.cancel()
	<-l.done
	return l.exit
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	defer l.cancel()
	defer func() {
		if err := l.src.Close(); err != nil {
			l.logger.Warning("Failed to release %s source: %v", l.src.Kind(), err)
		}
	}()

	l.exit = l.iterate(ctx)
	if l.exit.Reason == Failed {
		l.logger.Error("Acquisition from %s source failed: %v", l.src.Kind(), l.exit.Err)
	} else {
		l.logger.Info("Acquisition from %s source finished: %s", l.src.Kind(), l.exit.Reason)
	}
}

func (l *Loop) iterate(ctx context.Context) Exit {
	kind := l.src.Kind()
	seq := 0

	for {
		frame, err := l.src.Read(ctx)
		if ctx.Err() != nil {
			return Exit{Reason: Stopped}
		}
		if errors.Is(err, source.ErrEndOfStream) {
			if kind == source.Still {
				return Exit{Reason: Completed}
			}
			return Exit{Reason: EndOfStream}
		}
		if err != nil {
			if !errors.Is(err, errs.ErrSourceReadFailed) && !errors.Is(err, errs.ErrDeviceUnavailable) {
				err = errors.Wrap(errs.ErrSourceReadFailed, err.Error())
			}
			return Exit{Reason: Failed, Err: err}
		}

		seq++
		result, err := l.det.Detect(ctx, frame.Data)
		if ctx.Err() != nil {
			return Exit{Reason: Stopped}
		}

		ev := Event{Seq: seq, Source: kind, At: l.clock.Now()}
		if err != nil {
			l.logger.Warning("Detection failed for %s frame %d: %v", kind, seq, err)
			ev.Err = err
		} else {
			ev.Result = &result
			ev.Capturable = true
		}
		l.mailbox.Put(ev)

		if kind == source.Still {
			return Exit{Reason: Completed}
		}

		if !l.pause(ctx) {
			return Exit{Reason: Stopped}
		}
	}
}

// pause waits out the frame interval. It returns false if the loop was
// cancelled meanwhile.
func (l *Loop) pause(ctx context.Context) bool {
	if l.every <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-l.clock.After(l.every):
		return true
	}
}
