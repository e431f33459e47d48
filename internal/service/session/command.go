package session

import (
	"context"

	"detectreview/internal/errs"
)

// CommandName identifies a session command.
type CommandName string

const (
	StartCamera CommandName = "start_camera"
	StopCamera  CommandName = "stop_camera"
	StartVideo  CommandName = "start_video"
	StopVideo   CommandName = "stop_video"
	SelectStill CommandName = "select_still"
	CloseStill  CommandName = "close_still"
	OpenReview  CommandName = "open_review"
	CloseReview CommandName = "close_review"
	Navigate    CommandName = "navigate"
	SelectIndex CommandName = "select_index"
	UpdateNotes CommandName = "update_notes"
	Delete      CommandName = "delete_record"
	Capture     CommandName = "capture"
)

// Command is one request to the machine. Only the fields the command uses
// are read.
type Command struct {
	Name  CommandName `json:"name"`
	Path  string      `json:"path,omitempty"`
	Delta int         `json:"delta,omitempty"`
	Index int         `json:"index,omitempty"`
	ID    int64       `json:"id,omitempty"`
	Notes string      `json:"notes,omitempty"`
}

// Dispatch runs cmd and returns the resulting snapshot. On failure the
// snapshot still reflects the unchanged mode and carries the error.
func (m *Machine) Dispatch(ctx context.Context, cmd Command) (Snapshot, error) {
	var err error
	switch cmd.Name {
	case StartCamera:
		err = m.StartCamera()
	case StopCamera:
		err = m.StopCamera()
	case StartVideo:
		err = m.StartVideo(cmd.Path)
	case StopVideo:
		err = m.StopVideo()
	case SelectStill:
		err = m.SelectStill(cmd.Path)
	case CloseStill:
		err = m.CloseStill()
	case OpenReview:
		err = m.OpenReview(ctx)
	case CloseReview:
		err = m.CloseReview()
	case Navigate:
		err = m.Navigate(cmd.Delta)
	case SelectIndex:
		err = m.SelectIndex(cmd.Index)
	case UpdateNotes:
		err = m.UpdateNotes(ctx, cmd.ID, cmd.Notes)
	case Delete:
		err = m.DeleteRecord(ctx, cmd.ID)
	case Capture:
		_, err = m.Capture(ctx)
	default:
		err = m.reject(errs.Wrapf(errs.ErrInvalidTransition, "unknown command %q", cmd.Name))
	}
	return m.State(), err
}
