// Package errs holds the error taxonomy shared by the detection client, the
// acquisition loop, the review store proxy and the session state machine.
//
// Every failure returned by those components wraps exactly one of the
// sentinels below, so callers branch with errors.Is and presentation code
// asks KindOf for a stable name.
package errs

import (
	"github.com/pkg/errors"
)

var (
	ErrInvalidFrame      = errors.New("invalid frame")
	ErrOracleUnavailable = errors.New("detection oracle unavailable")
	ErrOracleRejected    = errors.New("detection oracle rejected frame")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrSourceReadFailed  = errors.New("source read failed")
	ErrStoreUnavailable  = errors.New("review store unavailable")
	ErrPersistFailed     = errors.New("persist failed")
	ErrRecordNotFound    = errors.New("record not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrModeBusy          = errors.New("mode busy")
	ErrNothingToCapture  = errors.New("nothing to capture")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidFrame, "InvalidFrame"},
	{ErrOracleUnavailable, "OracleUnavailable"},
	{ErrOracleRejected, "OracleRejected"},
	{ErrDeviceUnavailable, "DeviceUnavailable"},
	{ErrSourceReadFailed, "SourceReadFailed"},
	{ErrStoreUnavailable, "StoreUnavailable"},
	{ErrPersistFailed, "PersistFailed"},
	{ErrRecordNotFound, "RecordNotFound"},
	{ErrInvalidTransition, "InvalidTransition"},
	{ErrModeBusy, "ModeBusy"},
	{ErrNothingToCapture, "NothingToCapture"},
}

// KindOf returns the taxonomy name of err, "" for nil and "Unknown" for
// errors outside the taxonomy.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}

// Wrapf attaches a formatted message to one of the sentinels.
func Wrapf(kind error, format string, args ...interface{}) error {
	return errors.Wrapf(kind, format, args...)
}
