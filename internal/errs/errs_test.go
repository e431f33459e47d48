package errs

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestKindOf(t *testing.T) {
	test.That(t, KindOf(nil), test.ShouldEqual, "")
	test.That(t, KindOf(errors.New("boom")), test.ShouldEqual, "Unknown")

	err := Wrapf(ErrOracleRejected, "oracle returned %d", 400)
	test.That(t, KindOf(err), test.ShouldEqual, "OracleRejected")
	test.That(t, err.Error(), test.ShouldContainSubstring, "oracle returned 400")
	test.That(t, err.Error(), test.ShouldContainSubstring, "rejected frame")

	wrapped := fmt.Errorf("capture: %w", Wrapf(ErrPersistFailed, "disk full"))
	test.That(t, KindOf(wrapped), test.ShouldEqual, "PersistFailed")
	test.That(t, errors.Is(wrapped, ErrPersistFailed), test.ShouldBeTrue)
	test.That(t, errors.Is(wrapped, ErrStoreUnavailable), test.ShouldBeFalse)
}
