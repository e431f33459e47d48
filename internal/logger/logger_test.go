package logger

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"detectreview/internal/config"
)

func TestLogger_WritesPerLevelFiles(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(&config.Config{LogDirectory: dir})

	l.Info("frame %d published", 3)
	l.Warning("mailbox dropped %d results", 2)
	l.Error("oracle unavailable: %s", "connection refused")
	test.That(t, l.Close(), test.ShouldBeNil)

	info, err := os.ReadFile(filepath.Join(dir, InfoFile))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(info), test.ShouldContainSubstring, "frame 3 published")
	test.That(t, string(info), test.ShouldNotContainSubstring, "oracle unavailable")

	warning, err := os.ReadFile(filepath.Join(dir, WarningFile))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(warning), test.ShouldContainSubstring, "dropped 2 results")

	errorLog, err := os.ReadFile(filepath.Join(dir, ErrorFile))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(errorLog), test.ShouldContainSubstring, "connection refused")
}

func TestLogger_CleanLogs(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(&config.Config{LogDirectory: dir})
	defer l.Close()

	l.Error("first failure")
	test.That(t, l.CleanLogs(ErrorFile), test.ShouldBeNil)

	stat, err := os.Stat(filepath.Join(dir, ErrorFile))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stat.Size(), test.ShouldEqual, int64(0))
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Info("ignored")
	test.That(t, l.Dir(), test.ShouldEqual, "")
	test.That(t, l.CleanLogs(InfoFile), test.ShouldBeNil)
}
