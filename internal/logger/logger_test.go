package logger

import (
	"bytes"
	"os"
	"testing"
)

func reset() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	if got := buf.String(); got != "[DEBUG] test message arg\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestDebugAndInfo_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("debug message")
	Info("info message")
	Section("Sync")

	if buf.Len() > 0 {
		t.Errorf("expected no output when verbose is disabled, got %q", buf.String())
	}
}

func TestWarnAndError_AlwaysWritten(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Warn("enrich: %s", "skipped")
	Error("sync: %d failed", 2)

	want := "[WARN] enrich: skipped\n[ERROR] sync: 2 failed\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestSection(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Sync")

	if got := buf.String(); got != "\n=== Sync ===\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestEnabled(t *testing.T) {
	defer reset()

	SetVerbose(false)
	if Enabled(LevelDebug) || Enabled(LevelInfo) {
		t.Error("debug and info should be disabled without verbose")
	}
	if !Enabled(LevelWarn) || !Enabled(LevelError) {
		t.Error("warn and error should always be enabled")
	}

	SetVerbose(true)
	if !Enabled(LevelDebug) {
		t.Error("debug should be enabled in verbose mode")
	}
}
