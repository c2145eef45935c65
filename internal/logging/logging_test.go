package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestVerbosityGatesLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetVerbosity(0)
	})

	tests := []struct {
		count     int
		wantLevel Level
		infoShown bool
		dbgShown  bool
	}{
		{0, LevelWarn, false, false},
		{1, LevelInfo, true, false},
		{2, LevelDebug, true, true},
		{9, LevelTrace, true, true},
	}
	for _, tt := range tests {
		buf.Reset()
		SetVerbosity(tt.count)
		if CurrentLevel() != tt.wantLevel {
			t.Errorf("-v x%d: level = %s, want %s", tt.count, CurrentLevel(), tt.wantLevel)
		}
		Infof("hello %d", 1)
		Debugf("details")
		out := buf.String()
		if got := strings.Contains(out, "[INFO] hello 1"); got != tt.infoShown {
			t.Errorf("-v x%d: info shown = %v", tt.count, got)
		}
		if got := strings.Contains(out, "[DBG] details"); got != tt.dbgShown {
			t.Errorf("-v x%d: debug shown = %v", tt.count, got)
		}
	}

	buf.Reset()
	SetVerbosity(0)
	Errorf("boom")
	Warnf("careful")
	if !strings.Contains(buf.String(), "[ERR] boom") || !strings.Contains(buf.String(), "[WARN] careful") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	l, v, err := ParseLevel("Debug")
	if err != nil || l != LevelDebug || v != 2 {
		t.Fatalf("ParseLevel(Debug) = %s %d %v", l, v, err)
	}
	if _, _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error")
	}
}
