// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestStdLoggerWritesFormattedLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger(&buf)
	l.Log(LevelWarn, "disk is getting full")

	out := buf.String()
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "disk is getting full") {
		t.Errorf("Log output = %q, want it to contain level and message", out)
	}
}

func TestFilterDropsBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	filtered := NewFilter(NewStdLogger(&buf), FilterLevel(LevelWarn))

	filtered.Log(LevelInfo, "should be dropped")
	filtered.Log(LevelError, "should pass through")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Error("Filter forwarded a record below its threshold")
	}
	if !strings.Contains(out, "should pass through") {
		t.Error("Filter dropped a record at or above its threshold")
	}
}

func TestHelperNilSafe(t *testing.T) {
	var h *Helper
	h.Infof("this must not panic: %d", 42)

	h2 := NewHelper(nil)
	h2.Errorf("also must not panic: %s", "ok")
}

func TestHelperForwardsFormattedMessage(t *testing.T) {
	var buf bytes.Buffer
	h := NewHelper(NewStdLogger(&buf))
	h.Debugf("value=%d", 7)

	if !strings.Contains(buf.String(), "value=7") {
		t.Errorf("Debugf output = %q, want it to contain \"value=7\"", buf.String())
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}
