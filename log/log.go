// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log provides a minimal structured-logging facade used by the
// il2cpp parser. It mirrors the small Logger/Helper/Filter shape the
// parser has always depended on, so callers can plug in their own
// Logger implementation without the parser importing a specific
// logging library.
package log

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// Level is a log severity.
type Level int8

// Severity levels, lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal logging interface the parser depends on.
type Logger interface {
	Log(level Level, msg string)
}

// stdLogger writes to an io.Writer via the standard library logger.
type stdLogger struct {
	mu  sync.Mutex
	log *log.Logger
}

// NewStdLogger returns a Logger that writes to w, one line per call.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{log: log.New(w, "", log.LstdFlags)}
}

func (s *stdLogger) Log(level Level, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Printf("[%s] %s", level, msg)
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// FilterLevel drops any record below the given level.
func FilterLevel(level Level) FilterOption {
	return func(f *Filter) { f.level = level }
}

// Filter wraps a Logger, dropping records below a minimum level.
type Filter struct {
	next  Logger
	level Level
}

// NewFilter returns a Logger that forwards to next only when the
// record's level is at or above the configured threshold.
func NewFilter(next Logger, opts ...FilterOption) Logger {
	f := &Filter{next: next, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filter) Log(level Level, msg string) {
	if level < f.level {
		return
	}
	f.next.Log(level, msg)
}

// Helper adds printf-style convenience methods on top of a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger with Errorf/Warnf/Infof/Debugf helpers.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

// Debugf logs a formatted message at debug level.
func (h *Helper) Debugf(format string, args ...interface{}) {
	h.log(LevelDebug, format, args...)
}

// Infof logs a formatted message at info level.
func (h *Helper) Infof(format string, args ...interface{}) {
	h.log(LevelInfo, format, args...)
}

// Warnf logs a formatted message at warn level.
func (h *Helper) Warnf(format string, args ...interface{}) {
	h.log(LevelWarn, format, args...)
}

// Errorf logs a formatted message at error level.
func (h *Helper) Errorf(format string, args ...interface{}) {
	h.log(LevelError, format, args...)
}

func (h *Helper) log(level Level, format string, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	h.logger.Log(level, fmt.Sprintf(format, args...))
}
