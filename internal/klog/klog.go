// Package klog implements the atomic print/log sink registration spec
// §6.5 describes: output is silently dropped until a sink registers,
// and registration uses Release/Acquire so later callers always
// observe the real sink (spec Design Notes, "Atomic log-function
// pointer").
package klog

import (
	"fmt"
	"sync/atomic"
)

/// Level orders log severities, least to most verbose (spec §6.5:
/// "Fatal < Error < Warn < Info < Debug < Trace").
type Level int

const (
	Fatal Level = iota
	Error
	Warn
	Info
	Debug
	Trace
)

func (l Level) String() string {
	switch l {
	case Fatal:
		return "FATAL"
	case Error:
		return "ERROR"
	case Warn:
		return "WARN"
	case Info:
		return "INFO"
	case Debug:
		return "DEBUG"
	case Trace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

/// PrintFn is the raw console sink, taking already-formatted bytes.
type PrintFn func(s string)

/// LogFn is the leveled sink.
type LogFn func(level Level, s string)

var (
	printFn atomic.Pointer[PrintFn]
	logFn   atomic.Pointer[LogFn]
	minimum atomic.Int32
)

func init() {
	minimum.Store(int32(Trace))
}

/// SetPrintFn installs fn as the raw print sink (spec §6.5
/// set_print_fn). A nil fn reverts to silently dropping output.
func SetPrintFn(fn PrintFn) {
	if fn == nil {
		printFn.Store(nil)
		return
	}
	printFn.Store(&fn)
}

/// SetLogFn installs fn as the leveled log sink (spec §6.5
/// set_log_fn).
func SetLogFn(fn LogFn) {
	if fn == nil {
		logFn.Store(nil)
		return
	}
	logFn.Store(&fn)
}

/// SetMinLevel suppresses any Log call more verbose than level. The
/// default is Trace (nothing suppressed).
func SetMinLevel(level Level) { minimum.Store(int32(level)) }

/// Print writes s to the registered print sink, or drops it if none is
/// registered yet (early boot, per spec Design Notes).
func Print(s string) {
	if fn := printFn.Load(); fn != nil {
		(*fn)(s)
	}
}

/// Printf formats and writes to the print sink.
func Printf(format string, args ...any) {
	Print(fmt.Sprintf(format, args...))
}

/// Log writes a leveled message to the registered log sink, dropping
/// it if none is registered or if level is more verbose than the
/// configured minimum.
func Log(level Level, s string) {
	if int32(level) > minimum.Load() {
		return
	}
	if fn := logFn.Load(); fn != nil {
		(*fn)(level, s)
	}
}

/// Logf formats and writes a leveled message.
func Logf(level Level, format string, args ...any) {
	Log(level, fmt.Sprintf(format, args...))
}
