// Package logging provides the levelled, package-level logger used by the
// chunk layer. Messages go to the standard library logger by default, or to
// a rotating log file when a LogConfig with a Logfile is applied.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
)

type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

// Logger provides a way for the library to log messages at different severities.
type Logger interface {
	// Debugf formats its arguments analogous to fmt.Printf and records the text as a log
	// message at Debug level.
	Debugf(format string, args ...interface{})

	// Infof is like Debugf, but at Info level.
	Infof(format string, args ...interface{})

	// Warningf is like Debugf, but at Warning level.
	Warningf(format string, args ...interface{})

	// Errorf is like Debugf, but at Error level.
	Errorf(format string, args ...interface{})

	// Criticalf is like Debugf, but at Critical level.
	Criticalf(format string, args ...interface{})

	// Shutdown makes sure logs are closed.
	Shutdown()
}

var (
	mu     sync.RWMutex
	mode   = InfoMode
	logger Logger = newStdLogger(os.Stderr, nil)
)

// SetLogMode sets the severity required for a log message to be printed.
// For example, SetLogMode(WarningMode) will log any calls using
// Warningf, Errorf, or Criticalf.  To turn off all logging, use SilentMode.
func SetLogMode(newMode ModeFlag) {
	mu.Lock()
	mode = newMode
	mu.Unlock()
}

// LogMode returns the current severity threshold.
func LogMode() ModeFlag {
	mu.RLock()
	defer mu.RUnlock()
	return mode
}

// ParseMode converts a level name ("debug", "info", "warning", "error",
// "critical", "silent") into a ModeFlag.
func ParseMode(s string) (ModeFlag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugMode, nil
	case "", "info":
		return InfoMode, nil
	case "warning", "warn":
		return WarningMode, nil
	case "error":
		return ErrorMode, nil
	case "critical":
		return CriticalMode, nil
	case "silent", "off":
		return SilentMode, nil
	}
	return InfoMode, fmt.Errorf("unknown log level %q", s)
}

// SetLogger replaces the package-level logger. A nil logger restores the
// default standard error logger.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = newStdLogger(os.Stderr, nil)
	}
	logger = l
}

// SetOutput sends log messages to w using the default formatting.
func SetOutput(w io.Writer) {
	SetLogger(newStdLogger(w, nil))
}

func current(threshold ModeFlag) (Logger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return logger, mode <= threshold
}

func Debugf(format string, args ...interface{}) {
	if l, ok := current(DebugMode); ok {
		l.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if l, ok := current(InfoMode); ok {
		l.Infof(format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if l, ok := current(WarningMode); ok {
		l.Warningf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if l, ok := current(ErrorMode); ok {
		l.Errorf(format, args...)
	}
}

func Criticalf(format string, args ...interface{}) {
	if l, ok := current(CriticalMode); ok {
		l.Criticalf(format, args...)
	}
}

// Shutdown closes the package-level logger.
func Shutdown() {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Shutdown()
}

// TimeLog adds elapsed time to logging.
// Example:
//
//	mylog := NewTimeLog()
//	...
//	mylog.Debugf("stuff happened")  // Appends elapsed time from NewTimeLog() to message.
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	Debugf(format+": %s", append(args, time.Since(t.start))...)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	Infof(format+": %s", append(args, time.Since(t.start))...)
}

func (t TimeLog) Warningf(format string, args ...interface{}) {
	Warningf(format+": %s", append(args, time.Since(t.start))...)
}

func (t TimeLog) Errorf(format string, args ...interface{}) {
	Errorf(format+": %s", append(args, time.Since(t.start))...)
}

// LogConfig selects where log messages are written.
type LogConfig struct {
	Logfile string
	MaxSize int    `toml:"max_log_size"`
	MaxAge  int    `toml:"max_log_age"`
	Level   string `toml:"level"`
}

// SetLogger applies the configuration: it sets the severity threshold and,
// when a Logfile is given, routes messages to a rotating log file.
func (c *LogConfig) SetLogger() error {
	if c == nil {
		return nil
	}
	m, err := ParseMode(c.Level)
	if err != nil {
		return err
	}
	SetLogMode(m)
	if c.Logfile == "" {
		Debugf("Sending log messages to stderr since no log file specified.")
		return nil
	}
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	SetLogger(newStdLogger(l, l))
	return nil
}

// --- Logger implementation ----

type stdLogger struct {
	l      *log.Logger
	closer io.Closer
}

func newStdLogger(w io.Writer, closer io.Closer) stdLogger {
	return stdLogger{l: log.New(w, "", log.LstdFlags), closer: closer}
}

func (s stdLogger) printf(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.l.Print(level + " " + strings.TrimRight(msg, "\n"))
}

func (s stdLogger) Debugf(format string, args ...interface{}) {
	s.printf("   DEBUG", format, args...)
}

func (s stdLogger) Infof(format string, args ...interface{}) {
	s.printf("    INFO", format, args...)
}

func (s stdLogger) Warningf(format string, args ...interface{}) {
	s.printf(" WARNING", format, args...)
}

func (s stdLogger) Errorf(format string, args ...interface{}) {
	s.printf("   ERROR", format, args...)
}

func (s stdLogger) Criticalf(format string, args ...interface{}) {
	s.printf("CRITICAL", format, args...)
}

func (s stdLogger) Shutdown() {
	if s.closer != nil {
		_ = s.closer.Close()
	}
}
