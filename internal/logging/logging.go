// Package logging provides leveled process logging for the imslink tools.
// Messages go through the standard log package, to stderr by default or to
// a size-rotated file when a LogConfig names one.
package logging

import (
	"log"
	"os"
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
	SilentMode
)

var (
	mu   sync.Mutex
	mode = InfoMode
	file *lumberjack.Logger
)

// LogConfig configures a rotating log file. An empty Logfile keeps logging
// on stderr.
type LogConfig struct {
	Logfile string `toml:"logfile" yaml:"logfile"`
	MaxSize int    `toml:"max_log_size" yaml:"max_log_size"` // megabytes
	MaxAge  int    `toml:"max_log_age" yaml:"max_log_age"`   // days
}

// SetLogger redirects log output to the configured rotating file.
func (c *LogConfig) SetLogger() {
	if c == nil || c.Logfile == "" {
		return
	}
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize,
		MaxAge:   c.MaxAge,
	}

	mu.Lock()
	prev := file
	file = l
	mu.Unlock()

	log.SetOutput(l)
	if prev != nil {
		prev.Close()
	}
}

// SetLogMode sets the severity required for a message to be printed.
// SilentMode turns off all logging.
func SetLogMode(newMode ModeFlag) {
	mu.Lock()
	mode = newMode
	mu.Unlock()
}

// ParseMode maps "debug", "info", "warning", "error" and "silent" to a mode.
func ParseMode(s string) (ModeFlag, bool) {
	switch s {
	case "debug":
		return DebugMode, true
	case "info", "":
		return InfoMode, true
	case "warning", "warn":
		return WarningMode, true
	case "error":
		return ErrorMode, true
	case "silent":
		return SilentMode, true
	}
	return InfoMode, false
}

func enabled(level ModeFlag) bool {
	mu.Lock()
	defer mu.Unlock()
	return mode <= level
}

func Debugf(format string, args ...interface{}) {
	if enabled(DebugMode) {
		log.Printf(" DEBUG "+format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if enabled(InfoMode) {
		log.Printf(" INFO "+format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if enabled(WarningMode) {
		log.Printf(" WARNING "+format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if enabled(ErrorMode) {
		log.Printf(" ERROR "+format, args...)
	}
}

// Shutdown closes the log file, if any, and returns output to stderr.
func Shutdown() {
	mu.Lock()
	l := file
	file = nil
	mu.Unlock()

	if l != nil {
		log.SetOutput(os.Stderr)
		l.Close()
	}
}

// TimeLog appends the elapsed time since its creation to each message.
//
//	tlog := logging.NewTimeLog()
//	...
//	tlog.Infof("linked %d tiles", n)
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
