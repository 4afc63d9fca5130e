package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	enabled atomic.Bool
	level   atomic.Int32
	logger  = log.New(os.Stdout, "", log.LstdFlags)

	debugTag = color.New(color.FgHiBlack)
	warnTag  = color.New(color.FgYellow)
	errorTag = color.New(color.FgRed, color.Bold)
)

func init() {
	enabled.Store(true)
	level.Store(int32(LevelInfo))
}

// EnableLogging flips all output on or off.
func EnableLogging(b bool) {
	enabled.Store(b)
}

func SetLevel(l Level) {
	level.Store(int32(l))
}

// SetOutput redirects log lines, e.g. to a file. Colour is dropped when the
// writer is not a terminal. It changes process-wide colour settings, so call
// it during startup before any goroutine logs.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
	if w != os.Stdout && w != os.Stderr {
		color.NoColor = true
	}
}

// ParseLevel accepts DEBUG, INFO, WARN or ERROR in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func on(l Level) bool {
	return enabled.Load() && Level(level.Load()) <= l
}

func Debug(msg string, v ...interface{}) {
	if !on(LevelDebug) {
		return
	}
	logger.Print(debugTag.Sprint("[DEBUG] ") + fmt.Sprintf(msg, v...))
}

func Info(msg string, v ...interface{}) {
	if !on(LevelInfo) {
		return
	}

	logger.Printf(msg, v...)

}

func Warn(msg string, v ...interface{}) {
	if !on(LevelWarn) {
		return
	}
	logger.Print(warnTag.Sprint("[WARN] ") + fmt.Sprintf(msg, v...))
}

func Error(msg string, v ...interface{}) {
	if !on(LevelError) {
		return
	}
	logger.Print(errorTag.Sprint("[ERROR] ") + fmt.Sprintf(msg, v...))
}
