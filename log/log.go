// Package log is a thin leveled facade over apex/log with a single-line
// handler. The level comes from the SHEETWATCH_LOG environment variable
// (debug/info/warn/error), defaulting to info.
package log

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
)

func init() {
	level := strings.ToLower(os.Getenv("SHEETWATCH_LOG"))

	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	log.SetHandler(&handler{})
}

// SetDebug lowers the level to debug regardless of the environment (the
// --debug flag).
func SetDebug() {
	log.SetLevel(log.DebugLevel)
}

type handler struct{}

func (h *handler) HandleLog(e *log.Entry) error {
	level := "?"

	switch e.Level {
	case log.DebugLevel:
		level = "DEBUG"
	case log.InfoLevel:
		level = "INFO"
	case log.WarnLevel:
		level = "WARN"
	case log.ErrorLevel:
		level = "ERROR"
	case log.FatalLevel:
		level = "FATAL"
	}

	fmt.Fprintf(os.Stderr, "%s %-5s %s\n", time.Now().Format("2006-01-02 15:04:05"), level, e.Message)

	return nil
}

func Debugf(format string, args ...any) {
	log.Debugf(format, args...)
}

func Infof(format string, args ...any) {
	log.Infof(format, args...)
}

func Warnf(format string, args ...any) {
	log.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	log.Errorf(format, args...)
}
