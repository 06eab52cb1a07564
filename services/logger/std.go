package logsvc

import (
	"fmt"
	"log"
	"os"

	"github.com/repoacademico/repositorio/core"
)

var exitFunc = os.Exit // mockable

func NewStd(prefix string) *log.Logger {
	return log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
}

// StdLogger writes every entry to a standard logger.
// Debug entries are dropped unless debug is set.
type StdLogger struct {
	std   *log.Logger
	runID string
	debug bool
}

var _ core.Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger, runID string, debug bool) *StdLogger {
	return &StdLogger{std: std, runID: runID, debug: debug}
}

func printEntry(std *log.Logger, level, runID, msg string, args []interface{}) {
	line := fmt.Sprintf("[%s] %s", level, msg)
	if runID != "" {
		line = fmt.Sprintf("[%s] run=%s %s", level, runID, msg)
	}
	_ = std.Output(3, line)
	for _, arg := range args {
		_ = std.Output(3, fmt.Sprintf("%+v", arg))
	}
}

func (l StdLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		printEntry(l.std, "DEBUG", l.runID, msg, args)
	}
}

func (l StdLogger) Info(msg string, args ...interface{}) {
	printEntry(l.std, "INFO", l.runID, msg, args)
}

func (l StdLogger) Warn(msg string, args ...interface{}) {
	printEntry(l.std, "WARN", l.runID, msg, args)
}

func (l StdLogger) Error(msg string, args ...interface{}) {
	printEntry(l.std, "ERROR", l.runID, msg, args)
}

func (l StdLogger) Fatal(msg string, args ...interface{}) {
	printEntry(l.std, "FATAL", l.runID, msg, args)
	exitFunc(1)
}

// New picks the Rollbar logger when a token is configured.
func New(std *log.Logger, conf *core.Config, runID string) core.Logger {
	if conf.RollbarToken == "" || conf.IsTest() {
		return NewStdLogger(std, runID, conf.Debug)
	}
	return NewRollbarLogger(std, conf, runID)
}
