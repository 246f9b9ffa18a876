package log

import (
	"fmt"
	stdlog "log"

	"github.com/hamba/pkg/log"
)

// Level is the log level that will be used.
type Level int

// The log level constants.
const (
	Debug Level = iota
	Info
)

// Bridge is a log bridge to a standard logger.
type Bridge struct {
	log    log.Logger
	lvl    Level
	prefix string
}

// NewBridge returns a log bridge.
func NewBridge(l log.Logger, lvl Level, prefix string) *stdlog.Logger {
	adpt := &Bridge{
		log:    l,
		lvl:    lvl,
		prefix: prefix,
	}

	return stdlog.New(adpt, "", 0)
}

// Write writes a log line.
func (b *Bridge) Write(p []byte) (n int, err error) {
	line := b.prefix + string(p)

	switch b.lvl {
	case Debug:
		b.log.Debug(line)

	default:
		b.log.Info(line)
	}

	return len(p), nil
}

// PrintfBridge is a log bridge to loggers exposing a Printf method.
type PrintfBridge struct {
	log    log.Logger
	lvl    Level
	prefix string
}

// NewPrintfBridge returns a printf log bridge.
func NewPrintfBridge(l log.Logger, lvl Level, prefix string) *PrintfBridge {
	return &PrintfBridge{
		log:    l,
		lvl:    lvl,
		prefix: prefix,
	}
}

// Printf writes a formatted log line.
func (b *PrintfBridge) Printf(format string, args ...interface{}) {
	line := b.prefix + fmt.Sprintf(format, args...)

	switch b.lvl {
	case Debug:
		b.log.Debug(line)

	default:
		b.log.Info(line)
	}
}
