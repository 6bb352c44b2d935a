package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

func Null() *log.Logger {
	return log.New(io.Discard)
}

func Default() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
}

// For creates a logger writing to w, prefixed with the command name.
func For(w io.Writer, command string) *log.Logger {
	return log.NewWithOptions(w, log.Options{ReportTimestamp: true, Prefix: command})
}
