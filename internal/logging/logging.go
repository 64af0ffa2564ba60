package logging

import (
    "io"
    "time"

    "github.com/charmbracelet/log"
)

// New builds the process logger. format is "text" or "json"; unknown levels
// fall back to info.
func New(w io.Writer, level, format string) *log.Logger {
    logger := log.NewWithOptions(w, log.Options{
        ReportTimestamp: true,
        TimeFormat:      time.RFC3339,
    })
    if format == "json" {
        logger.SetFormatter(log.JSONFormatter)
    }

    lvl, err := log.ParseLevel(level)
    if err != nil {
        lvl = log.InfoLevel
    }
    logger.SetLevel(lvl)
    return logger
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *log.Logger {
    return log.New(io.Discard)
}
