package daemon

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// rotatingWriter is the size-rotated log sink shared by the logger
// constructors. Long-running daemons must not grow an unbounded log on a
// device with limited storage.
func rotatingWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
}

// NewRotatingLogger returns a logger that writes only to a rotated log file,
// for runs under a service manager where stderr goes nowhere.
func NewRotatingLogger(path, prefix string) *log.Logger {
	return log.New(rotatingWriter(path), prefix, log.LstdFlags)
}

// NewTeeLogger returns a logger writing both to stderr and a rotated file,
// for foreground daemon runs where the operator still wants a persistent log.
func NewTeeLogger(path, prefix string) *log.Logger {
	return log.New(io.MultiWriter(os.Stderr, rotatingWriter(path)), prefix, log.LstdFlags)
}
