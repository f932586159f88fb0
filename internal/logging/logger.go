package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/david/kapt-crawler/internal/crawl"
)

// Logger represents a logger instance
type Logger = *logrus.Logger

// Fields represents structured logging fields
type Fields = logrus.Fields

// LevelEnv overrides the log level (debug, info, warn, error).
const LevelEnv = "KAPT_LOG_LEVEL"

// New creates a text logger on stderr. verbose forces debug level.
func New(verbose bool) *logrus.Logger {
	return NewWithOutput(os.Stderr, verbose)
}

func NewWithOutput(w io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05"})

	level := logrus.InfoLevel
	if l, err := logrus.ParseLevel(os.Getenv(LevelEnv)); err == nil {
		level = l
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

// Sink forwards crawl progress to a log entry at info level.
type Sink struct {
	Entry *logrus.Entry
}

func NewSink(logger *logrus.Logger, fields Fields) *Sink {
	return &Sink{Entry: logger.WithFields(fields)}
}

func (s *Sink) Progress(msg string) {
	s.Entry.Info(msg)
}

var _ crawl.ProgressSink = (*Sink)(nil)

// Tee sends each message to every sink in order.
func Tee(sinks ...crawl.ProgressSink) crawl.ProgressSink {
	return crawl.SinkFunc(func(msg string) {
		for _, s := range sinks {
			if s != nil {
				s.Progress(msg)
			}
		}
	})
}
