package logger

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Logger is the interface the rest of the tool logs through.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
}

// LoggerImpl is a struct that extends sirupsen/logrus.
type LoggerImpl struct {
	entry *log.Entry
}

// New creates a logger for the given tool name at the given level.
// An unparsable level is a setup error and aborts.
func New(toolName string, level string) *LoggerImpl {
	log.SetOutput(os.Stderr)
	logLevel, err := log.ParseLevel(level)
	if err != nil {
		fmt.Println("Error setting up logging: ", err)
		os.Exit(1)
	}
	log.SetLevel(logLevel)
	return &LoggerImpl{entry: log.WithFields(log.Fields{"tool": toolName})}
}

func (l *LoggerImpl) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *LoggerImpl) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *LoggerImpl) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *LoggerImpl) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// WithField returns a logger carrying an extra structured field.
func (l *LoggerImpl) WithField(key string, value interface{}) Logger {
	return &LoggerImpl{entry: l.entry.WithField(key, value)}
}
