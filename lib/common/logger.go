package common

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/sirupsen/logrus"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// Packages lists the logger names used throughout pxKV.
// InitLoggers sets the level for every one of them.
var Packages = []string{"session", "store", "lstore", "rstore", "db", "cli"}

// backend is the logrus instance every pxKV logger writes through
var backend = newBackend()

func newBackend() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	// level filtering is done per package by pxLogger
	l.SetLevel(logrus.DebugLevel)
	return l
}

// pxLogger implements the ILogger interface and forwards to logrus
type pxLogger struct {
	level logger.LogLevel
	entry *logrus.Entry
}

func (l *pxLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *pxLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.entry.Debugf(format, args...)
	}
}

func (l *pxLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.entry.Infof(format, args...)
	}
}

func (l *pxLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.entry.Warnf(format, args...)
	}
}

func (l *pxLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.entry.Errorf(format, args...)
	}
}

func (l *pxLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		l.entry.Panicf(format, args...)
	}
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger is the dragonboat logger.Factory for pxKV
func CreateLogger(pkgName string) logger.ILogger {
	return &pxLogger{
		level: logger.INFO,
		entry: backend.WithField("pkg", pkgName),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

var factoryOnce sync.Once

// InitLoggers installs the pxKV logger factory and sets the level of all pxKV loggers
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	factoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	for _, pkg := range Packages {
		logger.GetLogger(pkg).SetLevel(lvl)
	}
	return nil
}
