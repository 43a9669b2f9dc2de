// Package gwlog provides the gateway's structured logging, built on logrus.
package gwlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the global logger instance shared by the pool, dispatcher, reaper
// and HTTP layer.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLevel sets the logging level from a string such as "debug" or "warn".
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetOutput sets the log output destination.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// WithField returns a logger with a single field.
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithFields returns a logger with multiple fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithEndpoint returns a logger tagged with the SSH endpoint (device or jump
// host) a log line concerns.
func WithEndpoint(host string) *logrus.Entry {
	return Logger.WithField("endpoint", host)
}

// WithSessionKey returns a logger tagged with the pool session key the log
// line concerns.
func WithSessionKey(host string, isJump bool, jumpName string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"endpoint": host,
		"is_jump":  isJump,
		"jump":     jumpName,
	})
}
