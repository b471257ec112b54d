// Package logging configures the shared structured logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if os.Getenv("DOCEXCHANGE_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}
}

// Logger returns the shared logger instance
func Logger() *logrus.Logger {
	return log
}

// WithField returns an entry with a single field attached
func WithField(key string, value interface{}) *logrus.Entry {
	return log.WithField(key, value)
}

// SetVerbose switches the shared logger to debug level
func SetVerbose(verbose bool) {
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}
