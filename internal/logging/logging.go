// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ivlev/pihat/internal/config"
	"github.com/ivlev/pihat/internal/hal"
)

// Setup applies cfg to the standard logger and returns it. Output goes to
// stderr unless w is given.
func Setup(cfg config.Logging, w io.Writer) (*log.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := log.StandardLogger()
	if w == nil {
		w = os.Stderr
	}
	l.SetOutput(w)
	l.SetLevel(level)
	if cfg.JSON {
		l.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	}
	return l, nil
}

// ParseLevel accepts logrus level names plus "warning" and "none".
func ParseLevel(s string) (log.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return log.InfoLevel, nil
	case "none", "off":
		return log.PanicLevel, nil
	}
	level, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel, hal.InvalidInput("logging.level", err.Error())
	}
	return level, nil
}
