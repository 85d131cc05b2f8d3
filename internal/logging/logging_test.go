package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/ivlev/pihat/internal/config"
	"github.com/ivlev/pihat/internal/hal"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Level{
		"":        log.InfoLevel,
		"debug":   log.DebugLevel,
		"WARNING": log.WarnLevel,
		"trace":   log.TraceLevel,
		"none":    log.PanicLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); !errors.Is(err, hal.ErrInvalidInput) {
		t.Errorf("bad level: %v", err)
	}
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := Setup(config.Logging{Level: "debug", JSON: true}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer Setup(config.Logging{}, nil)

	l.WithField("step", 3).Debug("frame overtime")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("not JSON: %q", buf.String())
	}
	if entry["msg"] != "frame overtime" || entry["step"] != float64(3) {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetupText(t *testing.T) {
	var buf bytes.Buffer
	l, err := Setup(config.Logging{Level: "warn"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer Setup(config.Logging{}, nil)

	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
}
