package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nativepkg/pkg/observability"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", log.InfoLevel, func(l *log.Logger) { l.Info("test") }, true},
		{"debug at info level", log.InfoLevel, func(l *log.Logger) { l.Debug("test") }, false},
		{"debug at debug level", log.DebugLevel, func(l *log.Logger) { l.Debug("test") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("got log output = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.InfoLevel))
	time.Sleep(10 * time.Millisecond)
	prog.done("Resolved 3 dependencies")

	if !strings.Contains(buf.String(), "Resolved 3 dependencies (") {
		t.Errorf("progress output = %q", buf.String())
	}
}

func TestLogHooks(t *testing.T) {
	defer observability.Reset()

	var buf bytes.Buffer
	installLogHooks(newLogger(&buf, log.DebugLevel))

	ctx := context.Background()
	observability.HTTP().OnRequest(ctx, "GET", "qpackages.com", "/codegen/")
	observability.Cache().OnCacheHit(ctx, "manifest")
	observability.Resolve().OnResolveComplete(ctx, "my-mod", 0, time.Second, errors.New("boom"))

	out := buf.String()
	for _, want := range []string{"http request", "/codegen/", "cache hit", "resolve failed", "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestSetLogLevelInstallsHooksOnDebug(t *testing.T) {
	defer observability.Reset()

	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	c.SetLogLevel(LogDebug)

	observability.HTTP().OnError(context.Background(), "GET", "h", "/p", errors.New("refused"))
	if !strings.Contains(buf.String(), "refused") {
		t.Errorf("debug level should log http errors, got %q", buf.String())
	}
}
