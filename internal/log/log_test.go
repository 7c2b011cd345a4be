package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/appgrove/appgrove-server/internal/log"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

func newTestLogger(t *testing.T, buf *bytes.Buffer, lvl slog.Level) log.Logger {
	t.Helper()
	l, err := log.New(log.Options{
		App:        "appgrove-test",
		Level:      lvl,
		JsonFormat: true,
		Writer:     buf,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("unmarshal log line: %v\n%s", err, buf.String())
	}
	return m
}

func TestParseLevel(t *testing.T) {
	for s, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		" warn": slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := log.ParseLevel(s)
		if err != nil || got != want {
			t.Errorf("log.ParseLevel(%q) = (%v, %v), want %v", s, got, err, want)
		}
	}
	if _, err := log.ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestInfoEmitsAppAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, slog.LevelInfo)

	l.Info(context.Background(), "import accepted", "method", "zip", "item_id", 42)

	m := lastLine(t, &buf)
	if m["app"] != "appgrove-test" {
		t.Errorf("app = %v", m["app"])
	}
	if m["msg"] != "import accepted" {
		t.Errorf("msg = %v", m["msg"])
	}
	if m["method"] != "zip" {
		t.Errorf("method = %v", m["method"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, slog.LevelWarn)

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "hidden too")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %s", buf.String())
	}

	l.Warn(context.Background(), "visible")
	if buf.Len() == 0 {
		t.Fatal("expected warn output")
	}
}

func TestWithIsCopyOnWrite(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(t, &buf, slog.LevelInfo)
	child := base.With("source_id", "gh:a/b")

	base.Info(context.Background(), "from base")
	if m := lastLine(t, &buf); m["source_id"] != nil {
		t.Errorf("base logger leaked child attr: %v", m)
	}

	buf.Reset()
	child.Info(context.Background(), "from child")
	if m := lastLine(t, &buf); m["source_id"] != "gh:a/b" {
		t.Errorf("child attr missing: %v", m)
	}
}

func TestErrorAttachesChainAndStack(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, slog.LevelInfo)

	root := errors.New("disk full")
	err := xerrors.Wrap(root, "writing bundle")
	l.Error(context.Background(), err, "extract failed")

	m := lastLine(t, &buf)
	if m["err"] == nil {
		t.Fatal("err attr missing")
	}
	chain, ok := m["error_chain"].([]any)
	if !ok || len(chain) != 2 {
		t.Fatalf("error_chain = %v", m["error_chain"])
	}
	stack, _ := m["stack"].(string)
	if !strings.Contains(stack, "TestErrorAttachesChainAndStack") {
		t.Errorf("stack missing caller frame:\n%s", stack)
	}
}

func TestFromContextFallsBackToNop(t *testing.T) {
	l := log.FromContext(context.Background())
	if l == nil {
		t.Fatal("FromContext returned nil")
	}
	// must not panic
	l.Info(context.Background(), "silent")
	l.Error(context.Background(), errors.New("x"), "silent")

	var buf bytes.Buffer
	want := newTestLogger(t, &buf, slog.LevelInfo)
	ctx := log.WithContext(context.Background(), want)
	if got := log.FromContext(ctx); got != want {
		t.Fatal("FromContext did not return stored logger")
	}
}
