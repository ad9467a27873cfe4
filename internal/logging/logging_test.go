package logging

import (
	"context"
	"reflect"
	"sync"
	"testing"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []entry
}

type entry struct {
	level string
	msg   string
	kv    []interface{}
}

func (r *recordingLogger) add(level, msg string, kv []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{level, msg, kv})
}

func (r *recordingLogger) Infow(msg string, kv ...interface{})  { r.add("info", msg, kv) }
func (r *recordingLogger) Debugw(msg string, kv ...interface{}) { r.add("debug", msg, kv) }
func (r *recordingLogger) Warnw(msg string, kv ...interface{})  { r.add("warn", msg, kv) }
func (r *recordingLogger) Errorw(msg string, kv ...interface{}) { r.add("error", msg, kv) }
func (r *recordingLogger) Sync() error                          { return nil }

func TestSetLoggerRoutesPackageFunctions(t *testing.T) {
	rec := &recordingLogger{}
	SetLogger(rec)
	t.Cleanup(func() { SetLogger(nil) })

	Infow("a", "k", 1)
	Warnw("b")
	Errorw("c")
	Debugw("d")
	if len(rec.entries) != 4 {
		t.Fatalf("want 4 entries, got %d", len(rec.entries))
	}
	if rec.entries[0].level != "info" || rec.entries[3].level != "debug" {
		t.Fatalf("unexpected levels: %+v", rec.entries)
	}
	if !reflect.DeepEqual(rec.entries[0].kv, []interface{}{"k", 1}) {
		t.Fatalf("unexpected fields: %v", rec.entries[0].kv)
	}
}

func TestInfowCtxMergesContextFields(t *testing.T) {
	rec := &recordingLogger{}
	SetLogger(rec)
	t.Cleanup(func() { SetLogger(nil) })

	ctx := WithFields(context.Background(), "session.id", "s1")
	ctx = WithFields(ctx, "attempt", 2)
	InfowCtx(ctx, "saved", "path", "x.wav")

	want := []interface{}{"session.id", "s1", "attempt", 2, "path", "x.wav"}
	if len(rec.entries) != 1 || !reflect.DeepEqual(rec.entries[0].kv, want) {
		t.Fatalf("want %v, got %+v", want, rec.entries)
	}
	if WithFields(ctx) != ctx {
		t.Fatalf("WithFields without fields should return ctx unchanged")
	}
}

func TestFieldHelpers(t *testing.T) {
	if got := SessionFields("id", ""); !reflect.DeepEqual(got, []interface{}{"session.id", "id"}) {
		t.Fatalf("SessionFields without status: %v", got)
	}
	if got := SessionFields("id", "paused"); len(got) != 4 || got[3] != "paused" {
		t.Fatalf("SessionFields with status: %v", got)
	}
	// 88200 stereo samples at 44.1 kHz is one second.
	got := ChunkFields(3, 88200, 44100, 2)
	want := []interface{}{"chunks", 3, "samples", 88200, "duration_ms", 1000}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ChunkFields: want %v got %v", want, got)
	}
	if got := ChunkFields(1, 10, 0, 1); got[5] != 0 {
		t.Fatalf("zero rate should report zero duration, got %v", got[5])
	}
	if got := RoundFields("r", "Rock", "Paper", "computer_win"); len(got) != 8 || got[7] != "computer_win" {
		t.Fatalf("RoundFields: %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"debug": "debug", "warn": "warn", "error": "error", "": "info", "bogus": "info"} {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
