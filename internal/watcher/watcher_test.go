package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"telgen/internal/activity"
)

func testRecord(line string) activity.Record {
	return activity.Record{
		Timestamp:   time.Date(2003, time.July, 1, 10, 52, 37, 0, time.UTC),
		CommandLine: line,
		PID:         42,
		ProcessName: "TELGEN",
		Username:    "alice",
		Type:        activity.TypeFile,
		Fields: []activity.Field{
			activity.Quoted("file-operation", "NEW"),
			activity.Raw("file-path", `Ok("/tmp/a")`),
		},
	}
}

// startFollower runs a follower in the background and waits until it is
// watching. Records are delivered on the returned channel.
func startFollower(t *testing.T, path string, opts Options) <-chan activity.Record {
	t.Helper()

	recs := make(chan activity.Record, 16)
	f := New(path, func(rec activity.Record) { recs <- rec }, opts)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})

	select {
	case <-f.Ready():
	case err := <-errCh:
		t.Fatalf("follower stopped: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("follower not ready")
	}
	return recs
}

func expectRecord(t *testing.T, recs <-chan activity.Record, line string) {
	t.Helper()
	select {
	case rec := <-recs:
		if rec.CommandLine != line {
			t.Errorf("expected %q, got %q", line, rec.CommandLine)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", line)
	}
}

func expectNone(t *testing.T, recs <-chan activity.Record) {
	t.Helper()
	select {
	case rec := <-recs:
		t.Errorf("unexpected record %q", rec.CommandLine)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFollower_StreamsAppendedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.log")
	logger, err := activity.Open(path, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer logger.Close()
	if _, err := logger.Log(testRecord("FILE NEW /tmp/old")); err != nil {
		t.Fatalf("log: %v", err)
	}

	recs := startFollower(t, path, Options{})

	if _, err := logger.Log(testRecord("FILE NEW /tmp/a")); err != nil {
		t.Fatalf("log: %v", err)
	}
	expectRecord(t, recs, "FILE NEW /tmp/a")

	if _, err := logger.Log(testRecord("FILE NEW /tmp/b")); err != nil {
		t.Fatalf("log: %v", err)
	}
	expectRecord(t, recs, "FILE NEW /tmp/b")
	expectNone(t, recs)
}

func TestFollower_FromStartReplaysExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.log")
	logger, err := activity.Open(path, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer logger.Close()
	logger.WriteMarker()
	logger.Log(testRecord("FILE NEW /tmp/one"))
	logger.Log(testRecord("FILE NEW /tmp/two"))

	runs := make(chan struct{}, 4)
	recs := startFollower(t, path, Options{FromStart: true, OnRun: func() { runs <- struct{}{} }})

	expectRecord(t, recs, "FILE NEW /tmp/one")
	expectRecord(t, recs, "FILE NEW /tmp/two")
	if len(runs) != 1 {
		t.Errorf("expected 1 run marker, got %d", len(runs))
	}
}

func TestFollower_FileCreatedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.log")
	recs := startFollower(t, path, Options{})

	logger, err := activity.Open(path, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer logger.Close()
	logger.Log(testRecord("FILE NEW /tmp/late"))

	expectRecord(t, recs, "FILE NEW /tmp/late")
}

func TestFollower_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telemetry.log")
	recs := startFollower(t, path, Options{})

	rec := testRecord("FILE NEW /tmp/other")
	if err := os.WriteFile(filepath.Join(dir, "other.log"), rec.Format(), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectNone(t, recs)
}

func TestFollower_ConsumeHoldsPartialLine(t *testing.T) {
	var got []activity.Record
	f := New("unused.log", func(rec activity.Record) { got = append(got, rec) }, Options{})

	text := string(testRecord("FILE NEW /tmp/a").Format())
	cut := strings.Index(text, "pid:") + 2

	f.consume([]byte(text[:cut]))
	if len(got) != 0 {
		t.Fatalf("expected no record from a partial write, got %d", len(got))
	}

	f.consume([]byte(text[cut:]))
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].PID != 42 || got[0].CommandLine != "FILE NEW /tmp/a" {
		t.Errorf("unexpected record %+v", got[0])
	}
	if len(got[0].Fields) != 2 {
		t.Errorf("expected 2 tail fields, got %d", len(got[0].Fields))
	}
}

func TestFollower_ConsumeSkipsMalformedLines(t *testing.T) {
	var got []activity.Record
	f := New("unused.log", func(rec activity.Record) { got = append(got, rec) }, Options{})

	f.consume([]byte("garbage\n"))
	f.consume(testRecord("FILE NEW /tmp/a").Format())

	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
}

func TestFollower_DrainHandlesTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.log")
	var got []activity.Record
	f := New(path, func(rec activity.Record) { got = append(got, rec) }, Options{})

	first := testRecord("FILE NEW /tmp/first").Format()
	if err := os.WriteFile(path, append(first, first...), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}

	if err := os.WriteFile(path, testRecord("FILE NEW /tmp/second").Format(), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := f.drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(got) != 3 || got[2].CommandLine != "FILE NEW /tmp/second" {
		t.Errorf("expected record from rewritten file, got %+v", got)
	}
}

func TestFollower_DrainMissingFile(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "missing.log"), nil, Options{})
	if err := f.drain(); err != nil {
		t.Errorf("expected no error for missing file, got %v", err)
	}
}
