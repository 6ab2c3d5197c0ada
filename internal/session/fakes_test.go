package session

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"telgen/internal/activity"
)

// events is a shared, ordered trace of fake OS calls and clock reads.
type events []string

func (e *events) add(s string) { *e = append(*e, s) }

type fakeProcess struct {
	pid     int
	waitErr error
	waited  bool
	trace   *events
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Wait() error {
	p.waited = true
	if p.trace != nil {
		p.trace.add("wait")
	}
	return p.waitErr
}

type fakeLauncher struct {
	startErr error
	waitErr  error
	calls    [][]string
	procs    []*fakeProcess
	trace    *events
}

func (l *fakeLauncher) Start(ctx context.Context, program string, args []string) (Process, error) {
	l.calls = append(l.calls, append([]string{program}, args...))
	if l.trace != nil {
		l.trace.add("start " + program)
	}
	if l.startErr != nil {
		return nil, l.startErr
	}
	p := &fakeProcess{pid: 9000 + len(l.procs), waitErr: l.waitErr, trace: l.trace}
	l.procs = append(l.procs, p)
	return p, nil
}

type fakeFS struct {
	files map[string][]byte
	trace *events
	err   error
}

func newFakeFS(trace *events) *fakeFS {
	return &fakeFS{files: make(map[string][]byte), trace: trace}
}

func (f *fakeFS) Create(path string) error {
	f.trace.add("create " + path)
	if f.err != nil {
		return f.err
	}
	f.files[path] = nil
	return nil
}

func (f *fakeFS) Remove(path string) error {
	f.trace.add("remove " + path)
	if _, ok := f.files[path]; !ok {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	delete(f.files, path)
	return nil
}

func (f *fakeFS) Append(path string, data []byte) error {
	f.trace.add("append " + path)
	if _, ok := f.files[path]; !ok {
		return &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	f.files[path] = append(f.files[path], data...)
	return nil
}

func (f *fakeFS) Canonicalize(path string) (string, error) {
	f.trace.add("resolve " + path)
	if _, ok := f.files[path]; !ok {
		return "", errors.New("no such file or directory")
	}
	return "/canonical" + path, nil
}

type datagram struct {
	src, dst string
	payload  []byte
}

type fakeNetwork struct {
	err   error
	sends []datagram
}

func (n *fakeNetwork) SendUDP(ctx context.Context, src, dst string, payload []byte) (int, error) {
	if n.err != nil {
		return 0, n.err
	}
	n.sends = append(n.sends, datagram{src: src, dst: dst, payload: payload})
	return len(payload), nil
}

// harness bundles a session wired to fakes and in-memory streams.
type harness struct {
	sess     *Session
	log      *bytes.Buffer
	warnings *bytes.Buffer
	launcher *fakeLauncher
	fs       *fakeFS
	net      *fakeNetwork
	trace    *events
}

var testIdentity = Identity{PID: 4242, Username: "alice", ProcessName: "TELGEN"}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		log:      &bytes.Buffer{},
		warnings: &bytes.Buffer{},
		trace:    &events{},
		net:      &fakeNetwork{},
	}
	h.launcher = &fakeLauncher{trace: h.trace}
	h.fs = newFakeFS(h.trace)

	clock := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	base := []Option{
		WithLauncher(h.launcher),
		WithFileSystem(h.fs),
		WithNetwork(h.net),
		WithWarnings(h.warnings),
		WithClock(func() time.Time {
			h.trace.add("clock")
			clock = clock.Add(time.Second)
			return clock
		}),
	}
	h.sess = New(activity.NewLogger(h.log, 0), testIdentity, append(base, opts...)...)
	return h
}

func (h *harness) records(t *testing.T) []activity.Record {
	t.Helper()
	recs, err := activity.ParseRecords(bytes.NewReader(h.log.Bytes()))
	if err != nil {
		t.Fatalf("parse activity log: %v", err)
	}
	return recs
}
