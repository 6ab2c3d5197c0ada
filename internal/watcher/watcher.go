// Package watcher follows an activity log file as it grows and turns the
// appended text back into records.
package watcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"telgen/internal/activity"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// RecordCallback is called for every record appended to the followed file.
type RecordCallback func(rec activity.Record)

// Options configures a Follower.
type Options struct {
	// FromStart replays the records already in the file before following.
	FromStart bool
	// OnRun is called for every run marker read.
	OnRun func()
	// Logger receives diagnostics. Nil disables them.
	Logger *zap.Logger
}

// Follower tails one activity log file.
//
// It watches the file's parent directory so it keeps working when the file
// is created late, removed or replaced.
type Follower struct {
	path     string
	callback RecordCallback
	opts     Options
	log      *zap.Logger

	offset  int64
	partial []byte
	asm     activity.Assembler
	ready   chan struct{}
}

// New creates a follower for the log at path.
func New(path string, callback RecordCallback, opts Options) *Follower {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Follower{
		path:     filepath.Clean(path),
		callback: callback,
		opts:     opts,
		log:      log.Named("watcher"),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the follower is watching for changes.
func (f *Follower) Ready() <-chan struct{} {
	return f.ready
}

// Run follows the file until ctx is cancelled.
func (f *Follower) Run(ctx context.Context) error {
	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsW.Close()

	if err := fsW.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	if !f.opts.FromStart {
		if info, err := os.Stat(f.path); err == nil {
			f.offset = info.Size()
		}
	}
	if err := f.drain(); err != nil {
		return err
	}
	close(f.ready)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsW.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				f.log.Debug("log file replaced", zap.String("path", f.path))
				f.reset()
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := f.drain(); err != nil {
					f.log.Warn("read log", zap.String("path", f.path), zap.Error(err))
				}
			}

		case err, ok := <-fsW.Errors:
			if !ok {
				return nil
			}
			f.log.Warn("watcher error", zap.String("path", f.path), zap.Error(err))
		}
	}
}

// reset forgets everything read so far.
func (f *Follower) reset() {
	f.offset = 0
	f.partial = nil
	f.asm = activity.Assembler{}
}

// drain reads everything appended since the last read and emits the records
// it completes. A missing file is not an error.
func (f *Follower) drain() error {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < f.offset {
		f.log.Debug("log file truncated", zap.String("path", f.path))
		f.reset()
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	f.offset += int64(len(data))
	f.consume(data)
	return nil
}

// consume feeds complete lines to the assembler. A trailing partial line is
// held until the rest of it arrives.
func (f *Follower) consume(data []byte) {
	buf := append(f.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		f.feed(string(buf[:i]))
		buf = buf[i+1:]
	}
	f.partial = append([]byte(nil), buf...)

	// Records are written in one piece, so with no partial line pending the
	// record being assembled is complete.
	if len(f.partial) == 0 {
		if rec, ok := f.asm.Flush(); ok {
			f.emit(rec)
		}
	}
}

func (f *Follower) feed(line string) {
	runs := f.asm.Runs()
	done, err := f.asm.Feed(line)
	if err != nil {
		f.log.Warn("skip malformed line", zap.String("path", f.path), zap.Error(err))
		return
	}
	if done != nil {
		f.emit(*done)
	}
	if f.asm.Runs() > runs && f.opts.OnRun != nil {
		f.opts.OnRun()
	}
}

func (f *Follower) emit(rec activity.Record) {
	if f.callback != nil {
		f.callback(rec)
	}
}
