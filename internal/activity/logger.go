package activity

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
)

const (
	DefaultHistorySize      = 1000
	defaultSubscriberBufCap = 100
)

// Logger appends activity records to a single append-only stream.
//
// Each record is formatted in full and handed to the stream in one Write call
// while the logger's mutex is held, so a record's header and tail are never
// interleaved with another record's lines. Records that were written are also
// kept in a bounded history and fanned out to subscribers.
type Logger struct {
	mu          sync.Mutex
	w           io.Writer
	closer      io.Closer
	path        string
	history     *RingBuffer
	subscribers map[string]chan Record
	written     int
	closed      bool
}

// Open opens (creating if needed) the log file at path in append mode.
// Existing content is never truncated.
func Open(path string, historySize int) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open activity log %s: %w", path, err)
	}
	l := NewLogger(f, historySize)
	l.closer = f
	l.path = path
	return l, nil
}

// NewLogger returns a Logger writing to w. A non-positive historySize
// selects DefaultHistorySize.
func NewLogger(w io.Writer, historySize int) *Logger {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Logger{
		w:           w,
		history:     NewRingBuffer(historySize),
		subscribers: make(map[string]chan Record),
	}
}

// Path returns the file path the logger was opened on, if any.
func (l *Logger) Path() string {
	return l.path
}

// WriteMarker writes the run delimiter that separates sessions sharing one file.
func (l *Logger) WriteMarker() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := io.WriteString(l.w, runMarker+"\n"); err != nil {
		return fmt.Errorf("write run marker: %w", err)
	}
	return nil
}

// Log writes rec to the stream. A record with no ID is assigned one.
// On failure the record is neither kept in history nor delivered to subscribers.
func (l *Logger) Log(rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return rec, fmt.Errorf("write activity record: logger closed")
	}
	if _, err := l.w.Write(rec.Format()); err != nil {
		return rec, fmt.Errorf("write activity record: %w", err)
	}

	l.written++
	l.history.Write(rec)
	l.fanOut(rec)
	return rec, nil
}

// fanOut delivers rec to every subscriber. Callers hold l.mu.
func (l *Logger) fanOut(rec Record) {
	for _, ch := range l.subscribers {
		select {
		case ch <- rec:
		default:
			// Subscriber channel full, drop the record.
		}
	}
}

// Count returns the number of records written through this logger.
func (l *Logger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// History returns the retained records, oldest first.
func (l *Logger) History() []Record {
	return l.history.ReadAll()
}

// Recent returns up to limit of the most recent records, optionally restricted
// to one activity type. An empty typ matches all types.
func (l *Logger) Recent(limit int, typ Type) []Record {
	if typ == "" {
		return l.history.Tail(limit, nil)
	}
	return l.history.Tail(limit, func(r Record) bool { return r.Type == typ })
}

// Subscribe registers a channel that receives every record written from now on.
// It returns the subscription ID, the channel and a snapshot of the history
// taken atomically with the registration.
func (l *Logger) Subscribe() (string, <-chan Record, []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan Record, defaultSubscriberBufCap)
	if l.closed {
		close(ch)
	} else {
		l.subscribers[id] = ch
	}
	return id, ch, l.history.ReadAll()
}

// Unsubscribe removes a subscriber and closes its channel.
func (l *Logger) Unsubscribe(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ch, ok := l.subscribers[id]; ok {
		close(ch)
		delete(l.subscribers, id)
	}
}

// Close closes every subscriber channel and the underlying stream.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	for id, ch := range l.subscribers {
		close(ch)
		delete(l.subscribers, id)
	}
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
