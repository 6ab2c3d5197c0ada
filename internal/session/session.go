package session

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"telgen/internal/activity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State represents the lifecycle state of a session.
type State string

const (
	StateCreated State = "created"
	StateActive  State = "active"
	StateClosed  State = "closed"
)

// Identity is the acting process identity captured once at startup.
type Identity struct {
	PID         int    `json:"pid"`
	Username    string `json:"username"`
	ProcessName string `json:"processName"`
}

// Info is a point-in-time description of a session.
type Info struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	PID       int       `json:"pid"`
	Username  string    `json:"username"`
	Process   string    `json:"processName"`
	LogPath   string    `json:"logPath"`
	StartedAt time.Time `json:"startedAt"`
	Records   int       `json:"records"`
}

// Session is the live interpreter. It exclusively owns the activity log for
// the whole run and executes one command at a time.
type Session struct {
	id        string
	startedAt time.Time
	identity  Identity
	logger    *activity.Logger

	launcher Launcher
	fs       FileSystem
	network  Network

	warn        io.Writer
	now         func() time.Time
	log         *zap.Logger
	logChildPID bool

	mu    sync.RWMutex
	state State
}

// Option configures a Session.
type Option func(*Session)

// WithLauncher replaces the process launcher used by SPAWN.
func WithLauncher(l Launcher) Option {
	return func(s *Session) { s.launcher = l }
}

// WithFileSystem replaces the file system used by FILE.
func WithFileSystem(fs FileSystem) Option {
	return func(s *Session) { s.fs = fs }
}

// WithNetwork replaces the datagram sender used by NET.
func WithNetwork(n Network) Option {
	return func(s *Session) { s.network = n }
}

// WithWarnings sets where console warnings are written. Defaults to stderr.
func WithWarnings(w io.Writer) Option {
	return func(s *Session) { s.warn = w }
}

// WithClock sets the timestamp source for records.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithChildPID makes SPAWN records carry the child's pid instead of the agent's.
func WithChildPID(enabled bool) Option {
	return func(s *Session) { s.logChildPID = enabled }
}

// New creates a session that records activity through logger.
func New(logger *activity.Logger, identity Identity, opts ...Option) *Session {
	s := &Session{
		id:        uuid.New().String(),
		startedAt: time.Now().UTC(),
		identity:  identity,
		logger:    logger,
		launcher:  NewOSLauncher(os.Stdin, os.Stdout, os.Stderr),
		fs:        OSFileSystem{},
		network:   UDPNetwork{},
		warn:      os.Stderr,
		now:       time.Now,
		log:       zap.NewNop(),
		state:     StateCreated,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("session", s.id))
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Identity returns the acting identity.
func (s *Session) Identity() Identity {
	return s.identity
}

// Logger returns the activity logger owned by the session.
func (s *Session) Logger() *activity.Logger {
	return s.logger
}

// Start writes the run marker. Failure is fatal: the session cannot
// guarantee its records are delimited from an earlier run.
func (s *Session) Start() error {
	if err := s.logger.WriteMarker(); err != nil {
		return &FatalError{Op: "unable to write to logfile", Err: err}
	}

	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()

	s.log.Debug("session started",
		zap.Int("pid", s.identity.PID),
		zap.String("username", s.identity.Username),
		zap.String("log", s.logger.Path()),
	)
	return nil
}

// Close closes the activity log.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	if err := s.logger.Close(); err != nil {
		return fmt.Errorf("close activity log: %w", err)
	}
	return nil
}

// Info describes the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	return Info{
		ID:        s.id,
		State:     state,
		PID:       s.identity.PID,
		Username:  s.identity.Username,
		Process:   s.identity.ProcessName,
		LogPath:   s.logger.Path(),
		StartedAt: s.startedAt,
		Records:   s.logger.Count(),
	}
}
