package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"telgen/internal/activity"
	"telgen/internal/command"

	"go.uber.org/zap"
)

// Dispatch parses and executes one input line.
//
// Validation, OS and logging failures are written to the warning stream and
// Dispatch returns nil so the caller can keep reading lines. The only error
// it returns is a *FatalError, after which the session must stop.
func (s *Session) Dispatch(ctx context.Context, line string) error {
	cmd, err := command.Parse(line)
	if err != nil {
		s.warnf("%v", err)
		return nil
	}
	if cmd == nil {
		return nil
	}

	s.log.Debug("dispatch", zap.String("family", string(cmd.Family())), zap.String("line", cmd.Line()))

	switch c := cmd.(type) {
	case command.Spawn:
		return s.spawn(ctx, c)
	case command.FileOp:
		s.report(s.fileOp(c))
	case command.NetSend:
		s.report(s.netSend(ctx, c))
	default:
		panic(fmt.Sprintf("session: unhandled command %T", cmd))
	}
	return nil
}

// spawn starts the child, records it, then blocks until it exits.
func (s *Session) spawn(ctx context.Context, c command.Spawn) error {
	ts := s.now()
	proc, err := s.launcher.Start(ctx, c.Program, c.Args)
	if err != nil {
		s.warnf("%v", err)
		return nil
	}

	pid := s.identity.PID
	if s.logChildPID {
		pid = proc.PID()
	}
	s.report(s.record(activity.Record{
		Timestamp:   ts,
		CommandLine: c.Line(),
		PID:         pid,
		ProcessName: c.Program,
		Type:        activity.TypeSpawn,
	}))

	if err := proc.Wait(); err != nil {
		return &FatalError{Op: "problem waiting on child", Err: err}
	}
	s.log.Debug("child exited", zap.String("program", c.Program), zap.Int("child", proc.PID()))
	return nil
}

func (s *Session) fileOp(c command.FileOp) error {
	var (
		ts         time.Time
		canonical  string
		resolveErr error
	)

	switch c.Kind {
	case command.FileNew:
		ts = s.now()
		if err := s.fs.Create(c.Path); err != nil {
			return err
		}
		canonical, resolveErr = s.fs.Canonicalize(c.Path)

	case command.FileDel:
		// Resolve first: the path no longer exists afterwards.
		canonical, resolveErr = s.fs.Canonicalize(c.Path)
		ts = s.now()
		if err := s.fs.Remove(c.Path); err != nil {
			return err
		}

	case command.FileMod:
		ts = s.now()
		if err := s.fs.Append(c.Path, []byte(c.Data)); err != nil {
			return err
		}
		canonical, resolveErr = s.fs.Canonicalize(c.Path)

	default:
		panic(fmt.Sprintf("session: unhandled FILE operation %q", c.Kind))
	}

	return s.record(activity.Record{
		Timestamp:   ts,
		CommandLine: c.Line(),
		PID:         s.identity.PID,
		ProcessName: s.identity.ProcessName,
		Type:        activity.TypeFile,
		Fields: []activity.Field{
			activity.Quoted("file-operation", string(c.Kind)),
			activity.Raw("file-path", resolution(canonical, resolveErr)),
		},
	})
}

func (s *Session) netSend(ctx context.Context, c command.NetSend) error {
	ts := s.now()
	n, err := s.network.SendUDP(ctx, c.Src, c.Dst, []byte(c.Data))
	if err != nil {
		return err
	}

	return s.record(activity.Record{
		Timestamp:   ts,
		CommandLine: c.Line(),
		PID:         s.identity.PID,
		ProcessName: s.identity.ProcessName,
		Type:        activity.TypeNet,
		Fields: []activity.Field{
			activity.Quoted("source", c.Src),
			activity.Quoted("destination", c.Dst),
			activity.Quoted("bytes-sent", strconv.Itoa(n)),
			activity.Quoted("protocol", "UDP"),
		},
	})
}

// record fills in the session's user name and writes rec.
func (s *Session) record(rec activity.Record) error {
	rec.Username = s.identity.Username
	written, err := s.logger.Log(rec)
	if err != nil {
		return err
	}
	s.log.Debug("activity recorded", zap.String("record", written.ID), zap.String("type", string(written.Type)))
	return nil
}

func (s *Session) report(err error) {
	if err != nil {
		s.warnf("%v", err)
	}
}

func (s *Session) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(s.warn, "[WARNING]: %s\n", msg)
	s.log.Debug("command not recorded", zap.String("reason", msg))
}
