// Package console drives a session from a line-oriented input stream.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"telgen/internal/session"
)

// DefaultPrompt is printed before each line when reading interactively.
const DefaultPrompt = "telgen> "

// Dispatcher executes one input line.
type Dispatcher interface {
	Dispatch(ctx context.Context, line string) error
}

// Options controls how the loop reads input.
type Options struct {
	// Prompt is written to Out before each read when Interactive is set.
	Prompt      string
	Interactive bool
	Out         io.Writer
}

// Run reads lines from in until end of input and dispatches each in order.
//
// A line is fully processed before the next is read. Run returns nil at end
// of input, the first fatal error from the dispatcher, or a read error.
// Non-fatal dispatcher errors are ignored; the session has already reported
// them.
func Run(ctx context.Context, in io.Reader, d Dispatcher, opts Options) error {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}

	reader := bufio.NewReader(in)
	for {
		if opts.Interactive {
			fmt.Fprint(opts.Out, opts.Prompt)
		}

		line, err := reader.ReadString('\n')
		if line != "" {
			if derr := d.Dispatch(ctx, strings.TrimSpace(line)); session.IsFatal(derr) {
				return derr
			}
		}
		if errors.Is(err, io.EOF) {
			if opts.Interactive {
				fmt.Fprintln(opts.Out)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
}
