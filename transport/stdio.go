package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/coregate/mcpd/server"
)

// Stdio serves newline-delimited JSON-RPC messages over stdin/stdout.
// The stream carries one implicit session: the session opened by the
// first initialize message owns every following message until EOF.
type Stdio struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	mu        sync.Mutex
	sessionID string
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets a custom stdin reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) {
		s.in = r
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.out = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.errOut = w
	}
}

// NewStdio creates a new stdio transport.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Addr returns the transport address.
func (s *Stdio) Addr() string {
	return "stdio"
}

// Serve processes messages from stdin until EOF or context cancellation.
// The stream's session is closed on return.
func (s *Stdio) Serve(ctx context.Context, handler Handler) error {
	defer s.closeSession(handler)

	scanner := bufio.NewScanner(s.in)

	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			scanErr <- err
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil // EOF
			}
			s.handleLine(ctx, handler, line)
		}
	}
}

func (s *Stdio) handleLine(ctx context.Context, handler Handler, line string) {
	resp, sid, err := handler.HandleMessage(ctx, s.sessionID, []byte(line))

	switch {
	case err == nil:
		s.sessionID = sid
	case errors.Is(err, server.ErrSessionNotFound):
		// Evicted mid-stream. The client must initialize again.
		s.sessionID = ""
	}

	if resp != nil {
		s.write(resp)
	}
}

func (s *Stdio) closeSession(handler Handler) {
	if s.sessionID == "" {
		return
	}
	// The serve context may already be cancelled at this point.
	_ = handler.CloseSession(context.Background(), s.sessionID)
	s.sessionID = ""
}

func (s *Stdio) write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.out.Write(data)
	_, _ = s.out.Write([]byte("\n"))
}
