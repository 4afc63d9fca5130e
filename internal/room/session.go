package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sakshamg567/snakearena/internal/game"
	"github.com/sakshamg567/snakearena/logger"
)

const (
	sendQueueSize = 8
	recvQueueSize = 4

	// how long queued lines may take to flush once a session is closing
	flushGrace = 2 * time.Second
)

var errSlowClient = errors.New("client is not reading")

// Session connects one assigned player to the tick loop. Outbound lines
// go through out to the write pump, parsed commands come back through in.
type Session struct {
	ID   game.SnakeID
	Addr string
	Name string

	stream Stream
	out    chan []byte
	in     chan game.Command

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // guards closed, err and sends on out
	closed bool
	err    error
}

func newSession(id game.SnakeID, w *Waiter) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:     id,
		Addr:   w.Addr,
		Name:   w.Name,
		stream: w.stream,
		out:    make(chan []byte, sendQueueSize),
		in:     make(chan game.Command, recvQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	go s.readPump()
	go s.writePump()

	s.send(startMessage(id))
	return s
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Err returns why the session ended, or nil while it is open.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) readPump() {
	defer logger.Debug("Session %s (%d) readPump exiting", s.Addr, s.ID)

	for {
		line, err := s.stream.ReadLine()
		if err != nil {
			s.fail(fmt.Errorf("read: %w", err), false)
			return
		}
		logger.Debug("%s (%d) received: %s", s.Addr, s.ID, line)

		cmd, err := game.ParseCommand(strings.TrimSuffix(line, "\r"))
		if err != nil {
			s.fail(err, true)
			return
		}

		select {
		case s.in <- cmd:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) writePump() {
	defer func() {
		if err := s.stream.Close(); err != nil {
			logger.Debug("Session %s (%d) close: %v", s.Addr, s.ID, err)
		}
		logger.Debug("Session %s (%d) writePump exiting", s.Addr, s.ID)
	}()

	for line := range s.out {
		if err := s.stream.WriteLine(line); err != nil {
			s.fail(fmt.Errorf("write: %w", err), false)
			for range s.out {
			}
			return
		}
	}
}

// send queues a line for the write pump. A client that lets the queue fill
// up is dropped.
func (s *Session) send(line []byte) error {
	s.mu.Lock()
	if s.closed {
		err := s.err
		s.mu.Unlock()
		if err == nil {
			err = ErrSessionClosed
		}
		return err
	}
	select {
	case s.out <- line:
		s.mu.Unlock()
		return nil
	default:
	}
	s.mu.Unlock()

	s.fail(errSlowClient, false)
	return errSlowClient
}

// fail tears the session down, telling the client why when notify is set.
// Only the first failure is recorded.
func (s *Session) fail(err error, notify bool) {
	msg := ""
	if notify {
		msg = err.Error()
	}
	if s.shutdown(err, msg) {
		logger.Info("Connection %s (%d) closed with error: %v", s.Addr, s.ID, err)
	}
}

// shutdown closes the outbound queue, optionally appending a final error
// line. It reports whether this call did the closing.
func (s *Session) shutdown(err error, msg string) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.err = err
	if msg != "" {
		select {
		case s.out <- errorMessage(msg):
		default:
		}
	}
	close(s.out)
	s.mu.Unlock()

	s.cancel()
	// a write pump stuck on a client that never reads is cut off here
	time.AfterFunc(flushGrace, func() { s.stream.Close() })
	return true
}

// Exchange runs one tick for this player. The line is always sent; when
// await is false (the snake is dead) nothing is read back. Otherwise it
// waits for one command, a fault, the timeout (if positive) or ctx.
func (s *Session) Exchange(ctx context.Context, line []byte, await bool, timeout time.Duration) (game.Command, error) {
	if err := s.send(line); err != nil {
		return game.Forward, err
	}
	if !await {
		return game.Forward, nil
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case cmd := <-s.in:
		return cmd, nil
	case <-s.ctx.Done():
		return game.Forward, s.Err()
	case <-expired:
		err := fmt.Errorf("no command received within %v", timeout)
		s.fail(err, true)
		return game.Forward, err
	case <-ctx.Done():
		return game.Forward, ctx.Err()
	}
}

// Finish tells the client the game is over and closes the connection once
// the line has been written.
func (s *Session) Finish() {
	if err := s.send(doneMessage); err != nil {
		return
	}
	if s.shutdown(nil, "") {
		logger.Debug("Connection closed: %s", s.Addr)
	}
}

// Abort closes the connection without a terminal message.
func (s *Session) Abort() {
	s.shutdown(ErrSessionClosed, "")
	s.stream.Close()
}
