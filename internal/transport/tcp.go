// Package transport accepts game clients and hands them to the waiting list
// once they have sent their name.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sakshamg567/snakearena/internal/room"
	"github.com/sakshamg567/snakearena/logger"
)

// HandshakeTimeout bounds how long a new connection may take to send its
// name.
const HandshakeTimeout = 30 * time.Second

var (
	errEmptyName   = errors.New("empty name")
	errInvalidName = errors.New("name is not valid UTF-8")
)

// cleanName trims a handshake line into a display name.
func cleanName(line string) (string, error) {
	if !utf8.ValidString(line) {
		return "", errInvalidName
	}
	name := strings.TrimSpace(line)
	if name == "" {
		return "", errEmptyName
	}
	return name, nil
}

// lineStream frames a net.Conn as newline-terminated lines.
type lineStream struct {
	conn net.Conn
	r    *bufio.Reader

	wmu sync.Mutex
	w   *bufio.Writer

	once     sync.Once
	closeErr error
}

func newLineStream(conn net.Conn) *lineStream {
	return &lineStream{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

func (s *lineStream) ReadLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

func (s *lineStream) WriteLine(line []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := s.w.Write(line); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *lineStream) Close() error {
	s.once.Do(func() { s.closeErr = s.conn.Close() })
	return s.closeErr
}

// readName performs the handshake: one line holding the display name.
func (s *lineStream) readName(timeout time.Duration) (string, error) {
	s.conn.SetReadDeadline(time.Now().Add(timeout))
	defer s.conn.SetReadDeadline(time.Time{})

	line, err := s.ReadLine()
	if err != nil {
		return "", err
	}
	return cleanName(line)
}

// TCPServer accepts plain TCP game clients.
type TCPServer struct {
	ln      net.Listener
	waiting *room.WaitingList

	HandshakeTimeout time.Duration
}

// ListenTCP binds addr. Call Serve to start accepting.
func ListenTCP(addr string, waiting *room.WaitingList) (*TCPServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &TCPServer{ln: ln, waiting: waiting, HandshakeTimeout: HandshakeTimeout}, nil
}

// Addr is the bound address.
func (s *TCPServer) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled.
func (s *TCPServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	logger.Info("Game server listening on %s", s.ln.Addr())
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Warn("accept: %v", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handle(conn)
	}
}

func (s *TCPServer) handle(conn net.Conn) {
	addr := conn.RemoteAddr().String()
	stream := newLineStream(conn)

	name, err := stream.readName(s.HandshakeTimeout)
	if err != nil {
		logger.Info("Connection %s dropped during handshake: %v", addr, err)
		stream.Close()
		return
	}

	if s.waiting.Insert(addr, name, stream) {
		logger.Warn("Connection %s replaced an existing waiter", addr)
	}
	logger.Info("Connection %s waiting as %q", addr, name)
}
