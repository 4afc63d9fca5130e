package room

import (
	"bufio"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakshamg567/snakearena/logger"
	"github.com/sakshamg567/snakearena/pkg/utils"
)

func init() {
	logger.EnableLogging(false)
}

// pipeStream is the server end of an in-memory connection.
type pipeStream struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
	wmu  sync.Mutex
	once sync.Once
}

func (p *pipeStream) ReadLine() (string, error) {
	line, err := p.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

func (p *pipeStream) WriteLine(line []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if _, err := p.w.Write(line); err != nil {
		return err
	}
	if err := p.w.WriteByte('\n'); err != nil {
		return err
	}
	return p.w.Flush()
}

func (p *pipeStream) Close() error {
	var err error
	p.once.Do(func() { err = p.conn.Close() })
	return err
}

// testClient is the player end. Every line the server sends is decoded into
// msgs, which is closed when the connection goes away.
type testClient struct {
	conn net.Conn
	msgs chan Message
}

func newPipe(t *testing.T) (*pipeStream, *testClient) {
	t.Helper()
	server, client := net.Pipe()
	s := &pipeStream{conn: server, r: bufio.NewReader(server), w: bufio.NewWriter(server)}
	c := &testClient{conn: client, msgs: make(chan Message, 64)}

	go func() {
		defer close(c.msgs)
		r := bufio.NewReader(client)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			var m Message
			if err := json.Unmarshal([]byte(line), &m); err != nil {
				return
			}
			c.msgs <- m
		}
	}()
	t.Cleanup(func() { client.Close() })
	return s, c
}

func (c *testClient) next(t *testing.T) Message {
	t.Helper()
	select {
	case m, ok := <-c.msgs:
		if !ok {
			t.Fatalf("connection closed, expected a message")
		}
		return m
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for a message")
	}
	return Message{}
}

func (c *testClient) expect(t *testing.T, state string) Message {
	t.Helper()
	m := c.next(t)
	if m.State != state {
		t.Fatalf("got state %q (%s), want %q", m.State, m.Msg, state)
	}
	return m
}

// waitClosed drains messages until the server hangs up and returns the last
// one seen.
func (c *testClient) waitClosed(t *testing.T) (last Message) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case m, ok := <-c.msgs:
			if !ok {
				return last
			}
			last = m
		case <-deadline:
			t.Fatalf("connection was not closed")
		}
	}
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("send %q: %v", line, err)
	}
}

// autoplay answers Forward to every playing message until the server hangs
// up, and reports the last message it saw.
func (c *testClient) autoplay() <-chan Message {
	last := make(chan Message, 1)
	go func() {
		var m Message
		for msg := range c.msgs {
			m = msg
			if msg.State == TypePlaying {
				c.conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
				c.conn.Write([]byte("Forward\n"))
			}
		}
		last <- m
	}()
	return last
}

func mustTemplate(t *testing.T, text string) Template {
	t.Helper()
	l, err := utils.ParseLayout(text)
	if err != nil {
		t.Fatalf("ParseLayout: %v", err)
	}
	return TemplateFromLayout(l)
}

// join registers a client under addr and subscribes it to r.
func join(t *testing.T, l *WaitingList, r *Room, addr, name string) *testClient {
	t.Helper()
	s, c := newPipe(t)
	l.Insert(addr, name, s)
	if err := l.Subscribe(addr, r); err != nil {
		t.Fatalf("Subscribe(%s): %v", addr, err)
	}
	return c
}

func waitPhase(t *testing.T, r *Room, want Phase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for r.Phase() != want {
		if time.Now().After(deadline) {
			t.Fatalf("room stayed %v, want %v", r.Phase(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
