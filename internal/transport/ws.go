package transport

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/sakshamg567/snakearena/internal/room"
	"github.com/sakshamg567/snakearena/logger"
)

const writeWait = 10 * time.Second

// wsStream carries one line per text frame.
type wsStream struct {
	conn *websocket.Conn

	wmu  sync.Mutex
	once sync.Once
	done chan struct{}
}

func newWSStream(c *websocket.Conn) *wsStream {
	return &wsStream{conn: c, done: make(chan struct{})}
}

func (s *wsStream) ReadLine() (string, error) {
	for {
		mt, msg, err := s.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if mt == websocket.TextMessage {
			return strings.TrimSuffix(string(msg), "\n"), nil
		}
	}
}

func (s *wsStream) WriteLine(line []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, line)
}

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		s.wmu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.wmu.Unlock()
		err = s.conn.Close()
		close(s.done)
	})
	return err
}

// RegisterWebSocket mounts the game endpoint at /ws/play. The first text
// frame a client sends is its name.
func RegisterWebSocket(app *fiber.App, waiting *room.WaitingList) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/play", websocket.New(func(c *websocket.Conn) {
		addr := c.RemoteAddr().String()
		stream := newWSStream(c)

		c.SetReadDeadline(time.Now().Add(HandshakeTimeout))
		line, err := stream.ReadLine()
		c.SetReadDeadline(time.Time{})
		var name string
		if err == nil {
			name, err = cleanName(line)
		}
		if err != nil {
			logger.Info("WebSocket %s dropped during handshake: %v", addr, err)
			stream.Close()
			return
		}

		if waiting.Insert(addr, name, stream) {
			logger.Warn("WebSocket %s replaced an existing waiter", addr)
		}
		logger.Info("WebSocket %s waiting as %q", addr, name)

		// the connection is released when this handler returns
		<-stream.done
	}))
}
