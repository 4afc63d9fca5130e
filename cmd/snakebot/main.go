// Command snakebot connects a number of simple bots to a snake arena server,
// for demos and load testing.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakshamg567/snakearena/internal/game"
	"github.com/sakshamg567/snakearena/internal/room"
	"github.com/sakshamg567/snakearena/logger"
)

var (
	mode     = flag.String("mode", "ws", "transport: ws or tcp")
	addr     = flag.String("addr", "localhost:8080", "server address (HTTP for ws, game port for tcp)")
	clients  = flag.Int("n", 1, "number of bots")
	prefix   = flag.String("name", "bot", "name prefix")
	logLevel = flag.String("log-level", "INFO", "log level (DEBUG, INFO, WARN, ERROR)")
)

// conn is one line-oriented connection to the server.
type conn interface {
	readLine() (string, error)
	writeLine(s string) error
	close()
}

type tcpConn struct {
	c net.Conn
	r *bufio.Reader
}

func (t *tcpConn) readLine() (string, error) {
	line, err := t.r.ReadString('\n')
	return strings.TrimSuffix(line, "\n"), err
}

func (t *tcpConn) writeLine(s string) error {
	_, err := t.c.Write([]byte(s + "\n"))
	return err
}

func (t *tcpConn) close() { t.c.Close() }

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) readLine() (string, error) {
	_, msg, err := w.c.ReadMessage()
	return string(msg), err
}

func (w *wsConn) writeLine(s string) error {
	return w.c.WriteMessage(websocket.TextMessage, []byte(s))
}

func (w *wsConn) close() {
	w.c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	w.c.Close()
}

func dial() (conn, error) {
	switch *mode {
	case "tcp":
		c, err := net.Dial("tcp", *addr)
		if err != nil {
			return nil, err
		}
		return &tcpConn{c: c, r: bufio.NewReader(c)}, nil
	case "ws":
		u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/play"}
		c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{c: c}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", *mode)
}

func main() {
	flag.Parse()
	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger.SetLevel(level)

	var wg sync.WaitGroup
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			play(name, rand.New(rand.NewSource(time.Now().UnixNano()+int64(len(name)))))
		}(fmt.Sprintf("%s%d", *prefix, i))
	}
	wg.Wait()
}

func play(name string, rng *rand.Rand) {
	c, err := dial()
	if err != nil {
		logger.Error("%s: connect: %v", name, err)
		return
	}
	defer c.close()

	if err := c.writeLine(name); err != nil {
		logger.Error("%s: handshake: %v", name, err)
		return
	}
	logger.Info("%s joined, waiting for a room", name)

	id := -1
	for {
		line, err := c.readLine()
		if err != nil {
			logger.Info("%s: connection closed: %v", name, err)
			return
		}

		var msg room.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			logger.Warn("%s: bad line %q: %v", name, line, err)
			return
		}

		switch msg.State {
		case room.TypeStart:
			id = *msg.ID
			logger.Info("%s plays as snake %d", name, id)
		case room.TypePlaying:
			var b game.Board
			if err := json.Unmarshal(msg.Map, &b); err != nil {
				logger.Warn("%s: bad map: %v", name, err)
				return
			}
			cmd := choose(&b, id, rng)
			logger.Debug("%s: %v", name, cmd)
			if err := c.writeLine(cmd.String()); err != nil {
				logger.Error("%s: send: %v", name, err)
				return
			}
		case room.TypeDead:
		case room.TypeError:
			logger.Warn("%s: server error: %s", name, msg.Msg)
		case room.TypeDone:
			logger.Info("%s: game over", name)
		}
	}
}

// choose steers towards the doodah when it is one move away and otherwise
// picks a random move that does not hit anything.
func choose(b *game.Board, id int, rng *rand.Rand) game.Command {
	head, ok := findHead(b, id)
	if !ok {
		return game.Forward
	}

	dims := game.Dimensions{Width: b.Width, Height: b.Height}
	var safe []game.Command
	for _, cmd := range []game.Command{game.Forward, game.Left, game.Right} {
		s := game.Snake{Dir: turned(b.At(head.X, head.Y).Dir, cmd), Head: head}
		next := s.NextHead(dims)
		switch b.At(next.X, next.Y).Kind {
		case game.Doodah:
			return cmd
		case game.Blank:
			safe = append(safe, cmd)
		}
	}
	if len(safe) == 0 {
		return game.Forward
	}
	return safe[rng.Intn(len(safe))]
}

func turned(d game.Direction, cmd game.Command) game.Direction {
	switch cmd {
	case game.Left:
		return d.Left()
	case game.Right:
		return d.Right()
	}
	return d
}

func findHead(b *game.Board, id int) (game.Position, bool) {
	for i, t := range b.Tiles {
		if t.Kind == game.SnakeHead && t.ID == id {
			return game.Position{X: i % b.Width, Y: i / b.Width}, true
		}
	}
	return game.Position{}, false
}
