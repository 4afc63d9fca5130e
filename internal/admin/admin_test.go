package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/sakshamg567/snakearena/internal/results"
	"github.com/sakshamg567/snakearena/internal/room"
	"github.com/sakshamg567/snakearena/logger"
)

func init() {
	logger.EnableLogging(false)
}

// idleStream never sends anything and accepts every write.
type idleStream struct {
	once   sync.Once
	closed chan struct{}
}

func newIdleStream() *idleStream {
	return &idleStream{closed: make(chan struct{})}
}

func (s *idleStream) ReadLine() (string, error) {
	<-s.closed
	return "", io.EOF
}

func (s *idleStream) WriteLine([]byte) error {
	select {
	case <-s.closed:
		return errors.New("closed")
	default:
		return nil
	}
}

func (s *idleStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

const dotLayout = "@name Dot\n.\n"

func newTestApp(t *testing.T) (*fiber.App, *room.RoomManager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	rm, err := room.NewRoomManager(ctx, nil, 0, nil)
	if err != nil {
		t.Fatalf("NewRoomManager: %v", err)
	}
	t.Cleanup(func() {
		rm.Shutdown()
		cancel()
	})
	return NewApp(rm, nil), rm
}

type reply struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Error   string `json:"error"`
	ID      int    `json:"id"`
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func callReply(t *testing.T, app *fiber.App, method, path, body string) (int, reply) {
	t.Helper()
	status, data := call(t, app, method, path, body)
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("%s %s: bad reply %s", method, path, data)
	}
	return status, r
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)
	status, body := call(t, app, http.MethodGet, "/", "")
	if status != http.StatusOK || string(body) != "ok" {
		t.Fatalf("GET / = %d %q", status, body)
	}
}

func TestRoomLifecycle(t *testing.T) {
	app, rm := newTestApp(t)

	status, r := callReply(t, app, http.MethodPost, "/api/rooms", dotLayout)
	if status != http.StatusCreated || !r.OK || r.ID != 0 {
		t.Fatalf("add room = %d %+v", status, r)
	}

	rm.Waiting.Insert("10.0.0.1:4000", "alice", newIdleStream())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"start empty room", http.MethodPost, "/api/rooms/0/start", "", http.StatusConflict},
		{"unknown room", http.MethodPost, "/api/rooms/7/start", "", http.StatusNotFound},
		{"non-numeric room", http.MethodGet, "/api/rooms/abc", "", http.StatusNotFound},
		{"malformed body", http.MethodPost, "/api/rooms/0/subscribe", "{", http.StatusBadRequest},
		{"missing waiter", http.MethodPost, "/api/rooms/0/subscribe", "{}", http.StatusBadRequest},
		{"unknown waiter", http.MethodPost, "/api/rooms/0/subscribe", `{"waiter":"x:1"}`, http.StatusNotFound},
		{"subscribe", http.MethodPost, "/api/rooms/0/subscribe", `{"waiter":"10.0.0.1:4000"}`, http.StatusOK},
		{"unsubscribe", http.MethodPost, "/api/rooms/0/unsubscribe", `{"waiter":"10.0.0.1:4000"}`, http.StatusOK},
		{"unsubscribe again", http.MethodPost, "/api/rooms/0/unsubscribe", `{"waiter":"10.0.0.1:4000"}`, http.StatusNotFound},
		{"subscribe back", http.MethodPost, "/api/rooms/0/subscribe", `{"waiter":"10.0.0.1:4000"}`, http.StatusOK},
		{"start", http.MethodPost, "/api/rooms/0/start", "", http.StatusOK},
		{"start twice", http.MethodPost, "/api/rooms/0/start", "", http.StatusConflict},
		{"reset", http.MethodPost, "/api/rooms/0/reset", "", http.StatusOK},
		{"reset idle room", http.MethodPost, "/api/rooms/0/reset", "", http.StatusOK},
	}

	for _, tt := range tests {
		status, r := callReply(t, app, tt.method, tt.path, tt.body)
		if status != tt.status {
			t.Fatalf("%s: status %d (%+v), want %d", tt.name, status, r, tt.status)
		}
		if r.OK != (tt.status == http.StatusOK) {
			t.Fatalf("%s: ok = %v", tt.name, r.OK)
		}
		if !r.OK && r.Error == "" {
			t.Fatalf("%s: failure without error text", tt.name)
		}
	}
}

func TestRoomViews(t *testing.T) {
	app, rm := newTestApp(t)
	callReply(t, app, http.MethodPost, "/api/rooms", dotLayout)

	rm.Waiting.Insert("10.0.0.1:4000", "alice", newIdleStream())
	callReply(t, app, http.MethodPost, "/api/rooms/0/subscribe", `{"waiter":"10.0.0.1:4000"}`)

	_, data := call(t, app, http.MethodGet, "/api/rooms", "")
	var rooms []room.RoomSummary
	if err := json.Unmarshal(data, &rooms); err != nil {
		t.Fatalf("decode rooms: %v (%s)", err, data)
	}
	if len(rooms) != 1 || rooms[0].Name != "Dot" || rooms[0].Members != 1 {
		t.Fatalf("rooms = %+v", rooms)
	}

	_, data = call(t, app, http.MethodGet, "/api/rooms/0", "")
	var snap struct {
		Name    string `json:"name"`
		State   string `json:"state"`
		Waiting []struct {
			Addr string `json:"addr"`
			Name string `json:"name"`
		} `json:"waiting"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.State != "Waiting" || len(snap.Waiting) != 1 || snap.Waiting[0].Name != "alice" {
		t.Fatalf("snapshot = %s", data)
	}

	status, data := call(t, app, http.MethodGet, "/api/rooms/0/history", "")
	if status != http.StatusOK || strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("history = %d %s", status, data)
	}
}

func TestAddRoomRejectsBadLayout(t *testing.T) {
	app, _ := newTestApp(t)
	for _, body := range []string{"", ".\n", "@name X\n.x.\n", "@name X\n..\n.\n"} {
		status, r := callReply(t, app, http.MethodPost, "/api/rooms", body)
		if status != http.StatusBadRequest || r.OK {
			t.Errorf("layout %q: %d %+v", body, status, r)
		}
	}
}

func TestWaiters(t *testing.T) {
	app, rm := newTestApp(t)
	rm.Waiting.Insert("10.0.0.2:1", "bob", newIdleStream())
	rm.Waiting.Insert("10.0.0.1:1", "alice", newIdleStream())
	rm.Waiting.Insert("[::1]:9", "carol", newIdleStream())

	_, data := call(t, app, http.MethodGet, "/api/waiters", "")
	var ws []room.WaiterInfo
	if err := json.Unmarshal(data, &ws); err != nil {
		t.Fatalf("decode waiters: %v", err)
	}
	if len(ws) != 3 || ws[0].Addr != "10.0.0.1:1" {
		t.Fatalf("waiters = %+v", ws)
	}

	path := "/api/waiters/" + url.PathEscape("[::1]:9")
	if status, r := callReply(t, app, http.MethodDelete, path, ""); status != http.StatusOK {
		t.Fatalf("remove = %d %+v", status, r)
	}
	if status, _ := callReply(t, app, http.MethodDelete, path, ""); status != http.StatusNotFound {
		t.Fatalf("second remove = %d", status)
	}

	status, r := callReply(t, app, http.MethodDelete, "/api/waiters", "")
	if status != http.StatusOK || r.Message != "removed 2 waiters" {
		t.Fatalf("clear = %d %+v", status, r)
	}
	if rm.Waiting.Len() != 0 {
		t.Fatalf("waiters left after clear")
	}
}

type stubResults struct {
	list []results.Result
	asked int
}

func (s *stubResults) Recent(_ context.Context, n int) ([]results.Result, error) {
	s.asked = n
	if n < len(s.list) {
		return s.list[:n], nil
	}
	return s.list, nil
}

func TestRecentResults(t *testing.T) {
	app, _ := newTestApp(t)
	if status, _ := callReply(t, app, http.MethodGet, "/api/results", ""); status != http.StatusNotFound {
		t.Fatalf("results without a source = %d, want 404", status)
	}

	rm, err := room.NewRoomManager(context.Background(), nil, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	src := &stubResults{list: []results.Result{{RunID: "b", Room: "Large"}, {RunID: "a", Room: "Simple"}}}
	app = NewApp(rm, src)

	_, data := call(t, app, http.MethodGet, "/api/results?n=1", "")
	var got []results.Result
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v (%s)", err, data)
	}
	if len(got) != 1 || got[0].RunID != "b" || src.asked != 1 {
		t.Fatalf("results = %+v, asked %d", got, src.asked)
	}

	call(t, app, http.MethodGet, "/api/results", "")
	if src.asked != defaultRecent {
		t.Fatalf("default count = %d", src.asked)
	}

	if status, _ := callReply(t, app, http.MethodGet, "/api/results?n=0", ""); status != http.StatusBadRequest {
		t.Fatalf("n=0 = %d, want 400", status)
	}
}
