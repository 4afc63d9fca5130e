package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakshamg567/snakearena/internal/game"
)

func newTestSession(t *testing.T, id int) (*Session, *testClient) {
	t.Helper()
	s, c := newPipe(t)
	sess := newSession(id, &Waiter{Addr: "a:1", Name: "alice", stream: s})
	t.Cleanup(sess.Abort)
	if got := *c.expect(t, TypeStart).ID; got != id {
		t.Fatalf("start id = %d, want %d", got, id)
	}
	return sess, c
}

func TestExchangeDeadDoesNotWait(t *testing.T) {
	sess, c := newTestSession(t, 3)

	cmd, err := sess.Exchange(context.Background(), mapMessage(TypeDead, []byte(`{}`)), false, 0)
	if err != nil || cmd != game.Forward {
		t.Fatalf("Exchange = %v, %v", cmd, err)
	}
	c.expect(t, TypeDead)
}

func TestExchangeUsesBufferedCommand(t *testing.T) {
	sess, c := newTestSession(t, 0)

	c.send(t, "Right\r")
	// give the read pump time to queue it
	time.Sleep(20 * time.Millisecond)

	cmd, err := sess.Exchange(context.Background(), mapMessage(TypePlaying, []byte(`{}`)), true, time.Second)
	if err != nil || cmd != game.Right {
		t.Fatalf("Exchange = %v, %v, want Right", cmd, err)
	}
	c.expect(t, TypePlaying)
}

func TestExchangeCancelled(t *testing.T) {
	sess, c := newTestSession(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c.msgs
		cancel()
	}()
	_, err := sess.Exchange(ctx, mapMessage(TypePlaying, []byte(`{}`)), true, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Exchange = %v, want context.Canceled", err)
	}
	if sess.Err() != nil {
		t.Fatalf("cancelling a tick closed the session: %v", sess.Err())
	}
}

func TestFinishSendsDone(t *testing.T) {
	sess, c := newTestSession(t, 0)
	sess.Finish()
	if last := c.waitClosed(t); last.State != TypeDone {
		t.Fatalf("last message %q, want done", last.State)
	}
	select {
	case <-sess.Done():
	default:
		t.Fatalf("session not done after Finish")
	}
	if !errors.Is(sess.Err(), ErrSessionClosed) {
		t.Fatalf("Err() = %v", sess.Err())
	}
}

func TestClientHangupFaultsExchange(t *testing.T) {
	sess, c := newTestSession(t, 0)
	c.conn.Close()

	_, err := sess.Exchange(context.Background(), mapMessage(TypePlaying, []byte(`{}`)), true, time.Second)
	if err == nil {
		t.Fatalf("Exchange succeeded on a closed connection")
	}
	<-sess.Done()
}
