package room

import (
	"errors"
	"testing"
	"time"
)

const tinyLayout = `
#.#.#
`

func TestWaitingListInsertReplaces(t *testing.T) {
	l := NewWaitingList()
	first, firstClient := newPipe(t)
	second, _ := newPipe(t)

	if l.Insert("a:1", "alice", first) {
		t.Fatalf("first insert reported a replacement")
	}
	if !l.Insert("a:1", "alice2", second) {
		t.Fatalf("second insert did not report a replacement")
	}

	firstClient.waitClosed(t)

	got := l.Waiters()
	if len(got) != 1 || got[0].Name != "alice2" {
		t.Fatalf("Waiters() = %+v, want only alice2", got)
	}
}

func TestWaitingListSortedAndRemove(t *testing.T) {
	l := NewWaitingList()
	for _, addr := range []string{"c:3", "a:1", "b:2"} {
		s, _ := newPipe(t)
		l.Insert(addr, "p-"+addr, s)
	}

	got := l.Waiters()
	want := []string{"a:1", "b:2", "c:3"}
	for i, w := range got {
		if w.Addr != want[i] {
			t.Fatalf("Waiters()[%d] = %s, want %s", i, w.Addr, want[i])
		}
	}

	if !l.Remove("b:2") {
		t.Fatalf("Remove(b:2) = false")
	}
	if l.Remove("b:2") {
		t.Fatalf("second Remove(b:2) = true")
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("Len() after Clear = %d", l.Len())
	}
}

func TestRemoveClosesStream(t *testing.T) {
	l := NewWaitingList()
	s, c := newPipe(t)
	l.Insert("a:1", "alice", s)
	l.Remove("a:1")
	c.waitClosed(t)
}

func TestSubscribeUnknownAddress(t *testing.T) {
	l := NewWaitingList()
	r := NewRoom(mustTemplate(t, tinyLayout), 0)
	if err := l.Subscribe("nobody:1", r); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("Subscribe = %v, want ErrNotWaiting", err)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	l := NewWaitingList()
	r := NewRoom(mustTemplate(t, tinyLayout), 0)
	s, _ := newPipe(t)
	l.Insert("a:1", "alice", s)

	if err := l.Subscribe("a:1", r); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("waiter still listed after Subscribe")
	}
	if snap := r.Snapshot(); len(snap.Waiting) != 1 || snap.Waiting[0].Name != "alice" {
		t.Fatalf("room roster = %+v", snap.Waiting)
	}

	if err := r.Unsubscribe("a:1", l); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if l.Len() != 1 || r.Members() != 0 {
		t.Fatalf("after Unsubscribe: list %d, room %d", l.Len(), r.Members())
	}
	if err := r.Unsubscribe("a:1", l); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("second Unsubscribe = %v, want ErrNotInRoom", err)
	}
}

func TestSubscribeToRunningRoomKeepsWaiter(t *testing.T) {
	l := NewWaitingList()
	r := NewRoom(mustTemplate(t, tinyLayout), 0)
	join(t, l, r, "a:1", "alice")
	if err := r.Start(testContext(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Reset()

	s, _ := newPipe(t)
	l.Insert("b:2", "bob", s)
	if err := l.Subscribe("b:2", r); !errors.Is(err, ErrRoomNotWaiting) {
		t.Fatalf("Subscribe = %v, want ErrRoomNotWaiting", err)
	}
	if l.Len() != 1 {
		t.Fatalf("waiter was dropped from the list")
	}
	if err := r.Unsubscribe("b:2", l); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("Unsubscribe = %v, want ErrNotInRoom", err)
	}
}

func TestResetClosesWaitingRoster(t *testing.T) {
	l := NewWaitingList()
	r := NewRoom(mustTemplate(t, tinyLayout), time.Second)
	c := join(t, l, r, "a:1", "alice")

	r.Reset()
	c.waitClosed(t)
	if r.Members() != 0 || r.Phase() != Waiting {
		t.Fatalf("after Reset: members %d, phase %v", r.Members(), r.Phase())
	}
}
