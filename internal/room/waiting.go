package room

import (
	"sort"

	"github.com/sasha-s/go-deadlock"

	"github.com/sakshamg567/snakearena/logger"
)

// Waiter is a named connection that has not been assigned to a game yet.
type Waiter struct {
	Addr   string
	Name   string
	stream Stream
}

// WaiterInfo is the read-only view of a waiter.
type WaiterInfo struct {
	Addr string `json:"addr"`
	Name string `json:"name"`
}

func (w *Waiter) info() WaiterInfo {
	return WaiterInfo{Addr: w.Addr, Name: w.Name}
}

func (w *Waiter) close() {
	if err := w.stream.Close(); err != nil {
		logger.Debug("closing waiter %s: %v", w.Addr, err)
	}
}

// WaitingList holds connections waiting for a room, keyed by address.
//
// When a room is involved its lock is always taken before the list's.
type WaitingList struct {
	mu      deadlock.Mutex
	waiters map[string]*Waiter
}

func NewWaitingList() *WaitingList {
	return &WaitingList{waiters: make(map[string]*Waiter)}
}

// Insert adds a connection to the list. It reports whether it displaced an
// existing waiter with the same address, whose stream is closed.
func (l *WaitingList) Insert(addr, name string, s Stream) bool {
	return l.insert(&Waiter{Addr: addr, Name: name, stream: s})
}

func (l *WaitingList) insert(w *Waiter) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	old, ok := l.waiters[w.Addr]
	if ok && old.stream != w.stream {
		old.close()
	}
	l.waiters[w.Addr] = w
	return ok
}

// Subscribe moves a waiter into the room's roster. If the room is not
// accepting players the waiter stays in the list.
func (l *WaitingList) Subscribe(addr string, r *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.waiters[addr]
	if !ok {
		return ErrNotWaiting
	}
	if r.phase != Waiting {
		return ErrRoomNotWaiting
	}

	delete(l.waiters, addr)
	if old, ok := r.waiting[addr]; ok && old.stream != w.stream {
		old.close()
	}
	r.waiting[addr] = w
	return nil
}

// Remove drops a waiter and closes its connection. It reports whether
// anything was removed.
func (l *WaitingList) Remove(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.waiters[addr]
	if !ok {
		return false
	}
	delete(l.waiters, addr)
	w.close()
	return true
}

// Clear drops every waiter.
func (l *WaitingList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for addr, w := range l.waiters {
		w.close()
		delete(l.waiters, addr)
	}
}

// Waiters lists the waiting connections sorted by address.
func (l *WaitingList) Waiters() []WaiterInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]WaiterInfo, 0, len(l.waiters))
	for _, w := range l.waiters {
		out = append(out, w.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// Len returns the number of waiters.
func (l *WaitingList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}
