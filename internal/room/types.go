package room

import (
	"encoding/json"
	"errors"
)

// Message states sent to game clients, one JSON object per line.
const (
	TypeStart   = "start"
	TypePlaying = "playing"
	TypeDead    = "dead"
	TypeError   = "error"
	TypeDone    = "done"
)

// Message is a server to client protocol line.
type Message struct {
	State string          `json:"state"`
	ID    *int            `json:"id,omitempty"`
	Map   json.RawMessage `json:"map,omitempty"`
	Msg   string          `json:"msg,omitempty"`
}

func encode(m Message) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		// only reachable with an invalid Map payload
		panic("room: encode message: " + err.Error())
	}
	return data
}

func startMessage(id int) []byte {
	return encode(Message{State: TypeStart, ID: &id})
}

func mapMessage(state string, snapshot json.RawMessage) []byte {
	return encode(Message{State: state, Map: snapshot})
}

func errorMessage(msg string) []byte {
	return encode(Message{State: TypeError, Msg: msg})
}

var doneMessage = encode(Message{State: TypeDone})

// Stream is a line-oriented duplex connection to a game client. ReadLine
// returns a line without its terminator. Close must unblock a pending
// ReadLine.
type Stream interface {
	ReadLine() (string, error)
	WriteLine(line []byte) error
	Close() error
}

var (
	ErrRoomNotWaiting = errors.New("provided room is already in progress")
	ErrRoomEmpty      = errors.New("room has no players")
	ErrNotWaiting     = errors.New("address not in wait queue")
	ErrNotInRoom      = errors.New("address not in room")
	ErrSessionClosed  = errors.New("session closed")
)
