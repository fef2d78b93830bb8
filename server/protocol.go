package main

import "encoding/json"

// Client -> Server message types
const (
	MsgList    = "list"    // list sessions
	MsgCreate  = "create"  // create session
	MsgWatch   = "watch"   // subscribe to a session's frames
	MsgControl = "control" // take control of the session's hero
	MsgKey     = "key"     // key down/up, controllers only
	MsgLeave   = "leave"
)

// Server -> Client message types
const (
	MsgSessions  = "sessions"
	MsgCreated   = "created"
	MsgWatching  = "watching"
	MsgControlOK = "control_ok"
	MsgError     = "error"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// CreateMsg asks for a new session
type CreateMsg struct {
	Name string `json:"name"`
}

// WatchMsg subscribes to a session
type WatchMsg struct {
	SID string `json:"sid"`
}

// ControlMsg presents a control token for a session
type ControlMsg struct {
	SID   string `json:"sid"`
	Token string `json:"token"`
}

// KeyMsg is a key transition. K is a key name ("up", "space") or a single
// character.
type KeyMsg struct {
	K    string `json:"k"`
	Down bool   `json:"down"`
}

// SessionInfo is used in the session list
type SessionInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Watchers int    `json:"watchers"`
	Tick     int64  `json:"tick"`
}

// WatchingMsg confirms a subscription and describes the map
type WatchingMsg struct {
	SID    string  `json:"sid"`
	Width  int     `json:"w"`
	Height int     `json:"h"`
	Tile   float64 `json:"tile"`
	Layers int     `json:"layers"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// ActorState is one actor in a render frame
type ActorState struct {
	ID     int     `msgpack:"id"`
	Name   string  `msgpack:"n"`
	Sprite string  `msgpack:"s,omitempty"`
	X      float64 `msgpack:"x"`
	Y      float64 `msgpack:"y"`
	Facing int     `msgpack:"f"`
	Frame  int     `msgpack:"fr"`
	Player bool    `msgpack:"p,omitempty"`
}

// Frame is the binary state broadcast. Layers are in draw order, back to
// front. Edge is the map side the hero last tried to walk off, or -1.
type Frame struct {
	Tick   int64          `msgpack:"tick"`
	Layers [][]ActorState `msgpack:"layers"`
	Edge   int            `msgpack:"edge"`
}
