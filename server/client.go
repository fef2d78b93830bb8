package main

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rhuanjl/SphereLibs-sub000/input"
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 4096
	sendBufSize        = 256
	maxMessagesPerSec  = 50
	maxSessionNameLen  = 30
	defaultSessionName = "Village"
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	log        logrus.FieldLogger
	// session state, owned by ReadPump until unregister
	sessionID  string
	controls   bool
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
		log:        hub.log.WithField("remote", remoteAddr),
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("ws error")
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.log.Warn("rate limit exceeded, disconnecting")
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.WithError(err).Error("marshal error")
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
// Prefixes with 0xFF marker byte so WritePump can distinguish from text
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.WithError(err).Debug("unmarshal error")
		return
	}

	switch env.T {
	case MsgList:
		c.handleList()
	case MsgCreate:
		c.handleCreate(env.D)
	case MsgWatch:
		c.handleWatch(env.D)
	case MsgControl:
		c.handleControl(env.D)
	case MsgKey:
		c.handleKey(env.D)
	case MsgLeave:
		c.detach()
	}
}

func (c *Client) handleList() {
	c.SendJSON(Envelope{T: MsgSessions, Data: c.hub.sessions.ListSessions()})
}

func (c *Client) handleCreate(data json.RawMessage) {
	var msg CreateMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
	}
	name := truncate(msg.Name, maxSessionNameLen)
	if name == "" {
		name = defaultSessionName
	}

	sess, err := c.hub.sessions.CreateSession(name)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: map[string]string{"sid": sess.ID}})
}

func (c *Client) lookup(sid string) *Session {
	if !ValidSessionID(sid) {
		return nil
	}
	return c.hub.sessions.GetSession(sid)
}

func (c *Client) handleWatch(data json.RawMessage) {
	var msg WatchMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	sess := c.lookup(msg.SID)
	if sess == nil {
		c.sendError("session not found")
		return
	}
	c.detach()
	// Reply before subscribing so the confirmation precedes any frame
	c.SendJSON(Envelope{T: MsgWatching, Data: sess.Game.Layout()})
	sess.Game.AddWatcher(c)
	c.sessionID = sess.ID
	c.hub.sessions.MarkActive(sess.ID)
}

func (c *Client) handleControl(data json.RawMessage) {
	var msg ControlMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.hub.auth == nil {
		c.sendError("control disabled")
		return
	}
	sess := c.lookup(msg.SID)
	if sess == nil {
		c.sendError("session not found")
		return
	}
	if err := c.hub.auth.ValidateControlToken(msg.Token, sess.ID); err != nil {
		c.log.WithError(err).Info("control refused")
		c.sendError("invalid token")
		return
	}
	if c.sessionID != sess.ID {
		c.detach()
		c.SendJSON(Envelope{T: MsgWatching, Data: sess.Game.Layout()})
	}
	c.SendJSON(Envelope{T: MsgControlOK, Data: map[string]string{"sid": sess.ID}})
	sess.Game.SetController(c)
	c.sessionID = sess.ID
	c.controls = true
	c.hub.sessions.MarkActive(sess.ID)
	c.log.WithField("sid", sess.ID).Info("controller attached")
}

func (c *Client) handleKey(data json.RawMessage) {
	if !c.controls {
		return
	}
	var msg KeyMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	k, err := input.ParseKey(msg.K)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	sess := c.hub.sessions.GetSession(c.sessionID)
	if sess == nil {
		return
	}
	if !sess.Game.HandleKey(c, k, msg.Down) {
		// Another client took over
		c.controls = false
		c.sendError("not in control")
	}
}

// detach leaves the current session, releasing control if held
func (c *Client) detach() {
	if c.sessionID == "" {
		return
	}
	if sess := c.hub.sessions.GetSession(c.sessionID); sess != nil {
		sess.Game.RemoveWatcher(c)
		c.hub.sessions.MarkActive(sess.ID)
	}
	c.sessionID = ""
	c.controls = false
}
