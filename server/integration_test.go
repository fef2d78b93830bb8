package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rhuanjl/SphereLibs-sub000/demo"
)

const testAdminPassword = "letmein"

// ---------- helpers ----------

// startTestServer spins up an httptest.Server with a Hub backed by a temp
// database, and returns the server, its WebSocket URL and the hub.
func startTestServer(t *testing.T) (*httptest.Server, string, *Hub) {
	t.Helper()

	log, _ := test.NewNullLogger()
	db := openTestDB(t)
	auth, err := NewAuth(db, testAdminPassword)
	if err != nil {
		t.Fatal(err)
	}
	telemetry := NewTelemetry(db, log)
	sessions := NewSessionManager(DefaultTickRate, telemetry, log)
	hub := NewHub(sessions, auth, db, "http://example.test", log)
	go hub.Run()

	srv := httptest.NewServer(SetupRoutes(hub, ""))
	t.Cleanup(func() {
		srv.Close()
		sessions.CloseAll()
		telemetry.Stop()
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return srv, wsURL, hub
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads JSON messages, skipping frames.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return env
	}
}

// readFrame reads the next msgpack frame, skipping JSON messages.
func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		var f Frame
		if err := msgpack.Unmarshal(raw, &f); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return f
	}
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	raw, _ := json.Marshal(Envelope{T: msgType, Data: data})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// createSession creates a session and returns its ID.
func createSession(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()
	sendMsg(t, conn, MsgCreate, map[string]string{"name": name})
	created := readEnvelope(t, conn)
	if created.T != MsgCreated {
		t.Fatalf("expected created, got %s", created.T)
	}
	return dataMap(t, created)["sid"].(string)
}

// requestToken asks the HTTP API for a control token.
func requestToken(t *testing.T, srv *httptest.Server, sid, password string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/token?sid="+sid, nil)
	req.SetBasicAuth("admin", password)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	return resp, body["token"]
}

// ---------- session IDs ----------

func TestSessionIDsAreULIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		if !ValidSessionID(id) || !sessionPathRe.MatchString("/"+id) {
			t.Fatalf("NewSessionID() = %q is not a valid ULID", id)
		}
		if seen[id] {
			t.Fatalf("duplicate session ID generated: %s", id)
		}
		seen[id] = true
	}
	if ValidSessionID("not-a-session") {
		t.Error("garbage should not validate")
	}
}

// ---------- session list / create / watch ----------

func TestListSessions(t *testing.T) {
	_, wsURL, _ := startTestServer(t)
	c := dialWS(t, wsURL)

	sendMsg(t, c, MsgList, nil)
	listMsg := readEnvelope(t, c)
	if listMsg.T != MsgSessions {
		t.Fatalf("expected sessions, got %s", listMsg.T)
	}
	raw, _ := json.Marshal(listMsg.Data)
	var sessions []SessionInfo
	json.Unmarshal(raw, &sessions)
	if len(sessions) != 0 {
		t.Errorf("expected 0 sessions, got %d", len(sessions))
	}

	sid := createSession(t, c, "Meadow")
	sendMsg(t, c, MsgList, nil)
	raw, _ = json.Marshal(readEnvelope(t, c).Data)
	json.Unmarshal(raw, &sessions)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].ID != sid || sessions[0].Name != "Meadow" {
		t.Errorf("unexpected session info %+v", sessions[0])
	}
}

func TestCreateDefaultsName(t *testing.T) {
	_, wsURL, hub := startTestServer(t)
	c := dialWS(t, wsURL)
	sid := createSession(t, c, "")
	if got := hub.sessions.GetSession(sid).Name; got != defaultSessionName {
		t.Errorf("expected default name %q, got %q", defaultSessionName, got)
	}
}

func TestWatchStreamsFrames(t *testing.T) {
	_, wsURL, _ := startTestServer(t)
	c := dialWS(t, wsURL)
	sid := createSession(t, c, "Meadow")

	sendMsg(t, c, MsgWatch, map[string]string{"sid": sid})
	watching := readEnvelope(t, c)
	if watching.T != MsgWatching {
		t.Fatalf("expected watching, got %s", watching.T)
	}
	d := dataMap(t, watching)
	if d["sid"] != sid || d["w"].(float64) != demo.Width || d["h"].(float64) != demo.Height {
		t.Errorf("unexpected layout %v", d)
	}

	f1 := readFrame(t, c)
	f2 := readFrame(t, c)
	if f2.Tick <= f1.Tick {
		t.Errorf("frame ticks should increase, got %d then %d", f1.Tick, f2.Tick)
	}
	if hero := player(f2); hero == nil || hero.X != 3*demo.Tile {
		t.Errorf("expected the idle hero at its spawn point, got %+v", hero)
	}
}

func TestWatchUnknownSession(t *testing.T) {
	_, wsURL, _ := startTestServer(t)
	c := dialWS(t, wsURL)

	for _, sid := range []string{NewSessionID(), "bogus"} {
		sendMsg(t, c, MsgWatch, map[string]string{"sid": sid})
		if env := readEnvelope(t, c); env.T != MsgError {
			t.Errorf("watch %q: expected error, got %s", sid, env.T)
		}
	}
}

// ---------- control ----------

func TestTokenEndpoint(t *testing.T) {
	srv, wsURL, _ := startTestServer(t)
	c := dialWS(t, wsURL)
	sid := createSession(t, c, "Meadow")

	resp, err := http.Post(srv.URL+"/api/token?sid="+sid, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", resp.StatusCode)
	}

	if resp, _ := requestToken(t, srv, sid, "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", resp.StatusCode)
	}
	if resp, _ := requestToken(t, srv, NewSessionID(), testAdminPassword); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session: status = %d, want 404", resp.StatusCode)
	}
	resp, token := requestToken(t, srv, sid, testAdminPassword)
	if resp.StatusCode != http.StatusOK || token == "" {
		t.Errorf("expected a token, got status %d", resp.StatusCode)
	}

	get, err := http.Get(srv.URL + "/api/token?sid=" + sid)
	if err != nil {
		t.Fatal(err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/token status = %d, want 405", get.StatusCode)
	}
}

func TestControlMovesHero(t *testing.T) {
	srv, wsURL, _ := startTestServer(t)
	c := dialWS(t, wsURL)
	sid := createSession(t, c, "Meadow")
	_, token := requestToken(t, srv, sid, testAdminPassword)

	sendMsg(t, c, MsgControl, ControlMsg{SID: sid, Token: token})
	if env := readEnvelope(t, c); env.T != MsgWatching {
		t.Fatalf("expected watching, got %s", env.T)
	}
	if env := readEnvelope(t, c); env.T != MsgControlOK {
		t.Fatalf("expected control_ok, got %s", env.T)
	}

	sendMsg(t, c, MsgKey, KeyMsg{K: "right", Down: true})
	deadline := time.Now().Add(2 * time.Second)
	for {
		hero := player(readFrame(t, c))
		if hero != nil && hero.X > 3*demo.Tile {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("hero never moved east")
		}
	}
	sendMsg(t, c, MsgKey, KeyMsg{K: "right", Down: false})
}

func TestControlRejectsBadToken(t *testing.T) {
	srv, wsURL, _ := startTestServer(t)
	c := dialWS(t, wsURL)
	sid := createSession(t, c, "Meadow")
	other := createSession(t, c, "Lake")
	_, token := requestToken(t, srv, other, testAdminPassword)

	sendMsg(t, c, MsgControl, ControlMsg{SID: sid, Token: token})
	env := readEnvelope(t, c)
	if env.T != MsgError || dataMap(t, env)["msg"] != "invalid token" {
		t.Errorf("expected invalid token error, got %s %v", env.T, env.Data)
	}
}

func TestWatcherKeysIgnored(t *testing.T) {
	_, wsURL, _ := startTestServer(t)
	c := dialWS(t, wsURL)
	sid := createSession(t, c, "Meadow")
	sendMsg(t, c, MsgWatch, map[string]string{"sid": sid})
	readEnvelope(t, c)

	sendMsg(t, c, MsgKey, KeyMsg{K: "right", Down: true})
	var f Frame
	for i := 0; i < 6; i++ {
		f = readFrame(t, c)
	}
	if hero := player(f); hero == nil || hero.X != 3*demo.Tile {
		t.Errorf("watcher keys should not move the hero, got %+v", hero)
	}
}

// ---------- HTTP API ----------

func TestQRCodeEndpoint(t *testing.T) {
	srv, wsURL, _ := startTestServer(t)
	c := dialWS(t, wsURL)
	sid := createSession(t, c, "Meadow")

	resp, err := http.Get(srv.URL + "/api/qr?sid=" + sid)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	missing, err := http.Get(srv.URL + "/api/qr?sid=" + NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session: status = %d, want 404", missing.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, _, hub := startTestServer(t)
	sid := NewSessionID()
	if err := hub.db.InsertStats([]StatsSample{
		{SessionID: sid, Tick: 300, Moves: 10, At: time.Now()},
		{SessionID: sid, Tick: 600, Moves: 25, Blocked: 2, At: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/stats?sid=" + sid + "&limit=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var rows []StatsRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Tick != 600 || rows[0].Blocked != 2 {
		t.Errorf("expected the newest sample only, got %+v", rows)
	}

	bad, err := http.Get(srv.URL + "/api/stats?sid=bogus")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("bad sid: status = %d, want 400", bad.StatusCode)
	}
}

// ---------- reaping ----------

func TestIdleSessionsReaped(t *testing.T) {
	_, wsURL, hub := startTestServer(t)
	c := dialWS(t, wsURL)
	idle := createSession(t, c, "Empty")
	watched := createSession(t, c, "Busy")
	sendMsg(t, c, MsgWatch, map[string]string{"sid": watched})
	readEnvelope(t, c)

	if n := hub.sessions.Reap(time.Now().Add(SessionIdleTimeout + time.Second)); n != 1 {
		t.Fatalf("expected 1 session reaped, got %d", n)
	}
	if hub.sessions.GetSession(idle) != nil {
		t.Error("idle session should be gone")
	}
	if hub.sessions.GetSession(watched) == nil {
		t.Error("watched session should survive")
	}

	sendMsg(t, c, MsgLeave, nil)
	deadline := time.Now().Add(2 * time.Second)
	for hub.sessions.GetSession(watched).Game.WatcherCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("leave did not unsubscribe")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := hub.sessions.Reap(time.Now().Add(2*SessionIdleTimeout + time.Second)); n != 1 {
		t.Errorf("expected the left session to be reaped, got %d", n)
	}
}
