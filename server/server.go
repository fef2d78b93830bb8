package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

// sessionPathRe matches /<ulid> links handed out by the QR endpoint
var sessionPathRe = regexp.MustCompile(`^/[0-9A-HJKMNP-TV-Z]{26}$`)

const (
	qrSize          = 256
	defaultStatsLen = 20
	maxStatsLen     = 500
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// SetupRoutes configures HTTP routes. An empty clientDir serves no static
// files.
func SetupRoutes(hub *Hub, clientDir string) *http.ServeMux {
	mux := http.NewServeMux()

	if clientDir != "" {
		// Serve static files with no-cache so browsers always revalidate
		fs := http.FileServer(http.Dir(clientDir))
		mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache")
			// SPA: serve index.html for root and session paths
			if r.URL.Path == "/" || sessionPathRe.MatchString(r.URL.Path) {
				http.ServeFile(w, r, filepath.Join(clientDir, "index.html"))
				return
			}
			fs.ServeHTTP(w, r)
		}))
	}

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.WithError(err).Warn("upgrade error")
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		if hub.auth == nil {
			http.Error(w, "control disabled", http.StatusServiceUnavailable)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="world"`)
			http.Error(w, "credentials required", http.StatusUnauthorized)
			return
		}
		if err := hub.auth.CheckAdmin(user, pass, extractIP(r)); err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, ErrRateLimited) {
				status = http.StatusTooManyRequests
			}
			hub.log.WithField("remote", extractIP(r)).Warn("token request refused")
			http.Error(w, err.Error(), status)
			return
		}
		sid := r.URL.Query().Get("sid")
		if !ValidSessionID(sid) || hub.sessions.GetSession(sid) == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		token, err := hub.auth.IssueControlToken(sid)
		if err != nil {
			hub.log.WithError(err).Error("signing token")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"sid": sid, "token": token})
	})

	mux.HandleFunc("GET /api/qr", func(w http.ResponseWriter, r *http.Request) {
		sid := r.URL.Query().Get("sid")
		if !ValidSessionID(sid) || hub.sessions.GetSession(sid) == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		png, err := qrcode.Encode(fmt.Sprintf("%s/%s", hub.publicURL, sid), qrcode.Medium, qrSize)
		if err != nil {
			hub.log.WithError(err).Error("encoding qr code")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	})

	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		if hub.db == nil {
			http.Error(w, "telemetry disabled", http.StatusServiceUnavailable)
			return
		}
		sid := r.URL.Query().Get("sid")
		if !ValidSessionID(sid) {
			http.Error(w, "bad session id", http.StatusBadRequest)
			return
		}
		limit := defaultStatsLen
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxStatsLen)
		}
		rows, err := hub.db.SessionStats(sid, limit)
		if err != nil {
			hub.log.WithError(err).Error("reading stats")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []StatsRow{}
		}
		writeJSON(w, http.StatusOK, rows)
	})

	return mux
}
