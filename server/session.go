package main

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const maxSessions = 100

// SessionIdleTimeout is how long a session without watchers survives
var SessionIdleTimeout = 60 * time.Second

var ErrTooManySessions = errors.New("too many active sessions")

// Session is one hosted world that clients can watch and control
type Session struct {
	ID        string
	Name      string
	Game      *Game
	CreatedAt time.Time
}

// SessionManager handles creation, lookup and reaping of sessions
type SessionManager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	lastActive map[string]time.Time
	tickRate   int
	telemetry  *Telemetry
	log        logrus.FieldLogger
}

// NewSessionManager creates a new SessionManager. telemetry may be nil.
func NewSessionManager(tickRate int, telemetry *Telemetry, log logrus.FieldLogger) *SessionManager {
	return &SessionManager{
		sessions:   make(map[string]*Session),
		lastActive: make(map[string]time.Time),
		tickRate:   tickRate,
		telemetry:  telemetry,
		log:        log.WithField("component", "sessions"),
	}
}

// CreateSession builds a world and starts its tick loop
func (sm *SessionManager) CreateSession(name string) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= maxSessions {
		return nil, ErrTooManySessions
	}

	id := NewSessionID()
	game, err := NewGame(id, sm.tickRate, sm.telemetry, sm.log)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:        id,
		Name:      name,
		Game:      game,
		CreatedAt: time.Now(),
	}
	sm.sessions[id] = sess
	sm.lastActive[id] = sess.CreatedAt
	go game.Run()
	sm.log.WithFields(logrus.Fields{"sid": id, "name": name}).Info("session created")
	return sess, nil
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// MarkActive postpones reaping of a session
func (sm *SessionManager) MarkActive(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, ok := sm.sessions[id]; ok {
		sm.lastActive[id] = time.Now()
	}
}

// ListSessions returns info about all active sessions, oldest first
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	list := make([]SessionInfo, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		list = append(list, SessionInfo{
			ID:       sess.ID,
			Name:     sess.Name,
			Watchers: sess.Game.WatcherCount(),
			Tick:     sess.Game.Tick(),
		})
	}
	// ULIDs sort by creation time
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Count returns the number of sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Reap stops sessions that have had no watchers for SessionIdleTimeout
func (sm *SessionManager) Reap(now time.Time) int {
	sm.mu.Lock()
	var idle []*Session
	for id, sess := range sm.sessions {
		if sess.Game.WatcherCount() > 0 {
			sm.lastActive[id] = now
			continue
		}
		if now.Sub(sm.lastActive[id]) >= SessionIdleTimeout {
			idle = append(idle, sess)
			delete(sm.sessions, id)
			delete(sm.lastActive, id)
		}
	}
	sm.mu.Unlock()

	for _, sess := range idle {
		sess.Game.Stop()
		sm.log.WithField("sid", sess.ID).Info("idle session reaped")
	}
	return len(idle)
}

// RunReaper reaps idle sessions until stop is closed
func (sm *SessionManager) RunReaper(stop <-chan struct{}) {
	ticker := time.NewTicker(max(SessionIdleTimeout/4, 10*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			sm.Reap(now)
		case <-stop:
			return
		}
	}
}

// CloseAll stops every session
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*Session)
	clear(sm.lastActive)
	sm.mu.Unlock()

	for _, sess := range sessions {
		sess.Game.Stop()
	}
}
