package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenExpiry       = 12 * time.Hour
	adminUser         = "admin"
	tokenRateWindow   = 60 * time.Second
	maxTokenAttempts  = 10
	jwtSecretSetting  = "jwt_secret"
	controlTokenScope = "control"
)

// bcryptCost is a variable so tests can hash cheaply
var bcryptCost = 12

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrRateLimited    = errors.New("too many attempts, try again later")
	ErrInvalidToken   = errors.New("invalid control token")
)

// ControlClaims grant control of one session's hero
type ControlClaims struct {
	SID   string `json:"sid"`
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Auth checks the admin password and issues control tokens
type Auth struct {
	jwtSecret []byte
	adminHash []byte

	// Rate limiting for token requests (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth hashes the admin password and loads the signing secret from db.
// A nil db keeps the secret in memory only.
func NewAuth(db *DB, adminPassword string) (*Auth, error) {
	if adminPassword == "" {
		return nil, errors.New("admin password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing admin password: %w", err)
	}
	secret, err := loadOrCreateSecret(db)
	if err != nil {
		return nil, err
	}
	return &Auth{
		jwtSecret: secret,
		adminHash: hash,
		rateMap:   make(map[string]*rateEntry),
	}, nil
}

// loadOrCreateSecret loads the JWT secret from the database, or generates
// and persists a new one if none exists.
func loadOrCreateSecret(db *DB) ([]byte, error) {
	if db != nil {
		h, err := db.GetSetting(jwtSecretSetting)
		if err != nil {
			return nil, fmt.Errorf("loading jwt secret: %w", err)
		}
		if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
			return b, nil
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating jwt secret: %w", err)
	}
	if db != nil {
		if err := db.SetSetting(jwtSecretSetting, hex.EncodeToString(secret)); err != nil {
			return nil, fmt.Errorf("persisting jwt secret: %w", err)
		}
	}
	return secret, nil
}

// CheckAdmin verifies basic auth credentials, rate limited per ip
func (a *Auth) CheckAdmin(user, password, ip string) error {
	if !a.checkRate(ip) {
		return ErrRateLimited
	}
	if user != adminUser {
		return ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.adminHash, []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}

// IssueControlToken signs a token for sid
func (a *Auth) IssueControlToken(sid string) (string, error) {
	now := time.Now()
	claims := ControlClaims{
		SID:   sid,
		Scope: controlTokenScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminUser,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateControlToken checks that tokenStr grants control of sid
func (a *Auth) ValidateControlToken(tokenStr, sid string) error {
	var claims ControlClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Scope != controlTokenScope || claims.SID != sid {
		return ErrInvalidToken
	}
	return nil
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(tokenRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxTokenAttempts
}
