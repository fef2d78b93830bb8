package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rhuanjl/SphereLibs-sub000/logger"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	clientDir := flag.String("client", "", "Path to a static client directory (optional)")
	dbPath := flag.String("db", "world.db", "SQLite telemetry database, empty to disable")
	tickRate := flag.Int("tick", DefaultTickRate, "Simulation ticks per second")
	adminPassword := flag.String("admin-password", os.Getenv("WORLD_ADMIN_PASSWORD"), "Password for control tokens, empty disables control")
	publicURL := flag.String("public-url", "http://localhost:8080", "Base URL encoded in session QR codes")
	flag.Parse()

	logger.Init()
	log := logger.Log.WithField("component", "server")

	var db *DB
	if *dbPath != "" {
		var err error
		db, err = OpenDB(*dbPath)
		if err != nil {
			log.WithError(err).Fatal("opening database")
		}
		defer db.Close()
	}

	var auth *Auth
	if *adminPassword != "" {
		var err error
		auth, err = NewAuth(db, *adminPassword)
		if err != nil {
			log.WithError(err).Fatal("configuring auth")
		}
	} else {
		log.Warn("no admin password, sessions can only be watched")
	}

	telemetry := NewTelemetry(db, logger.Log)
	sessions := NewSessionManager(*tickRate, telemetry, logger.Log)
	hub := NewHub(sessions, auth, db, strings.TrimRight(*publicURL, "/"), logger.Log)
	go hub.Run()

	reaperStop := make(chan struct{})
	go sessions.RunReaper(reaperStop)

	mux := SetupRoutes(hub, *clientDir)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.WithFields(logrus.Fields{"addr": *addr, "tick": *tickRate}).Info("server starting")
		if *clientDir != "" {
			log.WithField("dir", *clientDir).Info("serving client files")
		}
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("ListenAndServe")
		}
	}()

	<-stop
	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	close(reaperStop)
	sessions.CloseAll()
	telemetry.Stop()
}
