package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/claude-session-manager/internal/activity"
	"github.com/ksred/claude-session-manager/internal/claude"
	"github.com/ksred/claude-session-manager/internal/config"
	"github.com/sirupsen/logrus"
)

// Server is the REST/WebSocket front door onto the ten-operation engine
// command surface (spec section 6). Unlike the teacher's sqlite-backed
// server, there is no second copy of session data here: every request
// calls straight into internal/claude, whose own cache (spec section
// 4.4) is what makes that fast. The only persisted state this layer
// owns is the activity event log.
type Server struct {
	config   *config.Config
	router   *gin.Engine
	logger   *logrus.Logger
	wsHub    *WebSocketHub
	batcher  *EventBatcher
	activity *activity.Store
	watcher  *claude.ProjectWatcher
	cancel   context.CancelFunc
	http     *http.Server
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg.Features.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logrus.StandardLogger()
	router := gin.New()

	store, err := activity.Open(filepath.Join(cfg.Engine.CorpusRoot, ".activity.db"), logger)
	if err != nil {
		logger.WithError(err).Error("failed to open activity store, continuing without it")
		store = nil
	}

	server := &Server{
		config:   cfg,
		router:   router,
		logger:   logger,
		activity: store,
	}

	if cfg.Features.EnableWebSocket {
		server.wsHub = NewWebSocketHub(logger)
		ctx, cancel := context.WithCancel(context.Background())
		server.cancel = cancel
		go server.wsHub.Run(ctx)

		interval := time.Duration(cfg.Features.WebSocketBatchInterval) * time.Second
		server.batcher = NewEventBatcher(server.wsHub, logger, interval)
		server.wsHub.SetBatcher(server.batcher)
		go server.batcher.Start(ctx)
	}

	if cfg.Features.EnableFileWatcher {
		if err := server.setupWatcher(); err != nil {
			logger.WithError(err).Error("failed to start project watcher")
		}
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server, nil
}

// setupWatcher wires internal/claude's ProjectWatcher to the activity
// store and the websocket hub: every observed file event is recorded
// durably and broadcast live, per spec section 5's note that the
// watcher only decides *when* to reload, never how.
func (s *Server) setupWatcher() error {
	watcher, err := claude.NewProjectWatcher(s.config.Engine.CorpusRoot, s.logger)
	if err != nil {
		return fmt.Errorf("create project watcher: %w", err)
	}

	watcher.SetEventCallback(func(event claude.WatchEvent) {
		s.logger.WithFields(logrus.Fields{
			"event_type": event.Type,
			"file_path":  event.FilePath,
		}).Debug("session file event")

		if s.activity != nil && event.Session != nil {
			eventType := activity.SessionUpdated
			switch event.Type {
			case "created":
				eventType = activity.SessionCreated
			case "deleted":
				eventType = activity.SessionDeleted
			}
			record := activity.Event{
				Type:            eventType,
				ActualSessionID: event.Session.ActualSessionID,
				ProjectName:     event.Session.ProjectName,
				FilePath:        event.FilePath,
				MessageCount:    event.Session.MessageCount,
				OccurredAt:      event.Timestamp,
			}
			if err := s.activity.Record(record); err != nil {
				s.logger.WithError(err).Warn("failed to record activity event")
			}
		}

		if s.wsHub != nil {
			messageType := ""
			switch event.Type {
			case "created":
				messageType = "session_new"
			case "modified":
				messageType = "session_update"
			case "deleted":
				messageType = "session_deleted"
			}
			if messageType != "" {
				s.wsHub.BroadcastUpdate(messageType, gin.H{
					"file_path": event.FilePath,
					"session":   event.Session,
				})
			}
		}
	})

	s.watcher = watcher
	return watcher.Start()
}

// setupMiddleware configures all middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	if s.config.Server.CORS.Enabled {
		s.router.Use(CORSMiddleware(s.config))
	}
	s.router.Use(LoggingMiddleware(s.logger))
}

// Start starts the server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.WithFields(logrus.Fields{"address": addr}).Info("starting server")

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	return s.http.ListenAndServe()
}

// Stop gracefully stops the HTTP listener and the server's background
// collaborators.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.logger.WithError(err).Error("failed to stop project watcher")
		}
	}

	var shutdownErr error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		shutdownErr = s.http.Shutdown(ctx)
	}

	if s.activity != nil {
		if err := s.activity.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	return shutdownErr
}
