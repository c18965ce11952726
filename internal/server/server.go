package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"vegas-server/internal/config"
)

type Server struct {
	cfg         *config.Config
	logger      *slog.Logger
	connections *ConnectionManager
	registry    *RoomRegistry
	tokens      *TokenIssuer
	limiter     *RateLimiter
	health      *ConnectionHealth
	persistence *PersistenceManager
	publisher   Publisher
	startedAt   time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer wires the relay from cfg. Postgres and NATS are only used when
// their URLs are set. Rooms saved by a previous process are restored with
// every seat disconnected. Background tasks run until Shutdown.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...RegistryOption) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		connections: NewConnectionManager(cfg.WriteTimeout),
		tokens:      NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL),
		limiter:     NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		health:      NewConnectionHealth(),
		publisher:   NoopPublisher{},
		startedAt:   time.Now(),
	}

	if cfg.DatabaseURL != "" {
		pm, err := NewPersistenceManager(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		s.persistence = pm
	}

	if cfg.NatsURL != "" {
		pub, err := NewNatsPublisher(cfg.NatsURL, logger)
		if err != nil {
			s.closeBackends()
			return nil, err
		}
		s.publisher = pub
	}

	registryOpts := []RegistryOption{WithLogger(logger), WithPublisher(s.publisher)}
	if s.persistence != nil {
		registryOpts = append(registryOpts, WithStore(s.persistence))
	}
	s.registry = NewRoomRegistry(s.connections, append(registryOpts, opts...)...)

	if err := s.restoreRooms(ctx); err != nil {
		// Start empty rather than refuse to serve.
		logger.Warn("Failed to restore persisted rooms", "error", err)
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.every(taskCtx, cfg.SweepInterval, s.sweep)
	if s.persistence != nil {
		s.every(taskCtx, cfg.SaveInterval, s.saveRooms)
		s.every(taskCtx, time.Hour, s.cleanupFinished)
	}

	return s, nil
}

// HTTPServer returns the listener configuration for the relay.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func (s *Server) Registry() *RoomRegistry {
	return s.registry
}

func (s *Server) restoreRooms(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}
	records, err := s.persistence.LoadActiveRooms(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for _, rec := range records {
		if _, err := s.registry.Restore(rec); err != nil {
			s.logger.Warn("Skipping unrestorable room", "room", rec.ID, "error", err)
			continue
		}
		restored++
	}
	s.logger.Info("Restored persisted rooms", "rooms", restored)
	return nil
}

// every runs fn on a ticker until ctx is cancelled. A non-positive interval
// disables the task.
func (s *Server) every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// saveRooms snapshots every live room. Each record is taken under its room's
// lock so a concurrent action can never be half-serialized.
func (s *Server) saveRooms() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	saved := 0
	for _, room := range s.registry.Rooms() {
		if err := s.persistence.SaveRoom(ctx, room.Record()); err != nil {
			s.logger.Warn("Periodic save failed", "room", room.ID, "error", err)
			continue
		}
		saved++
	}
	s.logger.Debug("Periodic save completed", "rooms", saved)
}

// cleanupFinished drops finished rooms from the database a day after they end.
func (s *Server) cleanupFinished() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deleted, err := s.persistence.CleanupFinished(ctx, 24*time.Hour)
	if err != nil {
		s.logger.Warn("Cleanup task failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("Cleanup task deleted finished rooms", "rooms", deleted)
	}
}

// Shutdown stops the background tasks, saves every room and closes all
// connections and backends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	var saveErr error
	if s.persistence != nil {
		for _, room := range s.registry.Rooms() {
			if err := s.persistence.SaveRoom(ctx, room.Record()); err != nil {
				s.logger.Warn("Final save failed", "room", room.ID, "error", err)
				saveErr = err
			}
		}
	}

	s.connections.CloseAll("Server shutting down")
	s.closeBackends()
	return saveErr
}

func (s *Server) closeBackends() {
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.persistence != nil {
		s.persistence.Close()
	}
}

type HealthStatus struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Players     int    `json:"players"`
	Connections int    `json:"connections"`
	Uptime      string `json:"uptime"`
	Database    string `json:"database"`
	Broker      string `json:"broker"`
}

// Health reports room and connection counts and the state of the backends.
// The relay stays "ok" while a backend is down; rooms keep working in memory.
func (s *Server) Health(ctx context.Context) HealthStatus {
	stats := s.registry.Stats()
	status := HealthStatus{
		Status:      "ok",
		Rooms:       stats.Rooms,
		Players:     stats.Players,
		Connections: s.connections.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
		Database:    "disabled",
		Broker:      "disabled",
	}

	if s.persistence != nil {
		status.Database = "up"
		if err := s.persistence.Ping(ctx); err != nil {
			status.Database = "down"
			status.Status = "degraded"
		}
	}
	if c, ok := s.publisher.(interface{ Connected() bool }); ok {
		status.Broker = "up"
		if !c.Connected() {
			status.Broker = "down"
			status.Status = "degraded"
		}
	}
	return status
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Health(r.Context()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	resp, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(resp); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
