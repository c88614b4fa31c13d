package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"climb-server/internal/auth"
	"climb-server/internal/config"
	"climb-server/internal/database"
	"climb-server/internal/game"
	"climb-server/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"
)

const finishedGameRetention = 24 * time.Hour

type Server struct {
	cfg         *config.Config
	store       store.Store
	pool        *pgxpool.Pool
	auth        *auth.Service
	games       *game.Service
	registry    *ConnectionRegistry
	httpLimiter *RateLimiter
	stop        chan struct{}
}

// New wires the services on top of st. pool is only used for health stats and
// may be nil.
func New(cfg *config.Config, st store.Store, pool *pgxpool.Pool, opts ...game.Option) *Server {
	registry := NewConnectionRegistry()
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL)

	return &Server{
		cfg:         cfg,
		store:       st,
		pool:        pool,
		auth:        auth.NewService(st, tokens),
		games:       game.NewService(st, NewNotifier(registry, st), opts...),
		registry:    registry,
		httpLimiter: NewRateLimiter(rate.Limit(cfg.HTTPRate), cfg.HTTPBurst),
		stop:        make(chan struct{}),
	}
}

// NewServer opens the configured store, runs migrations and returns the
// server together with its HTTP listener.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, *http.Server, error) {
	var (
		st   store.Store
		pool *pgxpool.Pool
	)
	if cfg.DatabaseURL == "" {
		log.Println("DATABASE_URL not set, using in-memory store (development only, state is lost on restart)")
		st = store.NewMemory()
	} else {
		var err error
		pool, err = database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		st = store.NewPostgres(pool)
	}

	s := New(cfg, st, pool)
	go s.cleanupTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, httpServer, nil
}

// cleanupTask deletes finished games once an hour.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			deleted, err := s.games.PruneFinished(context.Background(), finishedGameRetention)
			if err != nil {
				log.Printf("Cleanup task failed: %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("Cleanup task: deleted %d finished games", deleted)
			}
		}
	}
}

// Shutdown closes every live socket and stops background work. Hijacked
// websocket connections are not tracked by http.Server.Shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.stop:
		return nil
	default:
		close(s.stop)
	}

	s.registry.CloseAll("server shutting down")
	s.httpLimiter.Stop()
	return ctx.Err()
}

// Close releases the store. Call it after the HTTP server has drained.
func (s *Server) Close() {
	s.store.Close()
}
