// Package server provides the HTTP API for kikitori.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kikitori/kikitori/internal/config"
	"github.com/kikitori/kikitori/internal/corpus"
	"github.com/kikitori/kikitori/internal/indexer"
	"github.com/kikitori/kikitori/internal/search"
	"github.com/kikitori/kikitori/internal/storage"
	"github.com/kikitori/kikitori/internal/watcher"
)

// Server is the HTTP server for the kikitori API.
type Server struct {
	engine  *search.Engine
	indexer *indexer.Indexer
	corpus  *corpus.Corpus
	storage storage.Storage  // optional
	watch   *watcher.Watcher // optional
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server

	configPath string // when set, watch directory changes are persisted
	configMu   sync.Mutex
}

// NewServer creates a server with the given dependencies. storage and watch
// may be nil; the corresponding endpoints degrade gracefully.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	c *corpus.Corpus,
	store storage.Storage,
	watch *watcher.Watcher,
	cfg *config.Config,
	configPath string,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:     engine,
		indexer:    idx,
		corpus:     c,
		storage:    store,
		watch:      watch,
		config:     cfg,
		configPath: configPath,
		logger:     logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/search/all", s.handleSearchAll)
	r.Post("/api/v1/search/regexp", s.handleSearchRegexp)
	r.Get("/api/v1/transcripts", s.handleListTranscripts)
	r.Get("/api/v1/transcripts/{file}", s.handleGetTranscript)
	r.Delete("/api/v1/transcripts/{file}", s.handleDeleteTranscript)
	r.Post("/api/v1/index", s.handleIndex)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
