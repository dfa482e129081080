package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kikitori/kikitori/internal/config"
	"github.com/kikitori/kikitori/internal/models"
	"github.com/kikitori/kikitori/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.Query
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.applySearchDefaults(&query)
	s.logger.Debug("search request",
		zap.String("pattern", query.Pattern),
		zap.Bool("regexp", query.IsRegexp))
	response, err := s.engine.Respond(&query)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type searchAllRequest struct {
	Queries []*models.Query `json:"queries"`
}

func (s *Server) handleSearchAll(w http.ResponseWriter, r *http.Request) {
	var req searchAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Queries) == 0 {
		s.respondError(w, http.StatusBadRequest, "queries are required")
		return
	}
	for _, q := range req.Queries {
		s.applySearchDefaults(q)
	}
	start := time.Now()
	results, err := s.engine.SearchAll(req.Queries)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"results":       results,
		"query_time_ms": time.Since(start).Milliseconds(),
	})
}

type regexpRequest struct {
	Pattern string `json:"pattern"`
	File    string `json:"file,omitempty"`
}

func (s *Server) handleSearchRegexp(w http.ResponseWriter, r *http.Request) {
	var req regexpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	start := time.Now()
	results, err := s.engine.SearchRegexp(req.Pattern, req.File)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.RegexpResponse{
		Pattern:   req.Pattern,
		Results:   results,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	snap := s.corpus.Snapshot()
	files := s.corpus.Files()
	type entry struct {
		File  string  `json:"file"`
		Words int     `json:"words"`
		End   float64 `json:"last_word_end"`
	}
	entries := make([]entry, 0, len(files))
	for _, file := range files {
		tr := snap[file]
		e := entry{File: file, Words: tr.Len()}
		if tr.Len() > 0 {
			e.End = tr.Span(tr.Len() - 1).End
		}
		entries = append(entries, e)
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"transcripts": entries,
		"total":       len(entries),
	})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	tr, ok := s.corpus.Get(file)
	if !ok {
		s.respondError(w, http.StatusNotFound, "transcript not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"file":  file,
		"words": tr.Spans(),
	})
}

func (s *Server) handleDeleteTranscript(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	s.logger.Debug("delete transcript request", zap.String("file", file))
	if err := s.indexer.DeleteFile(r.Context(), file); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type indexRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	info, err := os.Stat(req.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "path not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Debug("index request", zap.String("path", req.Path))

	if info.IsDir() {
		n, failures, err := s.indexer.IndexDirectory(r.Context(), req.Path)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp := map[string]any{"indexed": n}
		if len(failures) > 0 {
			failed := make(map[string]string, len(failures))
			for file, ferr := range failures {
				failed[file] = ferr.Error()
			}
			resp["failed"] = failed
		}
		s.respondJSON(w, http.StatusOK, resp)
		return
	}

	if err := s.indexer.IndexFile(r.Context(), req.Path); err != nil {
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{
		"file":   filepath.Base(req.Path),
		"status": "indexed",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]any{
		"files": s.corpus.Len(),
		"words": s.corpus.TokenCount(),
	}
	if s.storage != nil {
		storedFiles, err := s.storage.CountFiles(ctx)
		if err != nil {
			s.logger.Error("status: count files failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		storedSpans, err := s.storage.CountSpans(ctx)
		if err != nil {
			s.logger.Error("status: count spans failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["stored_files"] = storedFiles
		resp["stored_words"] = storedSpans
	}

	configInfo := map[string]any{
		"database_path":      s.config.Storage.DatabasePath,
		"keyword_index_path": s.config.Storage.KeywordIndexPath,
		"transcriber_model":  s.config.Transcriber.Model,
	}
	if diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.KeywordIndexPath,
	); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	s.config.Watch.Directories = s.watch.Directories()
	err := config.Save(s.configPath, s.config)
	s.configMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// applySearchDefaults fills configured fallback knobs into queries that left
// them unset.
func (s *Server) applySearchDefaults(q *models.Query) {
	if q.TimingError == 0 {
		q.TimingError = s.config.Search.TimingError
	}
	if q.MissingWordTolerance == 0 {
		q.MissingWordTolerance = s.config.Search.MissingWordTolerance
	}
}

// respondQueryError maps invalid queries to 400 and everything else to 500.
func (s *Server) respondQueryError(w http.ResponseWriter, err error) {
	var invalid *models.InvalidQueryError
	if errors.As(err, &invalid) {
		s.respondError(w, http.StatusBadRequest, invalid.Error())
		return
	}
	s.logger.Error("search failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
