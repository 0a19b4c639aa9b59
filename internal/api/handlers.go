package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/metrics"
	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/storage"
	"github.com/moasq/swiftsmith/internal/swift"
)

type generateRequest struct {
	Description string `json:"description"`
	AppName     string `json:"app_name"`
}

type modifyRequest struct {
	Files   []swift.File `json:"files"`
	Request string       `json:"request"`
}

type recoverRequest struct {
	Errors []string     `json:"errors"`
	Files  []swift.File `json:"files"`
}

type repairRequest struct {
	Files []swift.File `json:"files"`
}

type repairResponse struct {
	Files   []swift.File `json:"files"`
	Changed []string     `json:"changed"`
	Fixes   []string     `json:"fixes_applied"`
}

type classifyRequest struct {
	Errors []string `json:"errors"`
}

type classifyResponse struct {
	Fingerprint string                  `json:"fingerprint"`
	Categories  []diagnostics.Category  `json:"categories"`
	Errors      diagnostics.Categorized `json:"errors"`
}

type statsResponse struct {
	Process metrics.Snapshot `json:"process"`
	History *storage.Stats   `json:"history,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "providers": nonNil(s.providers)})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, errors.New("description is required"))
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.Generate(r.Context(), req.Description, req.AppName))
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	var req modifyRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Request) == "" {
		writeError(w, http.StatusBadRequest, errors.New("request is required"))
		return
	}
	if err := checkFiles(req.Files); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.Modify(r.Context(), req.Files, req.Request))
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Errors) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("errors is required"))
		return
	}
	if err := checkFiles(req.Files); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.Recover(r.Context(), req.Errors, req.Files))
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	var req repairRequest
	if !decode(w, r, &req) {
		return
	}
	if err := checkFiles(req.Files); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	engine := repair.New(repair.WithLogger(s.logger))
	resp := repairResponse{Files: make([]swift.File, len(req.Files)), Changed: []string{}, Fixes: []string{}}
	for i, f := range req.Files {
		repaired, fixes := engine.RepairFile(f)
		resp.Files[i] = repaired
		if repaired.Content != f.Content {
			resp.Changed = append(resp.Changed, f.Path)
		}
		resp.Fixes = append(resp.Fixes, fixes...)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decode(w, r, &req) {
		return
	}
	cat := diagnostics.Classify(req.Errors)
	categories := cat.Categories()
	if categories == nil {
		categories = []diagnostics.Category{}
	}
	writeJSON(w, http.StatusOK, classifyResponse{
		Fingerprint: diagnostics.Fingerprint(cat),
		Categories:  categories,
		Errors:      cat,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Process: s.pipeline.Metrics().Snapshot()}
	if s.history != nil {
		st, err := s.history.Stats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.History = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, errors.New("history is not enabled"))
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	gens, err := s.history.RecentGenerations(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if gens == nil {
		gens = []storage.Generation{}
	}
	writeJSON(w, http.StatusOK, gens)
}

// decode reads a JSON body, rejecting unknown fields. It writes the error
// response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func checkFiles(files []swift.File) error {
	if len(files) == 0 {
		return errors.New("files is required")
	}
	for i, f := range files {
		if swift.NormalizePath(f.Path) == "" {
			return fmt.Errorf("files[%d]: path is required", i)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
