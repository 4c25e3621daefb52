package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/manager"
	"github.com/pithecene-io/vpd/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// KeywordRequest addresses one keyword. Value is only used by updates.
type KeywordRequest struct {
	Path    types.Path         `json:"path"`
	Record  string             `json:"record,omitempty"`
	Keyword string             `json:"keyword"`
	Value   types.BinaryVector `json:"value,omitempty"`
}

// PathRequest names one FRU.
type PathRequest struct {
	Path types.Path `json:"path"`
}

// UpdateResponse is the result of a keyword update.
type UpdateResponse struct {
	BytesWritten int `json:"bytes_written"`
}

// ReadResponse is the result of a keyword read.
type ReadResponse struct {
	Value types.BinaryVector `json:"value"`
}

// FruResponse describes one FRU. Only the fields the route answers are set.
type FruResponse struct {
	Path         types.Path             `json:"path"`
	HwPath       string                 `json:"hw_path,omitempty"`
	LocationCode string                 `json:"location_code,omitempty"`
	Status       types.CollectionStatus `json:"status,omitempty"`
}

// StatusResponse is the system-wide collection view.
type StatusResponse struct {
	SystemCollectionComplete bool                `json:"system_collection_complete"`
	Frus                     []manager.FruStatus `json:"frus"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

func (s *Server) handleUpdateKeyword(w http.ResponseWriter, r *http.Request) {
	var req KeywordRequest
	if !decode(w, r, &req) {
		return
	}
	params := types.WriteParams{
		ReadParams: types.ReadParams{Record: req.Record, Keyword: req.Keyword},
		Value:      req.Value,
	}
	n := s.svc.UpdateKeyword(r.Context(), req.Path, params)
	if n < 0 {
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:     fmt.Sprintf("update of %s on %s failed", params.String(), req.Path),
			ErrorType: types.WriteFailure.String(),
		})
		return
	}
	respondJSON(w, http.StatusOK, UpdateResponse{BytesWritten: n})
}

func (s *Server) handleReadKeyword(w http.ResponseWriter, r *http.Request) {
	var req KeywordRequest
	if !decode(w, r, &req) {
		return
	}
	val, err := s.svc.ReadKeyword(r.Context(), req.Path, types.ReadParams{Record: req.Record, Keyword: req.Keyword})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ReadResponse{Value: val})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.CollectSingleFruVPD(r.Context(), req.Path); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, FruResponse{Path: req.Path, Status: types.CollectionInProgress})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.DeleteSingleFruVPD(r.Context(), req.Path); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, FruResponse{Path: req.Path, Status: types.CollectionNotStarted})
}

func (s *Server) handleRecollect(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.PerformVPDRecollection(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleLocationCode(w http.ResponseWriter, r *http.Request) {
	path, ok := queryPath(w, r)
	if !ok {
		return
	}
	code, err := s.svc.GetExpandedLocationCode(r.Context(), path)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, FruResponse{Path: path, LocationCode: code})
}

func (s *Server) handleHwPath(w http.ResponseWriter, r *http.Request) {
	path, ok := queryPath(w, r)
	if !ok {
		return
	}
	hw, err := s.svc.GetHwPath(r.Context(), path)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, FruResponse{Path: path, HwPath: hw})
}

func (s *Server) handleFruStatus(w http.ResponseWriter, r *http.Request) {
	path, ok := queryPath(w, r)
	if !ok {
		return
	}
	status, err := s.svc.CollectionStatus(r.Context(), path)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, FruResponse{Path: path, Status: status})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	frus, err := s.svc.Frus(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{
		SystemCollectionComplete: s.svc.SystemCollectionComplete(),
		Frus:                     frus,
	})
}

// --- helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:     "invalid request body: " + err.Error(),
			ErrorType: types.InternalFailure.String(),
		})
		return false
	}
	return true
}

func queryPath(w http.ResponseWriter, r *http.Request) (types.Path, bool) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:     "path query parameter is required",
			ErrorType: types.InternalFailure.String(),
		})
		return "", false
	}
	return path, true
}

// StatusOf maps a manager error to an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, fault.ErrFruNotFound):
		return http.StatusNotFound
	case errors.Is(err, fault.ErrCollectionInProgress),
		errors.Is(err, fault.ErrNotConcurrentlyMaintainable):
		return http.StatusConflict
	case errors.Is(err, fault.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, manager.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, StatusOf(err), ErrorResponse{
		Error:     err.Error(),
		ErrorType: fault.TypeOf(err).String(),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
