package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/dictgen/internal/dictionary"
	"github.com/JakeFAU/dictgen/internal/jobs"
)

type generateRequest struct {
	DictName  string `json:"dict_name"`
	WordCount int    `json:"word_count"`
}

type ackResponse struct {
	Message string `json:"message"`
	Status  bool   `json:"status"`
}

type statusResponse struct {
	Message string            `json:"message"`
	Status  dictionary.Status `json:"status"`
	Reason  string            `json:"reason,omitempty"`
}

type statisticsResponse struct {
	Message string               `json:"message"`
	Stats   dictionary.Histogram `json:"stats"`
}

type listResponse struct {
	Dictionaries []jobs.Summary `json:"dictionaries"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   bool   `json:"error"`
}

var notFoundResponse = ackResponse{Message: "Dictionary does not exist", Status: false}

func (s *Server) generateDictionary(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.jobs.Submit(r.Context(), req.DictName, req.WordCount); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Message: "Dictionary generation started", Status: true})
}

func (s *Server) getDictionaryStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "dict_name")
	status, err := s.jobs.Status(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, notFoundResponse)
		return
	}
	resp := statusResponse{Message: "Dictionary exist", Status: status}
	if status == dictionary.StatusFailed {
		if state, err := s.jobs.Get(name); err == nil {
			resp.Reason = state.Reason
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getDictionaryStatistics(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "dict_name")
	status, err := s.jobs.Status(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, notFoundResponse)
		return
	}
	resp := statisticsResponse{}
	switch status {
	case dictionary.StatusCompleted:
		stats, err := s.jobs.Result(name)
		if err != nil {
			writeJSON(w, http.StatusNotFound, notFoundResponse)
			return
		}
		resp.Message = "Dictionary exist"
		resp.Stats = stats
	case dictionary.StatusFailed:
		resp.Message = "Dictionary exist, but in failed state"
	default:
		resp.Message = "Dictionary is still being generated"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) downloadDictionary(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "dict_name")
	dl, err := s.jobs.Download(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("ETag", dl.ETag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == dl.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".txt"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(dl.Body); err != nil {
		s.logger.Warn("download write failed", zap.String("dict_name", name), zap.Error(err))
	}
}

func (s *Server) deleteDictionary(w http.ResponseWriter, r *http.Request) {
	err := s.jobs.Delete(r.Context(), chi.URLParam(r, "dict_name"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ackResponse{Message: "deleted successfully", Status: true})
	case errors.Is(err, dictionary.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ackResponse{Message: "dictionary does not exist, failed to delete"})
	default:
		s.writeServiceError(w, r, err)
	}
}

func (s *Server) listDictionaries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{Dictionaries: s.jobs.List()})
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var exists *dictionary.EntryExistsError
	switch {
	case errors.As(err, &exists):
		writeError(w, http.StatusConflict, exists.Error())
	case errors.Is(err, dictionary.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dictionary.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
