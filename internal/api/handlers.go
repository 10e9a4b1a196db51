package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mailfold/mailfold/internal/campaign"
	"github.com/mailfold/mailfold/internal/repository"
)

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse wraps paginated collection results.
type ListResponse struct {
	Data       any `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// StatsResponse is the response for GET /api/v1/stats
type StatsResponse struct {
	Contacts     int `json:"contacts"`
	Templates    int `json:"templates"`
	Campaigns    int `json:"campaigns"`
	EmailsSent   int `json:"emails_sent"`
	EmailsFailed int `json:"emails_failed"`
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, status int, msg string) {
	s.sendJSON(w, status, ErrorResponse{Error: msg})
}

// sendCampaignError maps campaign service errors to HTTP statuses.
func (s *Server) sendCampaignError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		s.sendError(w, http.StatusNotFound, "Campaign not found")
	case errors.Is(err, campaign.ErrNotExecutable), errors.Is(err, campaign.ErrNotDraft):
		s.sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, campaign.ErrValidation), errors.Is(err, campaign.ErrTemplateMissing):
		s.sendError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("campaign operation failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) sendList(w http.ResponseWriter, data any, total, page, limit int) {
	if page < 1 {
		page = 1
	}
	totalPages := 1
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
		if totalPages < 1 {
			totalPages = 1
		}
	}
	s.sendJSON(w, http.StatusOK, ListResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	})
}

// pagination reads page and limit query params with sane bounds.
func pagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return page, limit
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(s.startTime).String(),
	})
}

// Version is stamped at build time.
var Version = "0.1.0"

// handleStats handles GET /api/v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{}
	var err error

	if resp.Contacts, err = s.contacts.Count(); err != nil {
		s.internalError(w, "failed to count contacts", err)
		return
	}
	if resp.Templates, err = s.templates.Count(); err != nil {
		s.internalError(w, "failed to count templates", err)
		return
	}
	if resp.Campaigns, err = s.stats.Count(); err != nil {
		s.internalError(w, "failed to count campaigns", err)
		return
	}
	if resp.EmailsSent, resp.EmailsFailed, err = s.stats.SumStats(); err != nil {
		s.internalError(w, "failed to sum campaign stats", err)
		return
	}

	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	s.sendError(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) isDuplicate(err error) bool {
	return errors.Is(err, repository.ErrDuplicate)
}
