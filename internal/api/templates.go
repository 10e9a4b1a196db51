package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mailfold/mailfold/internal/models"
)

// TemplateRequest is the request body for creating or updating a template.
type TemplateRequest struct {
	Name      string   `json:"name"`
	Subject   string   `json:"subject"`
	Content   string   `json:"content"`
	Variables []string `json:"variables"`
	Category  string   `json:"category"`
}

// handleListTemplates handles GET /api/v1/templates
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	filter := models.TemplateFilter{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
		Page:     page,
		Limit:    limit,
	}

	templates, total, err := s.templates.List(filter)
	if err != nil {
		s.internalError(w, "failed to list templates", err)
		return
	}
	s.sendList(w, templates, total, page, limit)
}

// handleCreateTemplate handles POST /api/v1/templates
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Subject == "" || req.Content == "" {
		s.sendError(w, http.StatusBadRequest, "name, subject and content are required")
		return
	}

	t := &models.Template{
		Name:      req.Name,
		Subject:   req.Subject,
		Content:   req.Content,
		Variables: req.Variables,
		Category:  req.Category,
	}
	if err := s.templates.Create(t); err != nil {
		if s.isDuplicate(err) {
			s.sendError(w, http.StatusConflict, "A template with this name already exists")
			return
		}
		s.internalError(w, "failed to create template", err)
		return
	}
	s.sendJSON(w, http.StatusCreated, t)
}

// handleGetTemplate handles GET /api/v1/templates/{id}
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.templates.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.internalError(w, "failed to get template", err)
		return
	}
	if t == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}
	s.sendJSON(w, http.StatusOK, t)
}

// handleUpdateTemplate handles PUT /api/v1/templates/{id}
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.templates.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.internalError(w, "failed to get template", err)
		return
	}
	if t == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}

	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name != "" {
		t.Name = req.Name
	}
	if req.Subject != "" {
		t.Subject = req.Subject
	}
	if req.Content != "" {
		t.Content = req.Content
	}
	if req.Variables != nil {
		t.Variables = req.Variables
	}
	if req.Category != "" {
		t.Category = req.Category
	}

	if err := s.templates.Update(t); err != nil {
		if s.isDuplicate(err) {
			s.sendError(w, http.StatusConflict, "A template with this name already exists")
			return
		}
		s.internalError(w, "failed to update template", err)
		return
	}
	s.sendJSON(w, http.StatusOK, t)
}

// handleDeleteTemplate handles DELETE /api/v1/templates/{id}
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.templates.GetByID(id)
	if err != nil {
		s.internalError(w, "failed to get template", err)
		return
	}
	if t == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}
	if err := s.templates.Delete(id); err != nil {
		s.internalError(w, "failed to delete template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
