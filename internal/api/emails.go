package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/pipeline"
)

// SendEmailRequest is the request body for POST /api/v1/emails/send.
// The recipient is either an existing contact id or a stored contact's
// email address.
type SendEmailRequest struct {
	TemplateID string            `json:"template_id"`
	ContactID  string            `json:"contact_id"`
	Email      string            `json:"email"`
	Variables  map[string]string `json:"variables"`
}

// SendBulkRequest is the request body for POST /api/v1/emails/bulk. The
// recipient set is all active contacts matching any of the given tags;
// with no tags, all active contacts.
type SendBulkRequest struct {
	TemplateID string            `json:"template_id"`
	Tags       []string          `json:"tags"`
	Variables  map[string]string `json:"variables"`
}

// handleSendEmail handles POST /api/v1/emails/send
func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var req SendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TemplateID == "" {
		s.sendError(w, http.StatusBadRequest, "template_id is required")
		return
	}

	tmpl, err := s.templates.GetByID(req.TemplateID)
	if err != nil {
		s.internalError(w, "failed to get template", err)
		return
	}

	var contact *models.Contact
	switch {
	case req.ContactID != "":
		contact, err = s.contacts.GetByID(req.ContactID)
	case req.Email != "":
		contact, err = s.contacts.GetByEmail(req.Email)
	default:
		s.sendError(w, http.StatusBadRequest, "contact_id or email is required")
		return
	}
	if err != nil {
		s.internalError(w, "failed to get contact", err)
		return
	}
	if contact == nil {
		s.sendError(w, http.StatusNotFound, "Contact not found")
		return
	}

	if err := s.pipeline.SendOne(r.Context(), tmpl, contact, req.Variables); err != nil {
		if errors.Is(err, pipeline.ErrNoTemplate) {
			s.sendError(w, http.StatusNotFound, "Template not found")
			return
		}
		s.logger.Error("failed to send email", "email", contact.Email, "error", err)
		s.sendError(w, http.StatusBadGateway, "Failed to send email")
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]string{
		"status": "sent",
		"email":  contact.Email,
	})
}

// handleSendBulk handles POST /api/v1/emails/bulk
func (s *Server) handleSendBulk(w http.ResponseWriter, r *http.Request) {
	var req SendBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TemplateID == "" {
		s.sendError(w, http.StatusBadRequest, "template_id is required")
		return
	}

	tmpl, err := s.templates.GetByID(req.TemplateID)
	if err != nil {
		s.internalError(w, "failed to get template", err)
		return
	}

	contacts, err := s.contacts.FindActiveByTags(req.Tags)
	if err != nil {
		s.internalError(w, "failed to find contacts", err)
		return
	}

	result, err := s.pipeline.SendBulk(r.Context(), tmpl, contacts, req.Variables)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoTemplate) {
			s.sendError(w, http.StatusNotFound, "Template not found")
			return
		}
		s.internalError(w, "bulk send failed", err)
		return
	}

	s.sendJSON(w, http.StatusOK, result)
}
