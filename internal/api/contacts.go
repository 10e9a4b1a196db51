package api

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	mailaddr "github.com/mailfold/mailfold/internal/email"
	"github.com/mailfold/mailfold/internal/models"
)

// ContactRequest is the request body for creating or updating a contact.
type ContactRequest struct {
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Organization string   `json:"organization"`
	Tags         []string `json:"tags"`
	Active       *bool    `json:"active"`
}

// handleListContacts handles GET /api/v1/contacts
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	filter := models.ContactFilter{
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  limit,
	}
	if tags := r.URL.Query().Get("tags"); tags != "" {
		filter.Tags = strings.Split(tags, ",")
	}

	contacts, total, err := s.contacts.List(filter)
	if err != nil {
		s.internalError(w, "failed to list contacts", err)
		return
	}
	s.sendList(w, contacts, total, page, limit)
}

// handleCreateContact handles POST /api/v1/contacts
func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = mailaddr.Normalize(req.Email)
	if !mailaddr.Valid(req.Email) {
		s.sendError(w, http.StatusBadRequest, "A valid email is required")
		return
	}

	c := &models.Contact{
		Email:        req.Email,
		Name:         req.Name,
		Organization: req.Organization,
		Tags:         req.Tags,
		Active:       true,
	}
	if req.Active != nil {
		c.Active = *req.Active
	}

	if err := s.contacts.Create(c); err != nil {
		if s.isDuplicate(err) {
			s.sendError(w, http.StatusConflict, "A contact with this email already exists")
			return
		}
		s.internalError(w, "failed to create contact", err)
		return
	}

	s.sendJSON(w, http.StatusCreated, c)
}

// handleGetContact handles GET /api/v1/contacts/{id}
func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	c, err := s.contacts.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.internalError(w, "failed to get contact", err)
		return
	}
	if c == nil {
		s.sendError(w, http.StatusNotFound, "Contact not found")
		return
	}
	s.sendJSON(w, http.StatusOK, c)
}

// handleUpdateContact handles PUT /api/v1/contacts/{id}
func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	c, err := s.contacts.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		s.internalError(w, "failed to get contact", err)
		return
	}
	if c == nil {
		s.sendError(w, http.StatusNotFound, "Contact not found")
		return
	}

	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Email != "" {
		req.Email = mailaddr.Normalize(req.Email)
		if !mailaddr.Valid(req.Email) {
			s.sendError(w, http.StatusBadRequest, "A valid email is required")
			return
		}
		c.Email = req.Email
	}
	if req.Name != "" {
		c.Name = req.Name
	}
	if req.Organization != "" {
		c.Organization = req.Organization
	}
	if req.Tags != nil {
		c.Tags = req.Tags
	}
	if req.Active != nil {
		c.Active = *req.Active
	}

	if err := s.contacts.Update(c); err != nil {
		if s.isDuplicate(err) {
			s.sendError(w, http.StatusConflict, "A contact with this email already exists")
			return
		}
		s.internalError(w, "failed to update contact", err)
		return
	}
	s.sendJSON(w, http.StatusOK, c)
}

// handleDeleteContact handles DELETE /api/v1/contacts/{id}
func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := s.contacts.GetByID(id)
	if err != nil {
		s.internalError(w, "failed to get contact", err)
		return
	}
	if c == nil {
		s.sendError(w, http.StatusNotFound, "Contact not found")
		return
	}
	if err := s.contacts.Delete(id); err != nil {
		s.internalError(w, "failed to delete contact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportContacts handles POST /api/v1/contacts/import. It accepts a
// CSV upload (multipart field "file", or the raw body) with a header row.
// Recognized columns: email, name, organization, tags. Tags are separated
// by semicolons within the cell. Rows are processed independently; one bad
// row never aborts the import.
func (s *Server) handleImportContacts(w http.ResponseWriter, r *http.Request) {
	reader, err := importBody(r)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "CSV file is required")
		return
	}

	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid CSV: missing header row")
		return
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	emailCol, ok := cols["email"]
	if !ok {
		s.sendError(w, http.StatusBadRequest, "Invalid CSV: email column is required")
		return
	}

	result := &models.ImportResult{}
	for row := 2; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Total++
			result.Errors = append(result.Errors, models.ImportError{Row: row, Error: err.Error()})
			continue
		}
		result.Total++

		email := mailaddr.Normalize(field(record, emailCol))
		if !mailaddr.Valid(email) {
			result.Errors = append(result.Errors, models.ImportError{Row: row, Email: email, Error: "invalid email"})
			continue
		}

		c := &models.Contact{
			Email:        email,
			Name:         field(record, colIndex(cols, "name")),
			Organization: field(record, colIndex(cols, "organization")),
			Tags:         splitTags(field(record, colIndex(cols, "tags"))),
			Active:       true,
		}

		switch err := s.contacts.Create(c); {
		case err == nil:
			result.Imported++
		case s.isDuplicate(err):
			result.Duplicates++
		default:
			result.Errors = append(result.Errors, models.ImportError{Row: row, Email: email, Error: err.Error()})
		}
	}

	s.logger.Info("contacts imported",
		"total", result.Total,
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"errors", len(result.Errors),
	)
	s.sendJSON(w, http.StatusOK, result)
}

func importBody(r *http.Request) (io.Reader, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return file, nil
	}
	return r.Body, nil
}

func colIndex(cols map[string]int, name string) int {
	if i, ok := cols[name]; ok {
		return i
	}
	return -1
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
