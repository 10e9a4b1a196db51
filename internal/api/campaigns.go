package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mailfold/mailfold/internal/campaign"
	"github.com/mailfold/mailfold/internal/models"
)

// CampaignRequest is the request body for creating a campaign.
type CampaignRequest struct {
	Name         string     `json:"name"`
	TemplateID   string     `json:"template_id"`
	RecipientIDs []string   `json:"recipient_ids"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
}

// CampaignUpdateRequest carries partial updates; absent fields are left
// unchanged.
type CampaignUpdateRequest struct {
	Name         *string    `json:"name"`
	TemplateID   *string    `json:"template_id"`
	RecipientIDs []string   `json:"recipient_ids"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
}

// ExecuteResponse is the response for POST /api/v1/campaigns/{id}/execute
type ExecuteResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleListCampaigns handles GET /api/v1/campaigns
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	filter := models.CampaignFilter{
		Status:            r.URL.Query().Get("status"),
		Search:            r.URL.Query().Get("search"),
		IncludeRecipients: r.URL.Query().Get("include") == "recipients",
		Page:              page,
		Limit:             limit,
	}

	campaigns, total, err := s.campaigns.List(filter)
	if err != nil {
		s.internalError(w, "failed to list campaigns", err)
		return
	}
	s.sendList(w, campaigns, total, page, limit)
}

// handleCreateCampaign handles POST /api/v1/campaigns
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := s.campaigns.Create(campaign.CreateInput{
		Name:         req.Name,
		TemplateID:   req.TemplateID,
		RecipientIDs: req.RecipientIDs,
		ScheduledAt:  req.ScheduledAt,
	})
	if err != nil {
		s.sendCampaignError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, c)
}

// handleGetCampaign handles GET /api/v1/campaigns/{id}
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.campaigns.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.sendCampaignError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, c)
}

// handleUpdateCampaign handles PUT /api/v1/campaigns/{id}
func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CampaignUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := s.campaigns.Update(chi.URLParam(r, "id"), campaign.UpdateInput{
		Name:         req.Name,
		TemplateID:   req.TemplateID,
		RecipientIDs: req.RecipientIDs,
		ScheduledAt:  req.ScheduledAt,
	})
	if err != nil {
		s.sendCampaignError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, c)
}

// handleDeleteCampaign handles DELETE /api/v1/campaigns/{id}
func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := s.campaigns.Delete(chi.URLParam(r, "id")); err != nil {
		s.sendCampaignError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExecuteCampaign handles POST /api/v1/campaigns/{id}/execute. The
// call returns as soon as the campaign is claimed; delivery continues in
// the background and is observable via campaign status and stats.
func (s *Server) handleExecuteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.campaigns.Execute(r.Context(), id); err != nil {
		s.sendCampaignError(w, err)
		return
	}
	s.sendJSON(w, http.StatusAccepted, ExecuteResponse{
		ID:     id,
		Status: models.StatusSending,
	})
}
