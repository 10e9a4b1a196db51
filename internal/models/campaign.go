package models

import "time"

// Campaign statuses. Transitions are one-directional within a run:
// draft|scheduled -> sending -> completed|failed. A campaign never returns
// to draft after leaving it.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusSending   = "sending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Campaign represents a scheduled or on-demand batch send against a
// recipient list using one template.
type Campaign struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	TemplateID     string        `json:"template_id"`
	RecipientIDs   []string      `json:"recipient_ids"`
	Status         string        `json:"status"`
	ScheduledAt    *time.Time    `json:"scheduled_at,omitempty"`
	LastExecutedAt *time.Time    `json:"last_executed_at,omitempty"`
	Stats          CampaignStats `json:"stats"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`

	// Joined fields, populated by GetByID
	Template   *Template `json:"template,omitempty"`
	Recipients []Contact `json:"recipients,omitempty"`
}

// CampaignStats holds cumulative send statistics for a campaign.
// Counters only grow within a single execution; sent+failed never exceeds
// the recipient count of the run that produced them.
type CampaignStats struct {
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Opened    int `json:"opened"`
	Clicked   int `json:"clicked"`
	Failed    int `json:"failed"`
}

// Executable reports whether an execute request is allowed from the
// campaign's current status.
func (c *Campaign) Executable() bool {
	return c.Status == StatusDraft || c.Status == StatusScheduled
}

// CampaignFilter for listing campaigns
type CampaignFilter struct {
	Status            string
	Search            string
	IncludeRecipients bool
	Page              int
	Limit             int
}
