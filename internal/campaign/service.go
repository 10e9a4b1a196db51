// Package campaign owns the campaign lifecycle: creation, draft-only
// mutation, and the execution state machine
// (draft|scheduled -> sending -> completed|failed).
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mailfold/mailfold/internal/metrics"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/repository"
)

// BulkSender runs one bulk-send loop. Per-recipient failures are absorbed
// into the result; an error return means the loop did not run at all.
type BulkSender interface {
	SendBulk(ctx context.Context, tmpl *models.Template, contacts []models.Contact, customVars map[string]string) (*models.BulkResult, error)
}

// Service implements campaign lifecycle operations over the repositories.
type Service struct {
	campaigns *repository.CampaignRepository
	contacts  *repository.ContactRepository
	templates *repository.TemplateRepository
	sender    BulkSender
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// In-flight executions are tracked so shutdown can drain them instead
	// of abandoning a half-finished batch.
	wg sync.WaitGroup
}

func NewService(
	campaigns *repository.CampaignRepository,
	contacts *repository.ContactRepository,
	templates *repository.TemplateRepository,
	sender BulkSender,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		campaigns: campaigns,
		contacts:  contacts,
		templates: templates,
		sender:    sender,
		metrics:   m,
		logger:    logger.With("component", "campaign"),
	}
}

// Close waits for all in-flight executions to finish.
func (s *Service) Close() {
	s.wg.Wait()
}

// CreateInput holds the fields for a new campaign.
type CreateInput struct {
	Name         string
	TemplateID   string
	RecipientIDs []string
	ScheduledAt  *time.Time
}

// Create validates input and stores a new campaign. The campaign starts in
// draft, or in scheduled when the supplied date is strictly in the future.
func (s *Service) Create(in CreateInput) (*models.Campaign, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: campaign name is required", ErrValidation)
	}
	if in.TemplateID == "" {
		return nil, fmt.Errorf("%w: template is required", ErrValidation)
	}

	tmpl, err := s.templates.GetByID(in.TemplateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, fmt.Errorf("%w: template does not exist", ErrValidation)
	}

	recipientIDs, err := s.resolveRecipients(in.RecipientIDs)
	if err != nil {
		return nil, err
	}

	c := &models.Campaign{
		Name:         in.Name,
		TemplateID:   in.TemplateID,
		RecipientIDs: recipientIDs,
		ScheduledAt:  in.ScheduledAt,
		Status:       deriveStatus(in.ScheduledAt, time.Now()),
	}
	if err := s.campaigns.Create(c); err != nil {
		return nil, err
	}

	s.logger.Info("campaign created", "id", c.ID, "name", c.Name, "status", c.Status)
	return c, nil
}

// UpdateInput holds partial updates; nil fields are left unchanged.
type UpdateInput struct {
	Name         *string
	TemplateID   *string
	RecipientIDs []string
	ScheduledAt  *time.Time
}

// Update mutates a draft campaign. Any other status is rejected without
// mutation. Setting a future date moves the campaign to scheduled.
func (s *Service) Update(id string, in UpdateInput) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if c.Status != models.StatusDraft {
		return nil, ErrNotDraft
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, fmt.Errorf("%w: campaign name is required", ErrValidation)
		}
		c.Name = *in.Name
	}
	if in.TemplateID != nil {
		tmpl, err := s.templates.GetByID(*in.TemplateID)
		if err != nil {
			return nil, err
		}
		if tmpl == nil {
			return nil, fmt.Errorf("%w: template does not exist", ErrValidation)
		}
		c.TemplateID = *in.TemplateID
	}
	if in.RecipientIDs != nil {
		recipientIDs, err := s.resolveRecipients(in.RecipientIDs)
		if err != nil {
			return nil, err
		}
		c.RecipientIDs = recipientIDs
	}
	if in.ScheduledAt != nil {
		c.ScheduledAt = in.ScheduledAt
	}
	c.Status = deriveStatus(c.ScheduledAt, time.Now())

	if err := s.campaigns.Update(c); err != nil {
		return nil, err
	}

	s.logger.Info("campaign updated", "id", c.ID, "status", c.Status)
	return c, nil
}

// Delete removes a campaign. Only drafts may be deleted.
func (s *Service) Delete(id string) error {
	c, err := s.campaigns.GetByID(id)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotFound
	}
	if c.Status != models.StatusDraft {
		return ErrNotDraft
	}
	return s.campaigns.Delete(id)
}

// Get returns a campaign with its template and recipients resolved.
func (s *Service) Get(id string) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if err := s.attach(c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns campaigns matching the filter.
func (s *Service) List(filter models.CampaignFilter) ([]models.Campaign, int, error) {
	campaigns, total, err := s.campaigns.List(filter)
	if err != nil {
		return nil, 0, err
	}
	if filter.IncludeRecipients {
		for i := range campaigns {
			if campaigns[i].Recipients, err = s.contacts.FindByIDs(campaigns[i].RecipientIDs); err != nil {
				return nil, 0, err
			}
		}
	}
	return campaigns, total, nil
}

// Execute starts a campaign run. The precondition (status draft or
// scheduled) and the flip to sending are one conditional update in the
// store, so concurrent execute requests cannot both win. On success the
// call returns immediately; the bulk send proceeds on a tracked background
// goroutine and its outcome is observable through the campaign's status
// and stats.
func (s *Service) Execute(ctx context.Context, id string) error {
	c, err := s.campaigns.GetByID(id)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotFound
	}
	// Early answer for the common case; the conditional update below is
	// what actually guarantees single execution.
	if !c.Executable() {
		return ErrNotExecutable
	}

	tmpl, err := s.templates.GetByID(c.TemplateID)
	if err != nil {
		return err
	}
	if tmpl == nil {
		return ErrTemplateMissing
	}

	claimed, err := s.campaigns.MarkSending(id, time.Now())
	if err != nil {
		return err
	}
	if !claimed {
		return ErrNotExecutable
	}

	recipients, err := s.contacts.FindByIDs(c.RecipientIDs)
	if err != nil {
		// The campaign is already claimed; a load failure here is a
		// pipeline-level failure, not a precondition error.
		s.campaigns.SetStatus(id, models.StatusFailed)
		return err
	}

	s.logger.Info("campaign execution started", "id", id, "name", c.Name, "recipients", len(recipients))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(context.WithoutCancel(ctx), c, tmpl, recipients)
	}()

	return nil
}

// run is one bulk-send execution. Completion means the loop ran to
// exhaustion, regardless of individual failures; only a loop that could
// not run at all marks the campaign failed.
func (s *Service) run(ctx context.Context, c *models.Campaign, tmpl *models.Template, recipients []models.Contact) {
	result, err := s.sender.SendBulk(ctx, tmpl, recipients, nil)
	if err != nil {
		s.logger.Error("campaign run failed", "id", c.ID, "error", err)
		if serr := s.campaigns.SetStatus(c.ID, models.StatusFailed); serr != nil {
			s.logger.Error("failed to mark campaign failed", "id", c.ID, "error", serr)
		}
		s.metrics.CampaignRun(models.StatusFailed)
		return
	}

	if err := s.campaigns.ApplyRunResult(c.ID, len(result.Successful), len(result.Failed), models.StatusCompleted); err != nil {
		s.logger.Error("failed to store campaign run result", "id", c.ID, "error", err)
		return
	}
	if len(result.Successful) > 0 {
		if err := s.contacts.MarkEmailed(result.Successful, time.Now()); err != nil {
			s.logger.Error("failed to stamp contacts", "id", c.ID, "error", err)
		}
	}

	s.metrics.CampaignRun(models.StatusCompleted)
	s.logger.Info("campaign run completed",
		"id", c.ID,
		"sent", len(result.Successful),
		"failed", len(result.Failed),
	)
}

// attach resolves the template and recipients joins.
func (s *Service) attach(c *models.Campaign) error {
	tmpl, err := s.templates.GetByID(c.TemplateID)
	if err != nil {
		return err
	}
	c.Template = tmpl

	c.Recipients, err = s.contacts.FindByIDs(c.RecipientIDs)
	return err
}

// resolveRecipients dedupes the ids (first occurrence wins) and verifies
// every reference exists. Campaigns are never stored with an empty list.
func (s *Service) resolveRecipients(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	if len(unique) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrValidation)
	}

	found, err := s.contacts.FindByIDs(unique)
	if err != nil {
		return nil, err
	}
	if len(found) != len(unique) {
		return nil, fmt.Errorf("%w: invalid recipients provided", ErrValidation)
	}
	return unique, nil
}

// deriveStatus returns scheduled only for a date strictly in the future.
func deriveStatus(scheduledAt *time.Time, now time.Time) string {
	if scheduledAt != nil && scheduledAt.After(now) {
		return models.StatusScheduled
	}
	return models.StatusDraft
}
