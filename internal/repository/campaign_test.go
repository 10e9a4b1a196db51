package repository

import (
	"testing"
	"time"

	"github.com/mailfold/mailfold/internal/models"
)

func createTestCampaign(t *testing.T, repo *CampaignRepository, tmplID string, recipientIDs []string, status string) *models.Campaign {
	t.Helper()
	c := &models.Campaign{
		Name:         "Fall Promo",
		TemplateID:   tmplID,
		RecipientIDs: recipientIDs,
		Status:       status,
	}
	if err := repo.Create(c); err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}
	return c
}

func TestCampaignCreateAndGet(t *testing.T) {
	conn := setupTestDB(t)
	contacts := NewContactRepository(conn)
	templates := NewTemplateRepository(conn)
	campaigns := NewCampaignRepository(conn)

	a := createTestContact(t, contacts, "a@x.com", "Alice", nil)
	b := createTestContact(t, contacts, "b@x.com", "Bob", nil)
	tmpl := createTestTemplate(t, templates, "welcome")

	c := createTestCampaign(t, campaigns, tmpl.ID, []string{b.ID, a.ID}, models.StatusDraft)

	got, err := campaigns.GetByID(c.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() = nil")
	}
	if got.Status != models.StatusDraft {
		t.Errorf("Status = %s, want draft", got.Status)
	}
	// Recipient order is the order supplied at creation
	if len(got.RecipientIDs) != 2 || got.RecipientIDs[0] != b.ID || got.RecipientIDs[1] != a.ID {
		t.Errorf("RecipientIDs = %v, want [%s %s]", got.RecipientIDs, b.ID, a.ID)
	}
}

func TestCampaignMarkSendingClaimsOnce(t *testing.T) {
	conn := setupTestDB(t)
	contacts := NewContactRepository(conn)
	templates := NewTemplateRepository(conn)
	campaigns := NewCampaignRepository(conn)

	a := createTestContact(t, contacts, "a@x.com", "Alice", nil)
	tmpl := createTestTemplate(t, templates, "welcome")
	c := createTestCampaign(t, campaigns, tmpl.ID, []string{a.ID}, models.StatusDraft)

	now := time.Now()
	claimed, err := campaigns.MarkSending(c.ID, now)
	if err != nil {
		t.Fatalf("MarkSending() error = %v", err)
	}
	if !claimed {
		t.Fatal("first MarkSending() = false, want true")
	}

	// Second claim must lose: the status is no longer draft/scheduled.
	claimed, err = campaigns.MarkSending(c.ID, now)
	if err != nil {
		t.Fatalf("second MarkSending() error = %v", err)
	}
	if claimed {
		t.Error("second MarkSending() = true, want false")
	}

	got, _ := campaigns.GetByID(c.ID)
	if got.Status != models.StatusSending {
		t.Errorf("Status = %s, want sending", got.Status)
	}
	if got.LastExecutedAt == nil {
		t.Error("LastExecutedAt not stamped")
	}
}

func TestCampaignMarkSendingRejectsTerminalStatus(t *testing.T) {
	conn := setupTestDB(t)
	contacts := NewContactRepository(conn)
	templates := NewTemplateRepository(conn)
	campaigns := NewCampaignRepository(conn)

	a := createTestContact(t, contacts, "a@x.com", "Alice", nil)
	tmpl := createTestTemplate(t, templates, "welcome")

	for _, status := range []string{models.StatusSending, models.StatusCompleted, models.StatusFailed} {
		c := createTestCampaign(t, campaigns, tmpl.ID, []string{a.ID}, models.StatusDraft)
		if err := campaigns.SetStatus(c.ID, status); err != nil {
			t.Fatalf("SetStatus(%s) error = %v", status, err)
		}

		claimed, err := campaigns.MarkSending(c.ID, time.Now())
		if err != nil {
			t.Fatalf("MarkSending() error = %v", err)
		}
		if claimed {
			t.Errorf("MarkSending() from %s = true, want false", status)
		}

		got, _ := campaigns.GetByID(c.ID)
		if got.Status != status {
			t.Errorf("status mutated by rejected claim: %s -> %s", status, got.Status)
		}
	}
}

func TestCampaignApplyRunResultAccumulates(t *testing.T) {
	conn := setupTestDB(t)
	contacts := NewContactRepository(conn)
	templates := NewTemplateRepository(conn)
	campaigns := NewCampaignRepository(conn)

	a := createTestContact(t, contacts, "a@x.com", "Alice", nil)
	tmpl := createTestTemplate(t, templates, "welcome")
	c := createTestCampaign(t, campaigns, tmpl.ID, []string{a.ID}, models.StatusDraft)

	if err := campaigns.ApplyRunResult(c.ID, 2, 1, models.StatusCompleted); err != nil {
		t.Fatalf("ApplyRunResult() error = %v", err)
	}

	got, _ := campaigns.GetByID(c.ID)
	if got.Stats.Sent != 2 || got.Stats.Failed != 1 {
		t.Errorf("Stats = %+v, want sent=2 failed=1", got.Stats)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}

	// Stored counters accumulate, they are never reset between runs.
	if err := campaigns.ApplyRunResult(c.ID, 1, 0, models.StatusCompleted); err != nil {
		t.Fatalf("second ApplyRunResult() error = %v", err)
	}
	got, _ = campaigns.GetByID(c.ID)
	if got.Stats.Sent != 3 || got.Stats.Failed != 1 {
		t.Errorf("Stats after second run = %+v, want sent=3 failed=1", got.Stats)
	}
}

func TestCampaignListScheduledDue(t *testing.T) {
	conn := setupTestDB(t)
	contacts := NewContactRepository(conn)
	templates := NewTemplateRepository(conn)
	campaigns := NewCampaignRepository(conn)

	a := createTestContact(t, contacts, "a@x.com", "Alice", nil)
	tmpl := createTestTemplate(t, templates, "welcome")

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := &models.Campaign{Name: "due", TemplateID: tmpl.ID, RecipientIDs: []string{a.ID}, Status: models.StatusScheduled, ScheduledAt: &past}
	if err := campaigns.Create(due); err != nil {
		t.Fatalf("Create(due) error = %v", err)
	}
	notYet := &models.Campaign{Name: "later", TemplateID: tmpl.ID, RecipientIDs: []string{a.ID}, Status: models.StatusScheduled, ScheduledAt: &future}
	if err := campaigns.Create(notYet); err != nil {
		t.Fatalf("Create(notYet) error = %v", err)
	}
	// Draft with a past date must not fire
	draft := &models.Campaign{Name: "draft", TemplateID: tmpl.ID, RecipientIDs: []string{a.ID}, Status: models.StatusDraft, ScheduledAt: &past}
	if err := campaigns.Create(draft); err != nil {
		t.Fatalf("Create(draft) error = %v", err)
	}

	got, err := campaigns.ListScheduledDue(now)
	if err != nil {
		t.Fatalf("ListScheduledDue() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Errorf("ListScheduledDue() = %d campaigns, want only %q", len(got), due.Name)
	}
}

func TestCampaignUpdateReplacesRecipients(t *testing.T) {
	conn := setupTestDB(t)
	contacts := NewContactRepository(conn)
	templates := NewTemplateRepository(conn)
	campaigns := NewCampaignRepository(conn)

	a := createTestContact(t, contacts, "a@x.com", "Alice", nil)
	b := createTestContact(t, contacts, "b@x.com", "Bob", nil)
	tmpl := createTestTemplate(t, templates, "welcome")
	c := createTestCampaign(t, campaigns, tmpl.ID, []string{a.ID}, models.StatusDraft)

	c.RecipientIDs = []string{b.ID, a.ID}
	c.Name = "Renamed"
	if err := campaigns.Update(c); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := campaigns.GetByID(c.ID)
	if got.Name != "Renamed" {
		t.Errorf("Name = %s, want Renamed", got.Name)
	}
	if len(got.RecipientIDs) != 2 || got.RecipientIDs[0] != b.ID {
		t.Errorf("RecipientIDs = %v, want [%s %s]", got.RecipientIDs, b.ID, a.ID)
	}
}

func TestCampaignDelete(t *testing.T) {
	conn := setupTestDB(t)
	contacts := NewContactRepository(conn)
	templates := NewTemplateRepository(conn)
	campaigns := NewCampaignRepository(conn)

	a := createTestContact(t, contacts, "a@x.com", "Alice", nil)
	tmpl := createTestTemplate(t, templates, "welcome")
	c := createTestCampaign(t, campaigns, tmpl.ID, []string{a.ID}, models.StatusDraft)

	if err := campaigns.Delete(c.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, _ := campaigns.GetByID(c.ID)
	if got != nil {
		t.Error("campaign still present after delete")
	}
}
