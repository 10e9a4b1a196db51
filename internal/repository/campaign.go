package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mailfold/mailfold/internal/models"
)

type CampaignRepository struct {
	db *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a campaign and its recipient list in one transaction.
func (r *CampaignRepository) Create(c *models.Campaign) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO campaigns (id, name, template_id, status, scheduled_at, stats, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.TemplateID, c.Status, nullableTime(c.ScheduledAt), marshalStats(c.Stats), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	if err := insertRecipients(tx, c.ID, c.RecipientIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID returns a campaign with its ordered recipient ids, or nil if not
// found. Template and Recipients joins are resolved by the caller.
func (r *CampaignRepository) GetByID(id string) (*models.Campaign, error) {
	row := r.db.QueryRow(`
		SELECT id, name, template_id, status, scheduled_at, last_executed_at, stats, created_at, updated_at
		FROM campaigns WHERE id = ?`, id)

	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if c.RecipientIDs, err = r.recipientIDs(id); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns campaigns with optional filtering, newest first.
func (r *CampaignRepository) List(filter models.CampaignFilter) ([]models.Campaign, int, error) {
	where := "WHERE 1=1"
	args := []any{}

	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		where += " AND name LIKE ?"
		args = append(args, "%"+filter.Search+"%")
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM campaigns "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, name, template_id, status, scheduled_at, last_executed_at, stats, created_at, updated_at
		FROM campaigns ` + where + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Page > 1 {
			query += " OFFSET ?"
			args = append(args, (filter.Page-1)*filter.Limit)
		}
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range campaigns {
		if campaigns[i].RecipientIDs, err = r.recipientIDs(campaigns[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return campaigns, total, nil
}

// Update rewrites a campaign's mutable fields and replaces its recipient
// list. Status handling is the caller's responsibility; this method stores
// whatever status the caller derived.
func (r *CampaignRepository) Update(c *models.Campaign) error {
	c.UpdatedAt = time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE campaigns SET name = ?, template_id = ?, status = ?, scheduled_at = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.TemplateID, c.Status, nullableTime(c.ScheduledAt), c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM campaign_recipients WHERE campaign_id = ?", c.ID); err != nil {
		return err
	}
	if err := insertRecipients(tx, c.ID, c.RecipientIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete deletes a campaign; recipients cascade.
func (r *CampaignRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM campaigns WHERE id = ?", id)
	return err
}

// MarkSending atomically claims a campaign for execution: the status flip
// to sending and the precondition (status still draft or scheduled) are one
// conditional update, so at most one caller wins. Returns whether this
// caller claimed the campaign. last_executed_at is stamped before any
// delivery attempt begins.
func (r *CampaignRepository) MarkSending(id string, now time.Time) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE campaigns SET status = ?, last_executed_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		models.StatusSending, now, now, id, models.StatusDraft, models.StatusScheduled,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ApplyRunResult folds one execution's outcome into the campaign: stats
// deltas are added to the stored counters and the terminal status is set.
func (r *CampaignRepository) ApplyRunResult(id string, sent, failed int, status string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	if err := tx.QueryRow("SELECT stats FROM campaigns WHERE id = ?", id).Scan(&raw); err != nil {
		return err
	}

	stats := unmarshalStats(raw)
	stats.Sent += sent
	stats.Failed += failed

	_, err = tx.Exec(`
		UPDATE campaigns SET stats = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		marshalStats(stats), status, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// SetStatus sets a campaign's status unconditionally.
func (r *CampaignRepository) SetStatus(id, status string) error {
	_, err := r.db.Exec("UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?", status, time.Now(), id)
	return err
}

// ListScheduledDue returns scheduled campaigns whose scheduled time is at
// or before now. The scheduled row itself is the durable schedule entry;
// there are no in-memory timers to lose on restart.
func (r *CampaignRepository) ListScheduledDue(now time.Time) ([]models.Campaign, error) {
	rows, err := r.db.Query(`
		SELECT id, name, template_id, status, scheduled_at, last_executed_at, stats, created_at, updated_at
		FROM campaigns WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		ORDER BY scheduled_at`,
		models.StatusScheduled, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// Count returns the total number of campaigns.
func (r *CampaignRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM campaigns").Scan(&n)
	return n, err
}

// SumStats returns the totals of sent and failed across all campaigns.
func (r *CampaignRepository) SumStats() (sent, failed int, err error) {
	rows, err := r.db.Query("SELECT stats FROM campaigns")
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return 0, 0, err
		}
		stats := unmarshalStats(raw)
		sent += stats.Sent
		failed += stats.Failed
	}
	return sent, failed, rows.Err()
}

func (r *CampaignRepository) recipientIDs(campaignID string) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT contact_id FROM campaign_recipients WHERE campaign_id = ? ORDER BY position",
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertRecipients(tx *sql.Tx, campaignID string, contactIDs []string) error {
	for i, contactID := range contactIDs {
		_, err := tx.Exec(
			"INSERT INTO campaign_recipients (campaign_id, contact_id, position) VALUES (?, ?, ?)",
			campaignID, contactID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to add campaign recipient: %w", err)
		}
	}
	return nil
}

func scanCampaign(row rowScanner) (*models.Campaign, error) {
	c := &models.Campaign{}
	var stats string
	var scheduledAt, lastExecutedAt sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.TemplateID, &c.Status, &scheduledAt, &lastExecutedAt, &stats, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Stats = unmarshalStats(stats)
	if scheduledAt.Valid {
		c.ScheduledAt = &scheduledAt.Time
	}
	if lastExecutedAt.Valid {
		c.LastExecutedAt = &lastExecutedAt.Time
	}
	return c, nil
}

func marshalStats(s models.CampaignStats) string {
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalStats(data string) models.CampaignStats {
	var s models.CampaignStats
	if data != "" {
		json.Unmarshal([]byte(data), &s)
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
