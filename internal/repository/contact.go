package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mailfold/mailfold/internal/models"
)

type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create creates a new contact. Returns ErrDuplicate if the email is taken.
func (r *ContactRepository) Create(c *models.Contact) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()

	_, err := r.db.Exec(`
		INSERT INTO contacts (id, email, name, organization, tags, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Email, c.Name, c.Organization, marshalJSON(c.Tags), c.Active, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// GetByID returns a contact by ID, or nil if not found.
func (r *ContactRepository) GetByID(id string) (*models.Contact, error) {
	return r.getOne("SELECT id, email, name, organization, tags, active, last_emailed_at, created_at FROM contacts WHERE id = ?", id)
}

// GetByEmail returns a contact by normalized email, or nil if not found.
func (r *ContactRepository) GetByEmail(email string) (*models.Contact, error) {
	return r.getOne("SELECT id, email, name, organization, tags, active, last_emailed_at, created_at FROM contacts WHERE email = ?", email)
}

func (r *ContactRepository) getOne(query string, arg any) (*models.Contact, error) {
	row := r.db.QueryRow(query, arg)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns contacts with optional filtering and pagination.
func (r *ContactRepository) List(filter models.ContactFilter) ([]models.Contact, int, error) {
	where := "WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		where += " AND (email LIKE ? OR name LIKE ? OR organization LIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if len(filter.Tags) > 0 {
		placeholders := strings.Repeat("?,", len(filter.Tags))
		where += " AND EXISTS (SELECT 1 FROM json_each(contacts.tags) WHERE json_each.value IN (" + placeholders[:len(placeholders)-1] + "))"
		for _, tag := range filter.Tags {
			args = append(args, tag)
		}
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM contacts "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT id, email, name, organization, tags, active, last_emailed_at, created_at FROM contacts " + where + " ORDER BY created_at DESC"
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

	contacts, err := collectContacts(rows)
	if err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

// FindByIDs returns the contacts for the given ids, in the order the ids
// were supplied. Missing ids are omitted.
func (r *ContactRepository) FindByIDs(ids []string) ([]models.Contact, error) {
	if len(ids) == 0 {
		return []models.Contact{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Query(
		"SELECT id, email, name, organization, tags, active, last_emailed_at, created_at FROM contacts WHERE id IN ("+placeholders[:len(placeholders)-1]+")",
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found, err := collectContacts(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Contact, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	ordered := make([]models.Contact, 0, len(found))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// FindActiveByTags returns active contacts matching any of the given tags.
// With no tags, all active contacts are returned.
func (r *ContactRepository) FindActiveByTags(tags []string) ([]models.Contact, error) {
	query := "SELECT id, email, name, organization, tags, active, last_emailed_at, created_at FROM contacts WHERE active = 1"
	args := []any{}

	if len(tags) > 0 {
		placeholders := strings.Repeat("?,", len(tags))
		query += " AND EXISTS (SELECT 1 FROM json_each(contacts.tags) WHERE json_each.value IN (" + placeholders[:len(placeholders)-1] + "))"
		for _, tag := range tags {
			args = append(args, tag)
		}
	}
	query += " ORDER BY created_at"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectContacts(rows)
}

// Update updates a contact's mutable fields.
func (r *ContactRepository) Update(c *models.Contact) error {
	_, err := r.db.Exec(`
		UPDATE contacts SET email = ?, name = ?, organization = ?, tags = ?, active = ?
		WHERE id = ?`,
		c.Email, c.Name, c.Organization, marshalJSON(c.Tags), c.Active, c.ID,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Delete deletes a contact.
func (r *ContactRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM contacts WHERE id = ?", id)
	return err
}

// MarkEmailed stamps last_emailed_at for the given addresses.
func (r *ContactRepository) MarkEmailed(emails []string, t time.Time) error {
	if len(emails) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(emails))
	args := make([]any, 0, len(emails)+1)
	args = append(args, t)
	for _, e := range emails {
		args = append(args, e)
	}

	_, err := r.db.Exec(
		"UPDATE contacts SET last_emailed_at = ? WHERE email IN ("+placeholders[:len(placeholders)-1]+")",
		args...,
	)
	return err
}

// Count returns the total number of contacts.
func (r *ContactRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM contacts").Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	c := &models.Contact{}
	var tags string
	var lastEmailed sql.NullTime
	err := row.Scan(&c.ID, &c.Email, &c.Name, &c.Organization, &tags, &c.Active, &lastEmailed, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Tags = unmarshalStrings(tags)
	if lastEmailed.Valid {
		c.LastEmailedAt = &lastEmailed.Time
	}
	return c, nil
}

func collectContacts(rows *sql.Rows) ([]models.Contact, error) {
	contacts := []models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}
