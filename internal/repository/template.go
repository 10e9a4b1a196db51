package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mailfold/mailfold/internal/models"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create creates a new template. Returns ErrDuplicate if the name is taken.
func (r *TemplateRepository) Create(t *models.Template) error {
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO templates (id, name, subject, content, variables, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Subject, t.Content, marshalJSON(t.Variables), t.Category, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// GetByID returns a template by ID, or nil if not found.
func (r *TemplateRepository) GetByID(id string) (*models.Template, error) {
	row := r.db.QueryRow(`
		SELECT id, name, subject, content, variables, category, created_at, updated_at
		FROM templates WHERE id = ?`, id)

	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns templates with optional filtering and pagination.
func (r *TemplateRepository) List(filter models.TemplateFilter) ([]models.Template, int, error) {
	where := "WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		where += " AND (name LIKE ? OR subject LIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Category != "" {
		where += " AND category = ?"
		args = append(args, filter.Category)
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM templates "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT id, name, subject, content, variables, category, created_at, updated_at FROM templates " + where + " ORDER BY created_at DESC"
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

	templates := []models.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		templates = append(templates, *t)
	}
	return templates, total, rows.Err()
}

// Update updates a template. Returns ErrDuplicate on a name conflict.
func (r *TemplateRepository) Update(t *models.Template) error {
	t.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		UPDATE templates SET name = ?, subject = ?, content = ?, variables = ?, category = ?, updated_at = ?
		WHERE id = ?`,
		t.Name, t.Subject, t.Content, marshalJSON(t.Variables), t.Category, t.UpdatedAt, t.ID,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Delete deletes a template.
func (r *TemplateRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM templates WHERE id = ?", id)
	return err
}

// Count returns the total number of templates.
func (r *TemplateRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM templates").Scan(&n)
	return n, err
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	t := &models.Template{}
	var variables string
	err := row.Scan(&t.ID, &t.Name, &t.Subject, &t.Content, &variables, &t.Category, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Variables = unmarshalStrings(variables)
	return t, nil
}
