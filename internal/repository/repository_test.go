package repository

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mailfold/mailfold/internal/db"
	"github.com/mailfold/mailfold/internal/models"
)

// setupTestDB creates an in-memory SQLite database with all migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return conn
}

func createTestContact(t *testing.T, repo *ContactRepository, email, name string, tags []string) *models.Contact {
	t.Helper()
	c := &models.Contact{
		Email:  email,
		Name:   name,
		Tags:   tags,
		Active: true,
	}
	if err := repo.Create(c); err != nil {
		t.Fatalf("failed to create contact %s: %v", email, err)
	}
	return c
}

func createTestTemplate(t *testing.T, repo *TemplateRepository, name string) *models.Template {
	t.Helper()
	tmpl := &models.Template{
		Name:    name,
		Subject: "Hi {{contactName}}",
		Content: "Hello **{{contactName}}** from {{senderName}}",
	}
	if err := repo.Create(tmpl); err != nil {
		t.Fatalf("failed to create template %s: %v", name, err)
	}
	return tmpl
}

func TestContactCreateDuplicate(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewContactRepository(conn)

	createTestContact(t, repo, "a@x.com", "Alice", nil)

	dup := &models.Contact{Email: "a@x.com", Name: "Other", Active: true}
	if err := repo.Create(dup); err != ErrDuplicate {
		t.Errorf("Create duplicate = %v, want ErrDuplicate", err)
	}
}

func TestContactGetByEmail(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewContactRepository(conn)

	created := createTestContact(t, repo, "a@x.com", "Alice", []string{"vip"})

	got, err := repo.GetByEmail("a@x.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("GetByEmail() = %+v, want id %s", got, created.ID)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "vip" {
		t.Errorf("Tags = %v, want [vip]", got.Tags)
	}

	missing, err := repo.GetByEmail("nobody@x.com")
	if err != nil {
		t.Fatalf("GetByEmail(missing) error = %v", err)
	}
	if missing != nil {
		t.Errorf("GetByEmail(missing) = %+v, want nil", missing)
	}
}

func TestContactListFilters(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewContactRepository(conn)

	createTestContact(t, repo, "a@x.com", "Alice", []string{"vip", "beta"})
	createTestContact(t, repo, "b@x.com", "Bob", []string{"beta"})
	createTestContact(t, repo, "c@y.com", "Carol", nil)

	byTag, total, err := repo.List(models.ContactFilter{Tags: []string{"vip"}})
	if err != nil {
		t.Fatalf("List(tags) error = %v", err)
	}
	if total != 1 || len(byTag) != 1 || byTag[0].Email != "a@x.com" {
		t.Errorf("List(tags=vip) = %d contacts (total %d), want a@x.com only", len(byTag), total)
	}

	bySearch, total, err := repo.List(models.ContactFilter{Search: "bob"})
	if err != nil {
		t.Fatalf("List(search) error = %v", err)
	}
	if total != 1 || len(bySearch) != 1 || bySearch[0].Email != "b@x.com" {
		t.Errorf("List(search=bob) = %d contacts (total %d), want b@x.com only", len(bySearch), total)
	}

	page, total, err := repo.List(models.ContactFilter{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("List(page) error = %v", err)
	}
	if total != 3 || len(page) != 1 {
		t.Errorf("List(page=2,limit=2) = %d contacts (total %d), want 1 of 3", len(page), total)
	}
}

func TestContactFindByIDsPreservesOrder(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewContactRepository(conn)

	a := createTestContact(t, repo, "a@x.com", "Alice", nil)
	b := createTestContact(t, repo, "b@x.com", "Bob", nil)
	c := createTestContact(t, repo, "c@x.com", "Carol", nil)

	got, err := repo.FindByIDs([]string{c.ID, a.ID, "missing", b.ID})
	if err != nil {
		t.Fatalf("FindByIDs() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("FindByIDs() returned %d contacts, want 3", len(got))
	}
	wantOrder := []string{"c@x.com", "a@x.com", "b@x.com"}
	for i, w := range wantOrder {
		if got[i].Email != w {
			t.Errorf("FindByIDs()[%d] = %s, want %s", i, got[i].Email, w)
		}
	}
}

func TestContactMarkEmailed(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewContactRepository(conn)

	a := createTestContact(t, repo, "a@x.com", "Alice", nil)
	createTestContact(t, repo, "b@x.com", "Bob", nil)

	now := time.Now()
	if err := repo.MarkEmailed([]string{"a@x.com"}, now); err != nil {
		t.Fatalf("MarkEmailed() error = %v", err)
	}

	got, _ := repo.GetByID(a.ID)
	if got.LastEmailedAt == nil {
		t.Error("LastEmailedAt not set for a@x.com")
	}
	other, _ := repo.GetByEmail("b@x.com")
	if other.LastEmailedAt != nil {
		t.Error("LastEmailedAt set for b@x.com, want nil")
	}
}

func TestTemplateUniqueName(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewTemplateRepository(conn)

	createTestTemplate(t, repo, "welcome")

	dup := &models.Template{Name: "welcome", Subject: "s"}
	if err := repo.Create(dup); err != ErrDuplicate {
		t.Errorf("Create duplicate name = %v, want ErrDuplicate", err)
	}
}

func TestTemplateCRUD(t *testing.T) {
	conn := setupTestDB(t)
	repo := NewTemplateRepository(conn)

	tmpl := createTestTemplate(t, repo, "welcome")

	got, err := repo.GetByID(tmpl.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil || got.Subject != "Hi {{contactName}}" {
		t.Fatalf("GetByID() = %+v", got)
	}

	got.Subject = "Updated"
	if err := repo.Update(got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	updated, _ := repo.GetByID(tmpl.ID)
	if updated.Subject != "Updated" {
		t.Errorf("Subject after update = %s, want Updated", updated.Subject)
	}

	if err := repo.Delete(tmpl.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	gone, _ := repo.GetByID(tmpl.ID)
	if gone != nil {
		t.Error("template still present after delete")
	}
}
