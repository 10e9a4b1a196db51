package models

import "time"

// Contact represents an addressable person eligible to receive campaign mail.
type Contact struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Organization  string     `json:"organization"`
	Tags          []string   `json:"tags"`
	Active        bool       `json:"active"`
	LastEmailedAt *time.Time `json:"last_emailed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ContactFilter for listing contacts
type ContactFilter struct {
	Search string
	Tags   []string
	Page   int
	Limit  int
}

// ImportResult holds the result of a CSV import operation
type ImportResult struct {
	Total      int           `json:"total"`
	Imported   int           `json:"imported"`
	Duplicates int           `json:"duplicates"`
	Errors     []ImportError `json:"errors,omitempty"`
}

// ImportError describes a single rejected CSV row
type ImportError struct {
	Row   int    `json:"row"`
	Email string `json:"email"`
	Error string `json:"error"`
}
