package models

import "time"

// Template is a reusable subject/body with named substitution variables.
// Content is Markdown; {{name}} and ${name} tokens are substituted per
// recipient before rendering.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	Variables []string  `json:"variables"` // declared names, informational only
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TemplateFilter for listing templates
type TemplateFilter struct {
	Search   string
	Category string
	Page     int
	Limit    int
}
