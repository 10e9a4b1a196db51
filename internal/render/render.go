// Package render personalizes campaign content: variable substitution,
// Markdown to sanitized HTML conversion, and a plain-text fallback.
package render

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/mailfold/mailfold/internal/models"
)

// Variable patterns for template substitution: {{name}} and ${name}
var (
	curlyPattern  = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	dollarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
)

// Renderer converts template markup into a deliverable message body.
// Rendering is a pure function of (template, variables): the same inputs
// always produce the same output.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strip  *bluemonday.Policy
}

func New() *Renderer {
	return &Renderer{
		md:     goldmark.New(),
		policy: bluemonday.UGCPolicy(),
		strip:  bluemonday.StrictPolicy(),
	}
}

// Rendered is a fully personalized message ready for transport.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Substitute replaces every {{key}} and ${key} occurrence with the context
// value for key. A missing key substitutes the empty string.
func Substitute(s string, vars map[string]string) string {
	if s == "" {
		return s
	}

	s = curlyPattern.ReplaceAllStringFunc(s, func(match string) string {
		return vars[strings.TrimSpace(match[2:len(match)-2])]
	})
	return dollarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return vars[strings.TrimSpace(match[2:len(match)-1])]
	})
}

// Render substitutes variables into the template's subject and content,
// converts the content from Markdown to sanitized HTML, and derives a
// plain-text fallback by stripping all markup from the sanitized HTML.
func (r *Renderer) Render(tmpl *models.Template, vars map[string]string) (*Rendered, error) {
	subject := Substitute(tmpl.Subject, vars)
	content := Substitute(tmpl.Content, vars)

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}

	htmlBody := r.policy.Sanitize(buf.String())
	text := html.UnescapeString(r.strip.Sanitize(htmlBody))

	return &Rendered{
		Subject: subject,
		HTML:    htmlBody,
		Text:    strings.TrimSpace(text),
	}, nil
}
