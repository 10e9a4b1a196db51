// Package pipeline implements the bulk-send loop: per-recipient
// personalization and dispatch with partial-failure accounting.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mailfold/mailfold/internal/config"
	"github.com/mailfold/mailfold/internal/mailer"
	"github.com/mailfold/mailfold/internal/metrics"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/render"
)

// ErrNoTemplate is the pipeline-level failure: the loop cannot run at all.
// It is distinct from per-recipient failures, which are absorbed into the
// BulkResult.
var ErrNoTemplate = errors.New("template not found")

// Pipeline personalizes and dispatches mail one recipient at a time.
type Pipeline struct {
	renderer  *render.Renderer
	transport mailer.Transport
	sender    config.SenderConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(renderer *render.Renderer, transport mailer.Transport, sender config.SenderConfig, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		renderer:  renderer,
		transport: transport,
		sender:    sender,
		metrics:   m,
		logger:    logger.With("component", "pipeline"),
	}
}

// SendBulk renders and dispatches the template to every contact in input
// order. One recipient's failure never aborts the loop: the error is
// recorded and the next recipient is attempted. An empty contact list
// yields an empty result. The only error return is a nil template, which
// means the loop could not run at all.
func (p *Pipeline) SendBulk(ctx context.Context, tmpl *models.Template, contacts []models.Contact, customVars map[string]string) (*models.BulkResult, error) {
	if tmpl == nil {
		return nil, ErrNoTemplate
	}

	result := models.NewBulkResult()

	for i := range contacts {
		contact := &contacts[i]

		if err := p.sendOne(ctx, tmpl, contact, customVars); err != nil {
			p.metrics.EmailFailed()
			p.logger.Debug("send failed", "email", contact.Email, "error", err)
			result.Failed = append(result.Failed, models.SendFailure{
				Email: contact.Email,
				Error: err.Error(),
			})
			continue
		}

		p.metrics.EmailSent()
		result.Successful = append(result.Successful, contact.Email)
	}

	return result, nil
}

// SendOne renders and dispatches the template to a single contact.
func (p *Pipeline) SendOne(ctx context.Context, tmpl *models.Template, contact *models.Contact, customVars map[string]string) error {
	if tmpl == nil {
		return ErrNoTemplate
	}
	if err := p.sendOne(ctx, tmpl, contact, customVars); err != nil {
		p.metrics.EmailFailed()
		return err
	}
	p.metrics.EmailSent()
	return nil
}

func (p *Pipeline) sendOne(ctx context.Context, tmpl *models.Template, contact *models.Contact, customVars map[string]string) error {
	vars := p.buildContext(contact, customVars)

	rendered, err := p.renderer.Render(tmpl, vars)
	if err != nil {
		return err
	}

	return p.transport.Send(ctx, &mailer.Message{
		To:      contact.Email,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})
}

// buildContext assembles the personalization context for one recipient:
// contact fields, the fixed sender identity, then caller-supplied custom
// variables. Custom variables win on key collision.
func (p *Pipeline) buildContext(contact *models.Contact, customVars map[string]string) map[string]string {
	vars := map[string]string{
		"contactName":         contact.Name,
		"contactEmail":        contact.Email,
		"contactOrganization": contact.Organization,
		"name":                contact.Name,
		"email":               contact.Email,
		"senderName":          p.sender.Name,
		"senderEmail":         p.sender.Email,
	}
	for k, v := range customVars {
		vars[k] = v
	}
	return vars
}
