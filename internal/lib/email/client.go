// Package email provides an email sending client.
//
// It uses Resend (resend-go) as the provider and loads HTML templates from
// the filesystem to render email bodies.
package email

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/archonhq/archon/internal/config"
	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// Client wraps the Resend client and a logger.
type Client struct {
	client *resend.Client
	logger *zerolog.Logger
}

// NewClient creates an email Client using the API key from config.
// An empty key yields a client whose sends fail; callers gate on
// cfg.Integration.ResendAPIKey before enqueueing report mail.
func NewClient(cfg *config.Config, logger *zerolog.Logger) *Client {
	return &Client{
		client: resend.NewClient(cfg.Integration.ResendAPIKey),
		logger: logger,
	}
}

// SendEmail sends an email with HTML rendered from a template file.
//
// Steps:
//   - load templates/emails/<templateName>.html from disk
//   - execute it with data into a buffer
//   - call the Resend API
func (c *Client) SendEmail(to, subject string, templateName Template, data map[string]string) error {
	tmplPath := fmt.Sprintf("%s/%s.html", "templates/emails", templateName)

	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return errors.Wrapf(err, "failed to parse email template %s", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return errors.Wrapf(err, "failed to execute email template %s", templateName)
	}

	params := &resend.SendEmailRequest{
		// Resend requires a verified sender domain/address.
		From:    fmt.Sprintf("%s <%s>", "Archon", "reports@archonhq.dev"),
		To:      []string{to},
		Subject: subject,
		Html:    body.String(),
	}

	_, err = c.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
