// Package email sends operator-facing notifications — today, only run
// failure alerts — over SendGrid.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"go.uber.org/zap"
)

// Provider defines the interface for email providers
type Provider interface {
	Send(ctx context.Context, to, subject, body string, isHTML bool) error
}

// Config holds email service configuration
type Config struct {
	FromEmail      string
	FromName       string
	SendGridAPIKey string
	OpsRecipients  []string // addresses notified on run failure
	BaseURL        string
}

// DefaultConfig returns a default configuration; SendGridAPIKey must still
// be supplied from vault/environment before Send will succeed.
func DefaultConfig() *Config {
	return &Config{
		FromEmail: "fleet-ops@depotfleet.local",
		FromName:  "Fleet Planner",
		BaseURL:   "http://localhost:8080",
	}
}

// Service implements the Notifier interface over SendGrid.
type Service struct {
	config    *Config
	provider  Provider
	templates map[string]*template.Template
	log       *zap.Logger
}

// NewService creates a new email service.
func NewService(config *Config, log *zap.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.SendGridAPIKey == "" {
		return nil, fmt.Errorf("sendgrid API key is required")
	}

	s := &Service{
		config:    config,
		provider:  NewSendGridProvider(config.SendGridAPIKey, config.FromEmail, config.FromName),
		templates: make(map[string]*template.Template),
		log:       log,
	}
	s.templates["run_failed"] = template.Must(template.New("run_failed").Parse(runFailedTemplate))

	return s, nil
}

// NotifyRunFailure implements ports.Notifier: it alerts every configured
// ops recipient that a run failed, with its site, kind, and reason (§7).
func (s *Service) NotifyRunFailure(siteID, runKind, reason string) error {
	ctx := context.Background()
	data := map[string]interface{}{
		"Subject": fmt.Sprintf("[fleet-planner] %s run failed for site %s", runKind, siteID),
		"SiteID":  siteID,
		"RunKind": runKind,
		"Reason":  reason,
		"BaseURL": s.config.BaseURL,
	}

	var lastErr error
	for _, to := range s.config.OpsRecipients {
		if err := s.SendTemplate(ctx, to, "run_failed", data); err != nil {
			s.log.Error("failed to notify run failure",
				zap.String("to", to), zap.String("site_id", siteID), zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

const runFailedTemplate = `<html><body>
<h2>{{.RunKind}} run failed</h2>
<p>Site: {{.SiteID}}</p>
<p>Reason: {{.Reason}}</p>
</body></html>`

// Send sends a generic email
func (s *Service) Send(ctx context.Context, to, subject, body string) error {
	s.log.Info("Sending email",
		zap.String("to", to),
		zap.String("subject", subject),
	)

	if err := s.provider.Send(ctx, to, subject, body, false); err != nil {
		s.log.Error("Failed to send email",
			zap.String("to", to),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// SendHTML sends an HTML email
func (s *Service) SendHTML(ctx context.Context, to, subject, htmlBody string) error {
	s.log.Info("Sending HTML email",
		zap.String("to", to),
		zap.String("subject", subject),
	)

	if err := s.provider.Send(ctx, to, subject, htmlBody, true); err != nil {
		s.log.Error("Failed to send HTML email",
			zap.String("to", to),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send HTML email: %w", err)
	}

	return nil
}

// SendTemplate sends an email using a template
func (s *Service) SendTemplate(ctx context.Context, to, templateName string, data map[string]interface{}) error {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return fmt.Errorf("template not found: %s", templateName)
	}

	// Add base URL to data
	if data == nil {
		data = make(map[string]interface{})
	}
	data["BaseURL"] = s.config.BaseURL

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	subject, ok := data["Subject"].(string)
	if !ok {
		subject = "Notification from Fleet Planner"
	}

	return s.SendHTML(ctx, to, subject, buf.String())
}
