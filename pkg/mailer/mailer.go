// Package mailer renders templated notifications and delivers them over SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"

	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

const (
	TemplateVerifyEmail = "verify-email"
	TemplateResendOTP   = "resend-otp"
)

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[string]emailTemplate{
	TemplateVerifyEmail: mustTemplate(
		"Verify your email",
		"Hi {{.FirstName}},\n\nYour verification code is {{.OTP}}. It expires in {{.TTLMinutes}} minutes.\n",
	),
	TemplateResendOTP: mustTemplate(
		"Your new verification code",
		"Your new verification code is {{.OTP}}. It expires in {{.TTLMinutes}} minutes.\n",
	),
}

func mustTemplate(subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, templateID, recipient string, vars map[string]any) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends templated mail over SMTP, or logs it when SMTP is not configured.
type Mailer struct {
	cfg  config.SMTPConfig
	logg *logger.Logger
	send sendFunc
}

// New builds a Mailer from the SMTP configuration.
func New(cfg config.SMTPConfig, logg *logger.Logger) *Mailer {
	return &Mailer{cfg: cfg, logg: logg, send: smtp.SendMail}
}

// Send renders templateID with vars and delivers it to recipient.
func (m *Mailer) Send(ctx context.Context, templateID, recipient string, vars map[string]any) error {
	tmpl, ok := templates[templateID]
	if !ok {
		return fmt.Errorf("unknown email template %q", templateID)
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}

	subject, err := render(tmpl.subject, vars)
	if err != nil {
		return fmt.Errorf("render subject: %w", err)
	}
	body, err := render(tmpl.body, vars)
	if err != nil {
		return fmt.Errorf("render body: %w", err)
	}

	if !m.cfg.Enabled() {
		if m.logg != nil {
			logCtx := m.logg.WithFields(ctx, map[string]any{
				"template":  templateID,
				"recipient": recipient,
				"subject":   subject,
			})
			m.logg.Info(logCtx, "smtp disabled; email not delivered")
		}
		return nil
	}

	msg := buildMessage(m.cfg.From, recipient, subject, body)
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.From, []string{recipient}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func render(t *template.Template, vars map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
