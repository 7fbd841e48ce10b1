package mailer

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestSendDeliversRenderedTemplate(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m := New(config.SMTPConfig{Host: "smtp.example.com", Port: 2525, From: "no-reply@example.com"}, nil)
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := m.Send(context.Background(), TemplateVerifyEmail, "shopper@example.com", map[string]any{
		"FirstName":  "Sam",
		"OTP":        "123456",
		"TTLMinutes": 10,
	})
	require.NoError(t, err)
	require.Equal(t, "smtp.example.com:2525", gotAddr)
	require.Equal(t, "no-reply@example.com", gotFrom)
	require.Equal(t, []string{"shopper@example.com"}, gotTo)
	require.Contains(t, string(gotMsg), "Subject: Verify your email")
	require.Contains(t, string(gotMsg), "Your verification code is 123456")
}

func TestSendLogsWhenSMTPDisabled(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	m := New(config.SMTPConfig{}, logg)
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("smtp should not be used when disabled")
		return nil
	}

	require.NoError(t, m.Send(context.Background(), TemplateResendOTP, "a@b.com", map[string]any{"OTP": "654321"}))
	require.Contains(t, buf.String(), "smtp disabled")
	require.Contains(t, buf.String(), "a@b.com")
}

func TestSendErrors(t *testing.T) {
	m := New(config.SMTPConfig{Host: "smtp.example.com", Port: 25}, nil)
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	require.Error(t, m.Send(context.Background(), "unknown", "a@b.com", nil))
	require.Error(t, m.Send(context.Background(), TemplateResendOTP, " ", nil))
	require.ErrorContains(t, m.Send(context.Background(), TemplateResendOTP, "a@b.com", nil), "connection refused")
}
