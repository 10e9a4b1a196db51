package mailer

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/mailfold/mailfold/internal/config"
)

func testSMTP() *SMTP {
	return NewSMTP(
		config.SMTPConfig{Host: "relay.test", Port: 587},
		config.SenderConfig{Name: "Acme News", Email: "news@acme.test"},
		slog.Default(),
	)
}

func TestBuildMessage(t *testing.T) {
	s := testSMTP()

	raw, err := s.buildMessage(&Message{
		To:      "a@x.com",
		Subject: "Hi Alice",
		HTML:    "<p>Hello <strong>Alice</strong></p>",
		Text:    "Hello Alice",
	})
	if err != nil {
		t.Fatalf("buildMessage() error = %v", err)
	}

	body := string(raw)
	checks := []string{
		`From: "Acme News" <news@acme.test>`,
		"To: a@x.com",
		"Subject: Hi Alice",
		"multipart/alternative",
		"text/html",
		"text/plain",
	}
	for _, want := range checks {
		if !strings.Contains(body, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestBuildMessageTextOnly(t *testing.T) {
	s := testSMTP()

	raw, err := s.buildMessage(&Message{
		To:      "a@x.com",
		Subject: "Plain",
		Text:    "just text",
	})
	if err != nil {
		t.Fatalf("buildMessage() error = %v", err)
	}

	body := string(raw)
	if !strings.Contains(body, "just text") {
		t.Error("message missing text body")
	}
	if strings.Contains(body, "text/html") {
		t.Error("text-only message declares an html part")
	}
}
