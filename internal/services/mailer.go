package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"storefront_back_end/internal/shop"

	"github.com/wneessen/go-mail"
)

// sender est la partie de *mail.Client utilisée par le Mailer.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Attempts int
	Delay    time.Duration
}

// Mailer envoie les e-mails via SMTP avec un nombre borné de tentatives.
type Mailer struct {
	client   sender
	from     string
	attempts int
	delay    time.Duration
}

func NewMailer(cfg SMTPConfig) (*Mailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("client SMTP: %w", err)
	}
	return newMailer(client, cfg), nil
}

func newMailer(client sender, cfg SMTPConfig) *Mailer {
	m := &Mailer{client: client, from: cfg.From, attempts: cfg.Attempts, delay: cfg.Delay}
	if m.attempts < 1 {
		m.attempts = 1
	}
	return m
}

func (m *Mailer) Send(ctx context.Context, e shop.Email) error {
	msg, err := m.buildMsg(e)
	if err != nil {
		return err
	}

	delay := m.delay
	for attempt := 1; ; attempt++ {
		log.Println("📤 Envoi de l'e-mail à", e.To)
		err = m.client.DialAndSendWithContext(ctx, msg)
		if err == nil {
			return nil
		}
		if attempt >= m.attempts {
			return fmt.Errorf("envoi après %d tentative(s): %w", attempt, err)
		}
		log.Printf("⚠️ Envoi à %s échoué (tentative %d/%d): %v", e.To, attempt, m.attempts, err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("envoi interrompu: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (m *Mailer) buildMsg(e shop.Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("expéditeur invalide: %w", err)
	}
	if err := msg.To(e.To); err != nil {
		return nil, fmt.Errorf("destinataire invalide: %w", err)
	}
	msg.Subject(e.Subject)
	msg.SetBodyString(mail.TypeTextHTML, e.HTML)

	for _, a := range e.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := msg.AttachReader(a.Name, bytes.NewReader(a.Data), opts...); err != nil {
			return nil, fmt.Errorf("pièce jointe %s: %w", a.Name, err)
		}
	}
	return msg, nil
}
