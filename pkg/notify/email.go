package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/google/uuid"
)

// EmailGateway delivers texts through a carrier email-to-SMS gateway
// (<digits>@<gatewayDomain>) over SMTP with STARTTLS.
type EmailGateway struct {
	smtpHost      string
	smtpPort      string
	smtpUsername  string
	smtpPassword  string
	fromEmail     string
	gatewayDomain string
}

func NewEmailGateway(smtpHost, smtpPort, smtpUsername, smtpPassword, fromEmail, gatewayDomain string) *EmailGateway {
	return &EmailGateway{
		smtpHost:      smtpHost,
		smtpPort:      smtpPort,
		smtpUsername:  smtpUsername,
		smtpPassword:  smtpPassword,
		fromEmail:     fromEmail,
		gatewayDomain: gatewayDomain,
	}
}

// Address returns the gateway mailbox for a phone number.
func (g *EmailGateway) Address(phone string) string {
	return fmt.Sprintf("%s@%s", NormalizePhone(phone), g.gatewayDomain)
}

func (g *EmailGateway) Send(ctx context.Context, phone, message string) Result {
	if NormalizePhone(phone) == "" {
		return failure("invalid phone number %q", phone)
	}
	if err := ctx.Err(); err != nil {
		return failure("email gateway: %v", err)
	}

	to := g.Address(phone)
	id := uuid.NewString()
	if err := g.sendEmail(to, buildMessage(g.fromEmail, to, id, message)); err != nil {
		return failure("email gateway: %v", err)
	}
	return Result{Success: true, ID: id}
}

func buildMessage(from, to, id, body string) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nMessage-ID: <%s@fleet-safety>\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, to, id, body,
	))
}

func (g *EmailGateway) sendEmail(to string, message []byte) error {
	auth := smtp.PlainAuth("", g.smtpUsername, g.smtpPassword, g.smtpHost)

	conn, err := smtp.Dial(fmt.Sprintf("%s:%s", g.smtpHost, g.smtpPort))
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if err = conn.StartTLS(&tls.Config{ServerName: g.smtpHost}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	if err = conn.Auth(auth); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	if err = conn.Mail(g.fromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	return conn.Quit()
}
