package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"teachassist-backend/internal/components/assert"
	"teachassist-backend/internal/components/telemetry"

	"github.com/jordan-wright/email"
)

const report_email_send = "email.send"

type SmtpConfig struct {
	Server       string `json:"server" validate:"required"`
	Port         int    `json:"port" validate:"required,gt=0"`
	EmailAddress string `json:"email_address" validate:"required,email"`
	Password     string `json:"password"`
	// To defaults to EmailAddress.
	To string `json:"to" validate:"omitempty,email"`
}

type sendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

func send(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

// EmailNotifier sends every batch of changes as one email.
type EmailNotifier struct {
	config SmtpConfig
	send   sendFunc
	tel    telemetry.API
}

func NewEmailNotifier(config SmtpConfig, tel telemetry.API) EmailNotifier {
	assert.NotNil(tel)
	assert.NotEmptyStr(config.Server)
	return EmailNotifier{
		config: config,
		send:   send,
		tel:    telemetry.NewScopedAPI("notify", tel),
	}
}

func (n EmailNotifier) mail(changes []Change) *email.Email {
	to := n.config.To
	if to == "" {
		to = n.config.EmailAddress
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("TeachAssist <%s>", n.config.EmailAddress)
	mail.To = []string{to}
	if len(changes) == 1 {
		mail.Subject = changes[0].Title()
	} else {
		mail.Subject = fmt.Sprintf("%d grade changes", len(changes))
	}

	var body strings.Builder
	for _, change := range changes {
		body.WriteString(change.Title())
		body.WriteString("\n")
		body.WriteString(change.Body())
		body.WriteString("\n\n")
	}
	mail.Text = []byte(strings.TrimSpace(body.String()))
	return mail
}

func (n EmailNotifier) Notify(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	mail := n.mail(changes)
	addr := fmt.Sprintf("%s:%d", n.config.Server, n.config.Port)

	err := n.send(
		mail,
		addr,
		smtp.PlainAuth("", n.config.EmailAddress, n.config.Password, n.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = n.send(mail, addr, nil)
	}
	if err != nil {
		n.tel.ReportBroken(report_email_send, err, addr)
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
