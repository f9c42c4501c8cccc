package mailer

import (
	"context"
	"fmt"

	"github.com/JonnyShabli/registry-mailer/internal/models"
	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/jordan-wright/email"
	"go.uber.org/multierr"
)

type MailerInterface interface {
	SendAll(ctx context.Context, params models.SMTPParams, recipients []string, subject, html string,
		onSent func(sent, total int)) (int, error)
}

// Session is one authenticated connection to a mail relay.
type Session interface {
	Send(from string, to []string, msg []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, params models.SMTPParams) (Session, error)
}

type Mailer struct {
	dialer Dialer
	logger logster.Logger
}

func NewMailer(dialer Dialer, logger logster.Logger) *Mailer {
	return &Mailer{
		dialer: dialer,
		logger: logger.WithField("Layer", "Mailer"),
	}
}

// SendAll opens a single session and sends one message per recipient. The
// sending account is added to every envelope. The first failure stops the
// batch; messages already sent stay sent. Returns the number sent.
func (m *Mailer) SendAll(
	ctx context.Context,
	params models.SMTPParams,
	recipients []string,
	subject, html string,
	onSent func(sent, total int),
) (int, error) {
	log := m.logger.WithFields(map[string]interface{}{
		"smtp_host": params.Host,
		"smtp_port": params.Port,
		"smtp_user": params.Username,
	})

	session, err := m.dialer.Dial(ctx, params)
	if err != nil {
		log.WithError(err).Errorf("smtp session setup failed")
		return 0, err
	}

	total := len(recipients)
	for i, rcpt := range recipients {
		if err := ctx.Err(); err != nil {
			return i, multierr.Append(fmt.Errorf("sending cancelled after %d of %d emails: %w", i, total, err), session.Close())
		}

		msg, err := BuildMessage(params.Username, rcpt, subject, html)
		if err != nil {
			return i, multierr.Append(fmt.Errorf("build message for %s failed: %w", rcpt, err), session.Close())
		}
		if err := session.Send(params.Username, []string{rcpt, params.Username}, msg); err != nil {
			log.WithError(err).Errorf("send %d of %d failed", i+1, total)
			return i, multierr.Append(
				models.NewUpstreamError(fmt.Sprintf("sending to %s failed", rcpt), err),
				session.Close(),
			)
		}
		if onSent != nil {
			onSent(i+1, total)
		}
	}

	if err := session.Close(); err != nil {
		log.WithError(err).Warnf("closing smtp session failed after all sends")
	}
	log.Infof("sent %d emails", total)
	return total, nil
}

// BuildMessage renders an HTML message addressed to a single recipient.
func BuildMessage(from, to, subject, html string) ([]byte, error) {
	e := email.NewEmail()
	e.From = from
	e.To = []string{to}
	e.Subject = subject
	e.HTML = []byte(html)
	return e.Bytes()
}
