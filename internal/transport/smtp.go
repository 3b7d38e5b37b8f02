package transport

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/nhle/priobox/internal/mailerr"
	"github.com/nhle/priobox/internal/model"
)

const protoSMTP = "smtp"

// SMTPDispatcher composes MIME messages and submits them over SMTP.
type SMTPDispatcher struct {
	dialer *Dialer
	logger *log.Logger
	now    func() time.Time
}

// NewSMTPDispatcher creates an SMTP dispatcher.
func NewSMTPDispatcher(dialer *Dialer, logger *log.Logger) *SMTPDispatcher {
	return &SMTPDispatcher{dialer: dialer, logger: logger, now: time.Now}
}

// connect dials the account's SMTP server, negotiates security and
// authenticates with the supplied password.
func (d *SMTPDispatcher) connect(
	ctx context.Context, account model.Account, password string,
) (*smtp.Client, func(), error) {
	params, err := d.dialer.Params(account.SMTP())
	if err != nil {
		return nil, nil, fmt.Errorf("smtp settings for %s: %w", account.EmailAddress, err)
	}

	conn, err := d.dialer.Dial(ctx, protoSMTP, params)
	if err != nil {
		return nil, nil, err
	}

	stopWatch := closeOnCancel(ctx, conn)

	var client *smtp.Client
	if params.Mode == ModeStartTLS {
		client, err = smtp.NewClientStartTLS(conn, params.TLSConfig)
		if err != nil {
			stopWatch()
			_ = conn.Close()
			return nil, nil, mailerr.Transport(protoSMTP, params.Addr(), "starttls", err)
		}
	} else {
		client = smtp.NewClient(conn)
	}
	cleanup := func() {
		stopWatch()
		_ = client.Close()
	}

	if err := client.Auth(sasl.NewPlainClient("", account.Username, password)); err != nil {
		cleanup()
		return nil, nil, &mailerr.AuthError{
			Protocol: protoSMTP,
			Username: account.Username,
			Err:      err,
		}
	}

	d.logger.Debug("smtp connected",
		"account", account.ID, "addr", params.Addr(), "mode", params.Mode)

	return client, cleanup, nil
}

// TestConnection verifies that the account can authenticate.
func (d *SMTPDispatcher) TestConnection(
	ctx context.Context, account model.Account, password string,
) error {
	client, cleanup, err := d.connect(ctx, account, password)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.Noop(); err != nil {
		return mailerr.Transport(protoSMTP, account.SMTP().Addr(), "noop", err)
	}
	return client.Quit()
}

// Send builds out as a MIME message from the account address and submits
// it. Attachments without data are dropped. Errors are returned as-is;
// no retry is attempted here.
func (d *SMTPDispatcher) Send(
	ctx context.Context, account model.Account, password string, out model.Outgoing,
) error {
	from := &mail.Address{Name: account.DisplayName, Address: account.EmailAddress}

	dropped := len(out.Attachments) - len(usableAttachments(out.Attachments))
	if dropped > 0 {
		d.logger.Warn("dropping attachments without data",
			"account", account.ID, "count", dropped)
	}

	raw, err := BuildMessage(from, out, d.now())
	if err != nil {
		return fmt.Errorf("composing message: %w", err)
	}

	recipients := make([]string, 0, len(out.To))
	for _, to := range out.To {
		addr, err := mail.ParseAddress(to)
		if err != nil {
			return fmt.Errorf("invalid recipient %q: %w", to, err)
		}
		recipients = append(recipients, addr.Address)
	}

	client, cleanup, err := d.connect(ctx, account, password)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := account.SMTP().Addr()
	if err := client.SendMail(account.EmailAddress, recipients, bytes.NewReader(raw)); err != nil {
		return mailerr.Transport(protoSMTP, addr, "send", err)
	}
	if err := client.Quit(); err != nil {
		return mailerr.Transport(protoSMTP, addr, "quit", err)
	}

	d.logger.Info("message sent",
		"account", account.ID, "recipients", len(recipients), "bytes", len(raw))
	return nil
}
