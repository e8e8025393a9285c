package notification

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"syscall"
	"time"

	"dropout-alerts/internal/common/config"
	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/models"
)

const implicitTLSPort = 465

const (
	MsgEmailSent        = "Email envoyé avec succès"
	MsgEmailAuthFailed  = "Erreur d'authentification : Vérifiez votre email et mot de passe"
	msgEmailConnect     = "Erreur de connexion au serveur SMTP : %v. Vérifiez le serveur (%s) et le port (%d)"
	msgEmailDisconnect  = "Connexion interrompue : %v. Le serveur a fermé la connexion. Vérifiez votre connexion réseau et les paramètres SMTP."
	msgEmailSendFailure = "Erreur lors de l'envoi : %v"
)

// SMTPClient is the subset of *smtp.Client the email channel drives.
type SMTPClient interface {
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer opens an SMTP session. Port 465 must come back already wrapped in
// TLS; other ports come back in plaintext and are upgraded with STARTTLS.
type Dialer func(ctx context.Context, host string, port int) (SMTPClient, error)

// EmailChannel sends the HTML alert through an SMTP account.
type EmailChannel struct {
	cfg    config.EmailConfig
	dial   Dialer
	logger logger.Logger
	now    func() time.Time
}

type EmailOption func(*EmailChannel)

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) EmailOption {
	return func(c *EmailChannel) { c.dial = d }
}

func NewEmailChannel(cfg config.EmailConfig, log logger.Logger, opts ...EmailOption) *EmailChannel {
	c := &EmailChannel{
		cfg:    cfg,
		dial:   DialSMTP,
		logger: logger.OrDefault(log).Named("email"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *EmailChannel) Type() models.ChannelType { return models.ChannelEmail }

func (c *EmailChannel) Configured() bool { return c.cfg.Complete() }

// Send has no intrinsic timeout; ctx's deadline bounds the dial and the
// whole SMTP conversation.
func (c *EmailChannel) Send(ctx context.Context, payload *models.AlertPayload) models.DeliveryResult {
	if !c.Configured() {
		return SkippedResult(models.ChannelEmail)
	}

	msg, err := buildMessage(c.cfg.FromEmail, c.cfg.RecipientEmail, payload.Title, payload.TextBody, payload.HTMLBody, c.now())
	if err != nil {
		return c.failure(payload, fmt.Sprintf(msgEmailSendFailure, err), err)
	}

	client, err := c.dial(ctx, c.cfg.SMTPServer, c.cfg.SMTPPort)
	if err != nil {
		if isDisconnect(err) {
			return c.failure(payload, fmt.Sprintf(msgEmailDisconnect, err), err)
		}
		return c.failure(payload, fmt.Sprintf(msgEmailConnect, err, c.cfg.SMTPServer, c.cfg.SMTPPort), err)
	}
	defer client.Close()

	if c.cfg.SMTPPort != implicitTLSPort {
		if err := client.StartTLS(&tls.Config{ServerName: c.cfg.SMTPServer}); err != nil {
			return c.failure(payload, c.transportMessage(err), err)
		}
	}

	auth := smtp.PlainAuth("", c.cfg.FromEmail, c.cfg.Password, c.cfg.SMTPServer)
	if err := client.Auth(auth); err != nil {
		if isDisconnect(err) {
			return c.failure(payload, fmt.Sprintf(msgEmailDisconnect, err), err)
		}
		return c.failure(payload, MsgEmailAuthFailed, err)
	}

	if err := c.transmit(client, msg); err != nil {
		return c.failure(payload, c.transportMessage(err), err)
	}

	c.logger.Info("email alert sent", map[string]interface{}{
		"alertId":   payload.ID,
		"recipient": c.cfg.RecipientEmail,
		"students":  len(payload.Targets),
	})
	return models.NewSuccessResult(models.ChannelEmail, MsgEmailSent)
}

func (c *EmailChannel) transmit(client SMTPClient, msg []byte) error {
	if err := client.Mail(c.cfg.FromEmail); err != nil {
		return err
	}
	if err := client.Rcpt(c.cfg.RecipientEmail); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (c *EmailChannel) transportMessage(err error) string {
	if isDisconnect(err) {
		return fmt.Sprintf(msgEmailDisconnect, err)
	}
	return fmt.Sprintf(msgEmailSendFailure, err)
}

func (c *EmailChannel) failure(payload *models.AlertPayload, message string, err error) models.DeliveryResult {
	c.logger.Warn("email alert failed", map[string]interface{}{
		"alertId": payload.ID,
		"server":  c.cfg.SMTPServer,
		"port":    c.cfg.SMTPPort,
		"error":   err.Error(),
	})
	return models.NewFailureResult(models.ChannelEmail, message)
}

// isDisconnect reports whether the peer dropped the connection mid-session.
func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// DialSMTP connects to host:port, using implicit TLS on port 465.
func DialSMTP(ctx context.Context, host string, port int) (SMTPClient, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var (
		conn net.Conn
		err  error
	)
	if port == implicitTLSPort {
		d := &tls.Dialer{Config: &tls.Config{ServerName: host}}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}
