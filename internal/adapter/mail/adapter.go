// Package mail delivers crash notifications as email. The message is
// composed as proper MIME and handed to the configured SMTP relay.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"github.com/crashfeed/relay/internal/adapter"
	"github.com/crashfeed/relay/internal/model"
)

// dialTimeout bounds the TCP connect to the relay, matching the HTTP
// adapters' client timeout.
const dialTimeout = 30 * time.Second

// Adapter sends crash notification emails through one SMTP relay.
type Adapter struct {
	host     string
	port     string
	username string
	password string
	from     string
	to       []string
}

// New builds a mail adapter from host/port/from/to settings and the
// smtp_password credential. Without a username the relay is used
// unauthenticated.
func New(cfg model.HookConfig, credential func(key string) (string, error)) (*Adapter, error) {
	host := cfg.Setting("host")
	from := cfg.Setting("from")
	to := cfg.Setting("to")
	if host == "" || from == "" || to == "" {
		return nil, fmt.Errorf("mail hook %s: host, from and to settings are required", cfg.ID)
	}

	port := cfg.Setting("port")
	if port == "" {
		port = "587"
	}

	a := &Adapter{
		host:     host,
		port:     port,
		username: cfg.Setting("username"),
		from:     from,
		to:       []string{to},
	}

	if a.username != "" {
		password, err := credential("smtp_password")
		if err != nil || password == "" {
			return nil, fmt.Errorf("mail hook %s: missing smtp_password credential", cfg.ID)
		}
		a.password = password
	}

	return a, nil
}

// Factory adapts New to the registry's constructor signature.
func Factory(cfg model.HookConfig, credential func(key string) (string, error)) (adapter.Adapter, error) {
	return New(cfg, credential)
}

// Type returns the hook type identifier for mail.
func (a *Adapter) Type() model.HookType {
	return model.HookTypeMail
}

// Verify dials the SMTP relay and authenticates without sending
// anything.
func (a *Adapter) Verify(ctx context.Context) (bool, string) {
	if err := a.checkRelay(ctx); err != nil {
		return false, "Oops! Please check your mail settings again."
	}
	return true, "Successfully verified Mail settings"
}

// NotifyImpactChange composes and sends one notification email. Mail
// has no record to reference later, so success yields an empty
// resource.
func (a *Adapter) NotifyImpactChange(ctx context.Context, payload *model.CrashPayload) (adapter.Resource, error) {
	msg, err := a.compose(payload)
	if err != nil {
		return nil, fmt.Errorf("composing notification mail: %w", err)
	}

	if err := a.send(ctx, msg); err != nil {
		return nil, fmt.Errorf("sending notification mail: %w", err)
	}

	return adapter.Resource{}, nil
}

// compose renders the MIME message for a crash payload.
func (a *Adapter) compose(payload *model.CrashPayload) ([]byte, error) {
	var buf bytes.Buffer

	var h gomail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*gomail.Address{{Address: a.from}})
	to := make([]*gomail.Address, 0, len(a.to))
	for _, addr := range a.to {
		to = append(to, &gomail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	h.SetSubject(adapter.ImpactSummary(payload))

	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, adapter.ImpactDescription(payload)); err != nil {
		w.Close()
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing message: %w", err)
	}

	return buf.Bytes(), nil
}

// send pushes the composed message through the relay. smtp.SendMail
// upgrades to STARTTLS when the server offers it.
func (a *Adapter) send(ctx context.Context, msg []byte) error {
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(a.addr(), a.auth(), a.from, a.to, msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// checkRelay performs the verification handshake: connect, upgrade to
// TLS when offered, authenticate, quit. The handshake runs off the
// calling goroutine so a silent relay cannot outlive the context;
// cancellation closes the connection, which unblocks the handshake.
func (a *Adapter) checkRelay(ctx context.Context) error {
	conn, err := (&net.Dialer{Timeout: dialTimeout}).DialContext(ctx, "tcp", a.addr())
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", a.addr(), err)
	}

	done := make(chan error, 1)
	go func() {
		defer conn.Close()

		c, err := smtp.NewClient(conn, a.host)
		if err != nil {
			done <- fmt.Errorf("greeting from %s: %w", a.addr(), err)
			return
		}
		defer c.Close()

		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: a.host}); err != nil {
				done <- fmt.Errorf("starting TLS: %w", err)
				return
			}
		}

		if auth := a.auth(); auth != nil {
			if err := c.Auth(auth); err != nil {
				done <- fmt.Errorf("authenticating: %w", err)
				return
			}
		}

		done <- c.Quit()
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (a *Adapter) addr() string {
	return a.host + ":" + a.port
}

func (a *Adapter) auth() smtp.Auth {
	if a.username == "" {
		return nil
	}
	return smtp.PlainAuth("", a.username, a.password, a.host)
}
