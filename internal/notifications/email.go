package notifications

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// EmailSender delivers notifications through an SMTP relay.
type EmailSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	dial     dialFunc
}

// NewEmailSender builds an SMTP sender.
func NewEmailSender(host string, port int, username, password, from string) *EmailSender {
	var d net.Dialer
	return &EmailSender{
		host:     strings.TrimSpace(host),
		port:     port,
		username: username,
		password: password,
		from:     strings.TrimSpace(from),
		dial:     d.DialContext,
	}
}

// Send implements Sender. The whole SMTP session, greeting included, is
// bounded by ctx: its deadline becomes the connection deadline and
// cancellation closes the connection.
func (e *EmailSender) Send(ctx context.Context, to string, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(e.host, strconv.Itoa(e.port))
	conn, err := e.dial(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := e.session(conn, to, buildMessage(e.from, to, p)); err != nil {
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("smtp send to %s: %w", to, ctxErr)
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("smtp send to %s: %w", to, context.DeadlineExceeded)
		}
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func (e *EmailSender) session(conn net.Conn, to string, msg []byte) error {
	c, err := smtp.NewClient(conn, e.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		return err
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
			return err
		}
	}
	if e.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", e.username, e.password, e.host)); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(e.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to string, p Payload) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", p.Title) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(p.Message, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
