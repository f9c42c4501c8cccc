package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/JonnyShabli/registry-mailer/internal/models"
)

const DefaultDialTimeout = 30 * time.Second

type Config struct {
	DialTimeout        time.Duration `yaml:"dial_timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// SMTPDialer opens real relay sessions: implicit TLS for "smtps", otherwise a
// plain connection upgraded with STARTTLS when the server offers it.
type SMTPDialer struct {
	timeout            time.Duration
	insecureSkipVerify bool
}

func NewSMTPDialer(cfg Config) *SMTPDialer {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	return &SMTPDialer{
		timeout:            cfg.DialTimeout,
		insecureSkipVerify: cfg.InsecureSkipVerify,
	}
}

func (d *SMTPDialer) Dial(ctx context.Context, p models.SMTPParams) (Session, error) {
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	tlsCfg := &tls.Config{
		ServerName:         p.Host,
		InsecureSkipVerify: d.insecureSkipVerify,
	}
	netDialer := &net.Dialer{Timeout: d.timeout}

	var (
		conn net.Conn
		err  error
	)
	if p.ImplicitTLS() {
		conn, err = (&tls.Dialer{NetDialer: netDialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, models.NewUpstreamError(fmt.Sprintf("connect to %s failed", addr), err)
	}
	s := &smtpSession{conn: conn, timeout: d.timeout}
	s.touch()

	client, err := smtp.NewClient(conn, p.Host)
	if err != nil {
		_ = conn.Close()
		return nil, models.NewUpstreamError(fmt.Sprintf("SMTP handshake with %s failed", addr), err)
	}
	s.client = client

	if !p.ImplicitTLS() {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsCfg); err != nil {
				_ = client.Close()
				return nil, models.NewUpstreamError("STARTTLS failed", err)
			}
		}
	}

	if p.Username != "" || p.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", p.Username, p.Password, p.Host)); err != nil {
			_ = client.Close()
			return nil, models.NewAuthError("SMTP login failed", err)
		}
	}
	return s, nil
}

type smtpSession struct {
	conn    net.Conn
	client  *smtp.Client
	timeout time.Duration
}

// touch pushes the connection deadline forward before each exchange.
func (s *smtpSession) touch() {
	if s.timeout > 0 {
		_ = s.conn.SetDeadline(time.Now().Add(s.timeout))
	}
}

func (s *smtpSession) Send(from string, to []string, msg []byte) error {
	s.touch()
	if err := s.client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := s.client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := s.client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *smtpSession) Close() error {
	s.touch()
	if err := s.client.Quit(); err != nil {
		_ = s.client.Close()
		return err
	}
	return nil
}
