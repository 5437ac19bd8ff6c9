// Package mail renders and delivers transactional email over SMTP.
package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html"
	"html/template"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/ayush/storefinder/internal/metrics"
)

//go:embed templates/*.html
var templatesFS embed.FS

const sendTimeout = 30 * time.Second

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("smtp host not configured")

// Message is one email rendered from a named template.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     any
}

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends Messages. SendAsync deliveries are tracked so Wait can drain them.
type Mailer struct {
	cfg       Config
	templates *template.Template
	text      *bluemonday.Policy
	send      sendFunc
	wg        sync.WaitGroup
}

func New(cfg Config) (*Mailer, error) {
	t, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Mailer{
		cfg:       cfg,
		templates: t,
		text:      bluemonday.StrictPolicy(),
		send:      smtp.SendMail,
	}, nil
}

var blankLines = regexp.MustCompile(`\n\s*\n+`)

// Render returns the HTML body and a plain-text alternative derived from it.
func (m *Mailer) Render(msg Message) (htmlBody, textBody string, err error) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, msg.Template+".html", msg.Data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", msg.Template, err)
	}
	htmlBody = buf.String()
	textBody = html.UnescapeString(m.text.Sanitize(htmlBody))
	textBody = blankLines.ReplaceAllString(strings.TrimSpace(textBody), "\n\n")
	return htmlBody, textBody, nil
}

// Send renders msg and delivers it.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if m.cfg.Host == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	htmlBody, textBody, err := m.Render(msg)
	if err != nil {
		return err
	}
	body, err := m.compose(msg, htmlBody, textBody)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// SendAsync delivers msg in the background. Failures are logged with the
// logger carried by ctx and never reach the caller.
func (m *Mailer) SendAsync(ctx context.Context, msg Message) {
	ctx = context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()

		logger := zerolog.Ctx(ctx)
		if err := m.Send(ctx, msg); err != nil {
			metrics.MailSent.WithLabelValues("failed").Inc()
			logger.Error().Err(err).Str("template", msg.Template).Msg("send mail")
			return
		}
		metrics.MailSent.WithLabelValues("sent").Inc()
		logger.Info().Str("template", msg.Template).Msg("mail sent")
	}()
}

// Wait blocks until every SendAsync delivery has finished.
func (m *Mailer) Wait() {
	m.wg.Wait()
}

func (m *Mailer) compose(msg Message, htmlBody, textBody string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())

	for _, part := range []struct{ ctype, body string }{
		{"text/plain; charset=utf-8", textBody},
		{"text/html; charset=utf-8", htmlBody},
	} {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", part.ctype)
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
