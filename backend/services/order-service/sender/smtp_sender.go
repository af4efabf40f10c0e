package sender

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const implicitTLSPort = 465

type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	fromName string
	now      func() time.Time
}

func NewSMTPSender(host string, port int, username, password, fromName string) (*SMTPSender, error) {
	if host == "" {
		return nil, fmt.Errorf("SMTP_HOST not set")
	}
	if port == 0 {
		return nil, fmt.Errorf("SMTP_PORT not set")
	}
	if username == "" {
		return nil, fmt.Errorf("SMTP_USER not set")
	}
	if password == "" {
		return nil, fmt.Errorf("SMTP_PASS not set")
	}

	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		fromName: fromName,
		now:      time.Now,
	}, nil
}

// SendEmail delivers msg over implicit TLS on port 465, or over STARTTLS
// (when the server offers it) on any other port.
func (s *SMTPSender) SendEmail(ctx context.Context, msg Message) (SendResult, error) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.host)
	body, err := s.buildMessage(msg, messageID)
	if err != nil {
		return SendResult{}, err
	}

	client, err := s.dial(ctx)
	if err != nil {
		return SendResult{}, fmt.Errorf("smtp dial failed: %w", err)
	}
	defer client.Close() //nolint:errcheck

	if ok, _ := client.Extension("AUTH"); ok {
		if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return SendResult{}, fmt.Errorf("smtp auth failed: %w", err)
		}
	}
	if err := client.Mail(s.username); err != nil {
		return SendResult{}, fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return SendResult{}, fmt.Errorf("smtp RCPT TO %s failed: %w", msg.To, err)
	}
	w, err := client.Data()
	if err != nil {
		return SendResult{}, fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}
	_ = client.Quit()

	return SendResult{MessageID: messageID, SentAt: s.now()}, nil
}

func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	tlsConfig := &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}

	dialer := &net.Dialer{Timeout: 15 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if s.port == implicitTLSPort {
		conn = tls.Client(conn, tlsConfig)
	}
	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, err
	}

	if s.port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close() //nolint:errcheck
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}
	return client, nil
}

func (s *SMTPSender) buildMessage(msg Message, messageID string) ([]byte, error) {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	fromName := msg.FromName
	if fromName == "" {
		fromName = s.fromName
	}
	from := (&mail.Address{Name: fromName, Address: s.username}).String()

	var buf bytes.Buffer
	writeHeader := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	writeHeader("From", from)
	writeHeader("To", msg.To)
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader("Date", s.now().Format(time.RFC1123Z))
	writeHeader("Message-ID", messageID)
	writeHeader("MIME-Version", "1.0")

	if msg.Text == "" {
		writeHeader("Content-Type", "text/html; charset=UTF-8")
		writeHeader("Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		if err := writeQuotedPrintable(&buf, msg.HTML); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	boundary := "alt-" + uuid.NewString()
	writeHeader("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
	buf.WriteString("\r\n")

	for _, part := range []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		writeHeader("Content-Type", part.contentType)
		writeHeader("Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		if err := writeQuotedPrintable(&buf, part.body); err != nil {
			return nil, err
		}
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), nil
}

func writeQuotedPrintable(buf *bytes.Buffer, body string) error {
	qp := quotedprintable.NewWriter(buf)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}
