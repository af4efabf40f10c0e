package sender

import (
	"context"
	"time"
)

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Message is one outbound mail. Text is optional; when set the mail is sent
// as multipart/alternative.
type Message struct {
	To       string
	Subject  string
	HTML     string
	Text     string
	FromName string
}

type EmailSender interface {
	SendEmail(ctx context.Context, msg Message) (SendResult, error)
}
