package models

import "time"

const (
	ChannelEmail = "email"

	StatusSent   = "sent"
	StatusFailed = "failed"

	TypeCustomerConfirmation = "customer_confirmation"
	TypeAdminAlert           = "admin_alert"
)

// NotificationLog records one outbound mail attempt.
type NotificationLog struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderRef  string    `json:"order_ref" gorm:"index"`
	Recipient string    `json:"recipient"`
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	Status    string    `json:"status"`
	MessageID string    `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// OrderEvent is published to SNS once a paid order has been notified.
type OrderEvent struct {
	Type       string    `json:"type"` // "order_paid"
	Source     string    `json:"source"`
	OrderRef   string    `json:"order_ref"`
	PaymentRef string    `json:"payment_ref,omitempty"`
	Email      string    `json:"email"`
	Plan       string    `json:"plan"`
	Amount     int64     `json:"amount"` // minor units
	Currency   string    `json:"currency"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	EventOrderPaid = "order_paid"

	SourceWebhook   = "stripe-webhook"
	SourceSaveOrder = "save-order"
)
