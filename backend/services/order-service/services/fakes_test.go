package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/models"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/sender"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

// ---- payment gateway ----

type fakeGateway struct {
	secret string

	created    []*stripe.CheckoutSessionParams
	createErr  error
	lookups    []string
	lookup     *stripe.CheckoutSession
	lookupErr  error
	sessionSeq int
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	g.created = append(g.created, params)
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.sessionSeq++
	id := "cs_test_" + strconv.Itoa(g.sessionSeq)
	return &stripe.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

func (g *fakeGateway) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, g.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

func (g *fakeGateway) GetCheckoutSession(_ context.Context, id string) (*stripe.CheckoutSession, error) {
	g.lookups = append(g.lookups, id)
	return g.lookup, g.lookupErr
}

// ---- mail ----

type recordingSender struct {
	mu     sync.Mutex
	sent   []sender.Message
	failTo map[string]error
}

func (s *recordingSender) SendEmail(_ context.Context, msg sender.Message) (sender.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	if err := s.failTo[msg.To]; err != nil {
		return sender.SendResult{}, err
	}
	return sender.SendResult{MessageID: "msg-" + msg.To, SentAt: time.Now()}, nil
}

func (s *recordingSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.To
	}
	return out
}

// ---- ledger ----

type memoryLedger struct {
	rows []models.LedgerRow
	err  error
}

func (l *memoryLedger) Append(_ context.Context, row models.LedgerRow) error {
	if l.err != nil {
		return l.err
	}
	l.rows = append(l.rows, row)
	return nil
}

// ---- idempotency ----

type memoryIdempotency struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
	err      error
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: map[string]bool{}}
}

func (m *memoryIdempotency) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}

// ---- sns ----

type recordingSNS struct {
	topics     []string
	messages   [][]byte
	attributes []map[string]string
	err        error
}

func (p *recordingSNS) Publish(_ context.Context, topicArn string, message []byte, attributes map[string]string) error {
	p.topics = append(p.topics, topicArn)
	p.messages = append(p.messages, message)
	p.attributes = append(p.attributes, attributes)
	return p.err
}

func (p *recordingSNS) lastEvent(t *testing.T) models.OrderEvent {
	t.Helper()
	require.NotEmpty(t, p.messages)
	var ev models.OrderEvent
	require.NoError(t, json.Unmarshal(p.messages[len(p.messages)-1], &ev))
	return ev
}

// ---- helpers ----

var errSMTPDown = errors.New("smtp: 421 service not available")

func fixedClock() time.Time { return time.Date(2025, 3, 14, 9, 5, 7, 0, time.UTC) }

func testComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer("admin@labbekids.test", "support@labbekids.test", "https://bouboudada.com")
	require.NoError(t, err)
	return c
}

func testNotifier(s sender.EmailSender) *Notifier {
	return NewNotifier(s, nil, zap.NewNop())
}
