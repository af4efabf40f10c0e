package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	apperrors "github.com/bouboudada/labbekids-site-V1/backend/services/common/errors"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/models"
	"github.com/bouboudada/labbekids-site-V1/backend/services/order-service/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

type webhookFixture struct {
	gateway *fakeGateway
	mail    *recordingSender
	idem    *memoryIdempotency
	sns     *recordingSNS
	svc     *confirmationServiceImpl
}

func newWebhookFixture(t *testing.T, idem repository.IdempotencyStore) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		gateway: &fakeGateway{secret: testWebhookSecret},
		mail:    &recordingSender{},
		sns:     &recordingSNS{},
	}
	if m, ok := idem.(*memoryIdempotency); ok {
		f.idem = m
	}
	obs := Observer{SNS: f.sns, TopicArn: "arn:aws:sns:eu-west-3:000000000000:order-events"}
	f.svc = NewConfirmationService(f.gateway, testComposer(t), testNotifier(f.mail), idem, obs, zap.NewNop()).(*confirmationServiceImpl)
	f.svc.now = fixedClock
	return f
}

func signedEvent(t *testing.T, secret, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_test_1",
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret})
	return signed.Payload, signed.Header
}

func completedSession(meta map[string]string) map[string]any {
	return map[string]any{
		"id":             "cs_test_abc",
		"object":         "checkout.session",
		"amount_total":   1490,
		"currency":       "eur",
		"customer_email": "jeanne@example.com",
		"payment_intent": "pi_test_123",
		"payment_status": "paid",
		"metadata":       meta,
	}
}

func fullMetadata(t *testing.T) map[string]string {
	t.Helper()
	order := models.Submission{
		"nom":            "Jeanne Dupont",
		"email":          "jeanne@example.com",
		"plan":           "standard",
		"prenomEnfants":  "Léo",
		"theme":          "pirates",
		"character1Name": "Lou",
		"character1Role": "cousin",
		"accept_cgv":     true,
	}.Order()
	return PackMetadata(order, models.ResolvePrice(order.Plan), fixedClock())
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	f := newWebhookFixture(t, nil)
	payload, header := signedEvent(t, "whsec_someone_else", EventCheckoutSessionCompleted, completedSession(fullMetadata(t)))

	out, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	assert.Equal(t, apperrors.KindSignature, apperrors.KindOf(err))
	assert.Equal(t, StateSignatureInvalid, out.State)
	assert.Empty(t, f.mail.sent)
	assert.Empty(t, f.gateway.lookups)
}

func TestHandleWebhook_MissingSignature(t *testing.T) {
	f := newWebhookFixture(t, nil)
	payload, _ := signedEvent(t, testWebhookSecret, EventCheckoutSessionCompleted, completedSession(fullMetadata(t)))

	out, err := f.svc.HandleWebhook(context.Background(), payload, "")
	require.Error(t, err)
	assert.Equal(t, StateSignatureInvalid, out.State)
	assert.Empty(t, f.mail.sent)
}

func TestHandleWebhook_TamperedPayload(t *testing.T) {
	f := newWebhookFixture(t, nil)
	payload, header := signedEvent(t, testWebhookSecret, EventCheckoutSessionCompleted, completedSession(fullMetadata(t)))
	tampered := []byte(strings.Replace(string(payload), "1490", "1", 1))

	_, err := f.svc.HandleWebhook(context.Background(), tampered, header)
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	assert.Empty(t, f.mail.sent)
}

func TestHandleWebhook_IgnoresOtherEventTypes(t *testing.T) {
	f := newWebhookFixture(t, nil)
	payload, header := signedEvent(t, testWebhookSecret, "payment_intent.succeeded", map[string]any{"id": "pi_1", "object": "payment_intent"})

	out, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, "payment_intent.succeeded", out.EventType)
	assert.Empty(t, f.mail.sent)
	assert.Empty(t, f.sns.messages)
}

func TestHandleWebhook_CompletedWithFullMetadata(t *testing.T) {
	f := newWebhookFixture(t, nil)
	payload, header := signedEvent(t, testWebhookSecret, EventCheckoutSessionCompleted, completedSession(fullMetadata(t)))

	out, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, "cs_test_abc", out.SessionID)
	assert.Empty(t, f.gateway.lookups)

	assert.Equal(t, []string{"jeanne@example.com", "admin@labbekids.test"}, f.mail.recipients())
	admin := f.mail.sent[1]
	assert.Equal(t, "🎵 NOUVELLE COMMANDE - Léo - 14.90€", admin.Subject)
	assert.Contains(t, admin.Text, "- Lou (cousin)")
	assert.Contains(t, admin.Text, "https://dashboard.stripe.com/payments/pi_test_123")
	assert.Contains(t, f.mail.sent[0].HTML, "cs_test_abc")

	ev := f.sns.lastEvent(t)
	assert.Equal(t, models.EventOrderPaid, ev.Type)
	assert.Equal(t, "cs_test_abc", ev.OrderRef)
	assert.Equal(t, "pi_test_123", ev.PaymentRef)
	assert.Equal(t, int64(1490), ev.Amount)
	assert.Equal(t, map[string]string{"event_type": "order_paid", "source": "stripe-webhook"}, f.sns.attributes[0])
}

func TestHandleWebhook_EssentialMetadataUsesLookup(t *testing.T) {
	f := newWebhookFixture(t, nil)
	f.gateway.lookup = &stripe.CheckoutSession{
		ID: "cs_test_abc",
		LineItems: &stripe.LineItemList{Data: []*stripe.LineItem{{
			Price: &stripe.Price{Product: &stripe.Product{
				Name:        "Chanson personnalisée LABBE kids - Formule premium",
				Description: "Pour Zoé",
			}},
		}}},
	}
	meta := map[string]string{
		"metadataMode":  MetadataModeEssential,
		"customerEmail": "jeanne@example.com",
		"customerName":  "Jeanne",
	}
	payload, header := signedEvent(t, testWebhookSecret, EventCheckoutSessionCompleted, completedSession(meta))

	_, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, []string{"cs_test_abc"}, f.gateway.lookups)
	require.Len(t, f.mail.sent, 2)
	assert.Contains(t, f.mail.sent[0].HTML, "💎 Premium (19.90€)")
	assert.Contains(t, f.mail.sent[0].HTML, "Zoé")
	assert.Contains(t, f.mail.sent[1].Text, "- Thème: Non spécifié")
}

func TestHandleWebhook_LookupFailureStillNotifies(t *testing.T) {
	f := newWebhookFixture(t, nil)
	f.gateway.lookupErr = errors.New("stripe unavailable")
	meta := map[string]string{"metadataMode": MetadataModeEssential, "customerEmail": "jeanne@example.com"}
	payload, header := signedEvent(t, testWebhookSecret, EventCheckoutSessionCompleted, completedSession(meta))

	_, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	require.Len(t, f.mail.sent, 2)
	assert.Equal(t, "🎵 NOUVELLE COMMANDE - Non spécifié - 14.90€", f.mail.sent[1].Subject)
}

func TestHandleWebhook_SendFailureAttemptsBothAndFails(t *testing.T) {
	idem := newMemoryIdempotency()
	f := newWebhookFixture(t, idem)
	f.mail.failTo = map[string]error{"jeanne@example.com": errSMTPDown}
	payload, header := signedEvent(t, testWebhookSecret, EventCheckoutSessionCompleted, completedSession(fullMetadata(t)))

	out, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.Error(t, err)
	assert.Equal(t, StateProcessingFailed, out.State)
	assert.Equal(t, http.StatusInternalServerError, apperrors.StatusOf(err))
	assert.ErrorIs(t, err, errSMTPDown)
	assert.Len(t, f.mail.sent, 2, "admin send is still attempted")
	assert.Equal(t, []string{"webhook:session:cs_test_abc"}, idem.released)
	assert.Empty(t, f.sns.messages)

	// The provider retry runs again once the transport recovers.
	f.mail.failTo = nil
	out, err = f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.Len(t, f.mail.sent, 4)
}

func TestHandleWebhook_DuplicateDeliveryWithGuard(t *testing.T) {
	f := newWebhookFixture(t, newMemoryIdempotency())
	payload, header := signedEvent(t, testWebhookSecret, EventCheckoutSessionCompleted, completedSession(fullMetadata(t)))

	_, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	out, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)

	assert.True(t, out.Duplicate)
	assert.Len(t, f.mail.sent, 2)
}

func TestHandleWebhook_DuplicateDeliveryWithoutGuard(t *testing.T) {
	f := newWebhookFixture(t, nil)
	payload, header := signedEvent(t, testWebhookSecret, EventCheckoutSessionCompleted, completedSession(fullMetadata(t)))

	for i := 0; i < 2; i++ {
		_, err := f.svc.HandleWebhook(context.Background(), payload, header)
		require.NoError(t, err)
	}
	assert.Len(t, f.mail.sent, 4)
}

func TestHandleWebhook_GuardUnavailableFailsOpen(t *testing.T) {
	idem := newMemoryIdempotency()
	idem.err = errors.New("redis down")
	f := newWebhookFixture(t, idem)
	payload, header := signedEvent(t, testWebhookSecret, EventCheckoutSessionCompleted, completedSession(fullMetadata(t)))

	_, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Len(t, f.mail.sent, 2)
}

func TestHandleWebhook_MalformedSession(t *testing.T) {
	f := newWebhookFixture(t, nil)
	payload, header := signedEvent(t, testWebhookSecret, EventCheckoutSessionCompleted, map[string]any{"object": "checkout.session"})

	out, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.Error(t, err)
	assert.Equal(t, StateProcessingFailed, out.State)
	assert.Equal(t, apperrors.KindSerialization, apperrors.KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, apperrors.StatusOf(err))
	assert.Empty(t, f.mail.sent)
}

func TestHandleWebhook_SNSFailureDoesNotFailOrder(t *testing.T) {
	f := newWebhookFixture(t, nil)
	f.sns.err = errors.New("sns throttled")
	payload, header := signedEvent(t, testWebhookSecret, EventCheckoutSessionCompleted, completedSession(fullMetadata(t)))

	out, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, StateDone, out.State)
}
