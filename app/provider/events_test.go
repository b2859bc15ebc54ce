package provider

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedHeader(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func newWebhookProvider() *StripeProvider {
	return NewStripeProvider(StripeConfig{SecretKey: "sk_test_123", WebhookSecret: testWebhookSecret})
}

const paidSessionPayload = `{
	"id": "evt_paid_1",
	"object": "event",
	"type": "checkout.session.completed",
	"created": 1735689600,
	"data": {"object": {
		"id": "cs_test_paid",
		"object": "checkout.session",
		"mode": "payment",
		"payment_status": "paid",
		"customer": "cus_123",
		"payment_intent": "pi_123",
		"amount_subtotal": 4200,
		"amount_total": 4200,
		"currency": "eur",
		"metadata": {"fps_number": "12345678901234567890123456", "fps_amount": "35", "service_fees": "7", "payment_method": "split3"}
	}}
}`

func TestVerifyWebhookDecodesPaidSession(t *testing.T) {
	payload := []byte(paidSessionPayload)
	event, err := newWebhookProvider().VerifyWebhook(payload, signedHeader(t, payload, testWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, "evt_paid_1", event.ID)
	assert.Equal(t, "checkout.session.completed", event.Type)
	require.Equal(t, KindOneTimePaymentCompleted, event.Data.Kind())

	data := event.Data.(OneTimePaymentCompleted)
	assert.Equal(t, "cs_test_paid", data.Session.ID)
	assert.Equal(t, "cus_123", data.Session.CustomerID)
	assert.Equal(t, "pi_123", data.Session.PaymentIntentID)
	assert.Equal(t, int64(4200), data.Session.AmountTotal)
	assert.Equal(t, "eur", data.Session.Currency)
	assert.Equal(t, "35", data.Session.Metadata["fps_amount"])
	assert.Equal(t, "cus_123", event.CustomerID())
	assert.Equal(t, "cs_test_paid", event.CheckoutSessionID())
}

func TestVerifyWebhookRejectsTamperedBody(t *testing.T) {
	payload := []byte(paidSessionPayload)
	header := signedHeader(t, payload, testWebhookSecret)

	tampered := []byte(`{"id":"evt_paid_1","type":"checkout.session.completed","data":{"object":{"amount_total":1}}}`)
	_, err := newWebhookProvider().VerifyWebhook(tampered, header)
	assert.True(t, errors.Is(err, ErrSignatureInvalid))
}

func TestVerifyWebhookRejectsWrongSecret(t *testing.T) {
	payload := []byte(paidSessionPayload)
	_, err := newWebhookProvider().VerifyWebhook(payload, signedHeader(t, payload, "whsec_other"))
	assert.True(t, errors.Is(err, ErrSignatureInvalid))
}

func TestVerifyWebhookRequiresSecret(t *testing.T) {
	p := NewStripeProvider(StripeConfig{SecretKey: "sk_test_123"})
	_, err := p.VerifyWebhook([]byte(paidSessionPayload), "t=1,v1=abc")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestParseEventClassification(t *testing.T) {
	cases := []struct {
		name     string
		payload  string
		kind     EventKind
		customer string
	}{
		{
			name:     "subscription checkout",
			payload:  `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","mode":"subscription","payment_status":"paid","customer":"cus_sub"}}}`,
			kind:     KindSubscriptionChanged,
			customer: "cus_sub",
		},
		{
			name:    "unpaid one-time checkout",
			payload: `{"id":"evt_2","type":"checkout.session.completed","data":{"object":{"id":"cs_2","object":"checkout.session","mode":"payment","payment_status":"unpaid","customer":"cus_1"}}}`,
			kind:    KindUnhandled,
		},
		{
			name:    "checkout without customer",
			payload: `{"id":"evt_3","type":"checkout.session.completed","data":{"object":{"id":"cs_3","object":"checkout.session","mode":"payment","payment_status":"paid"}}}`,
			kind:    KindUnhandled,
		},
		{
			name:     "subscription update with customer",
			payload:  `{"id":"evt_4","type":"customer.subscription.updated","data":{"object":{"id":"sub_1","object":"subscription","customer":"cus_upd"}}}`,
			kind:     KindSubscriptionChanged,
			customer: "cus_upd",
		},
		{
			name:    "event without customer",
			payload: `{"id":"evt_5","type":"product.created","data":{"object":{"id":"prod_1","object":"product"}}}`,
			kind:    KindUnhandled,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.kind, event.Data.Kind())
			assert.Equal(t, tc.customer, event.CustomerID())
		})
	}
}

func TestParseEventRejectsMissingID(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":"checkout.session.completed"}`))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`not json`))
	assert.Error(t, err)
}
