package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pointspay/internal/config"
	"pointspay/internal/model"
)

const testSigningKey = "whsec_test_secret"

func testGateway() *StripeGateway {
	return NewStripeGateway(&config.Config{
		StripeSecretKey:    "sk_test_key",
		WebhookSigningKey:  testSigningKey,
		CheckoutSuccessURL: "https://example.com/success",
		CheckoutCancelURL:  "https://example.com/cancel",
	})
}

// signPayload builds a Stripe-Signature header: HMAC-SHA256 over
// "<timestamp>.<payload>" with the signing secret.
func signPayload(secret string, ts time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func settlementPayload() []byte {
	return []byte(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2025-03-31",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_123",
				"object": "checkout.session",
				"amount_total": 1000,
				"metadata": {"user_id": "u1", "points": "100"}
			}
		}
	}`)
}

func TestVerifyNotification_ValidSignature(t *testing.T) {
	gw := testGateway()
	payload := settlementPayload()

	n, err := gw.VerifyNotification(payload, signPayload(testSigningKey, time.Now(), payload))

	require.NoError(t, err)
	require.Equal(t, KindCheckoutCompleted, n.Kind)
	require.Equal(t, "evt_1", n.EventID)
	require.Equal(t, "cs_test_123", n.TransactionID)
	require.Equal(t, int64(1000), n.AmountMinorUnits)
	require.Equal(t, "u1", n.Metadata["user_id"])
	require.Equal(t, "100", n.Metadata["points"])
}

func TestVerifyNotification_TamperedPayload(t *testing.T) {
	gw := testGateway()
	payload := settlementPayload()
	signature := signPayload(testSigningKey, time.Now(), payload)

	// The decoded metadata still looks plausible; only the bytes changed.
	tampered := []byte(string(payload))
	tampered[len(tampered)-10] ^= 0x01

	_, err := gw.VerifyNotification(tampered, signature)

	require.ErrorIs(t, err, model.ErrAuthentication)
}

func TestVerifyNotification_WrongSecret(t *testing.T) {
	gw := testGateway()
	payload := settlementPayload()

	_, err := gw.VerifyNotification(payload, signPayload("whsec_other_secret", time.Now(), payload))

	require.ErrorIs(t, err, model.ErrAuthentication)
}

func TestVerifyNotification_StaleTimestamp(t *testing.T) {
	gw := testGateway()
	payload := settlementPayload()

	// Outside the default tolerance window.
	stale := time.Now().Add(-time.Hour)

	_, err := gw.VerifyNotification(payload, signPayload(testSigningKey, stale, payload))

	require.ErrorIs(t, err, model.ErrAuthentication)
}

func TestVerifyNotification_GarbageHeader(t *testing.T) {
	gw := testGateway()

	_, err := gw.VerifyNotification(settlementPayload(), "not-a-signature")

	require.ErrorIs(t, err, model.ErrAuthentication)
}

func TestVerifyNotification_NonSettlementKind(t *testing.T) {
	gw := testGateway()
	payload := []byte(`{
		"id": "evt_2",
		"object": "event",
		"api_version": "2025-03-31",
		"type": "payment_intent.created",
		"data": {"object": {"id": "pi_1", "object": "payment_intent"}}
	}`)

	n, err := gw.VerifyNotification(payload, signPayload(testSigningKey, time.Now(), payload))

	require.NoError(t, err)
	require.Equal(t, KindOther, n.Kind)
	require.Equal(t, "evt_2", n.EventID)
}
