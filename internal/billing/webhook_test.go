package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signBody(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", timestamp, body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestParseSignatureHeader(t *testing.T) {
	sig, err := ParseSignatureHeader("t=1700000000,te=abc,li=def")
	require.NoError(t, err)
	assert.Equal(t, "1700000000", sig.Timestamp)
	assert.Equal(t, "abc", sig.Test)
	assert.Equal(t, "def", sig.Live)

	// Unknown keys and whitespace are tolerated.
	sig, err = ParseSignatureHeader("t=1, te=x, v99=ignored")
	require.NoError(t, err)
	assert.Equal(t, "x", sig.Test)

	_, err = ParseSignatureHeader("te=x,li=y")
	assert.ErrorIs(t, err, ErrBadSignatureHeader)

	_, err = ParseSignatureHeader("")
	assert.ErrorIs(t, err, ErrBadSignatureHeader)
}

func TestVerifySignature(t *testing.T) {
	secret := "whsk_test_secret"
	body := []byte(`{"data":{"id":"evt_1"}}`)
	ts := "1700000000"

	good := signBody(secret, ts, body)
	header := fmt.Sprintf("t=%s,te=%s,li=%s", ts, good, "not-the-live-sig")

	assert.NoError(t, VerifySignature(secret, header, body, false))
	assert.ErrorIs(t, VerifySignature(secret, header, body, true), ErrSignatureMismatch)

	// A tampered body fails even with a well-formed header.
	assert.ErrorIs(t, VerifySignature(secret, header, []byte(`{}`), false), ErrSignatureMismatch)

	// The timestamp participates in the signed message.
	header = fmt.Sprintf("t=999,te=%s", good)
	assert.ErrorIs(t, VerifySignature(secret, header, body, false), ErrSignatureMismatch)
}

func TestVerifySignatureLiveMode(t *testing.T) {
	secret := "whsk_live_secret"
	body := []byte(`{"data":{"id":"evt_2"}}`)
	ts := "1700000001"

	live := signBody(secret, ts, body)
	header := fmt.Sprintf("t=%s,te=%s,li=%s", ts, "stale-test-sig", live)

	assert.NoError(t, VerifySignature(secret, header, body, true))
	assert.ErrorIs(t, VerifySignature(secret, header, body, false), ErrSignatureMismatch)
}

func TestVerifySignatureMissingVariant(t *testing.T) {
	// Live-mode account receiving a header with no li part.
	err := VerifySignature("s", "t=1,te=abc", []byte("{}"), true)
	assert.ErrorIs(t, err, ErrBadSignatureHeader)
}

func TestDecodeEventCheckoutPaid(t *testing.T) {
	body := []byte(`{
		"data": {
			"id": "evt_abc123",
			"attributes": {
				"type": "checkout_session.payment.paid",
				"data": {
					"id": "cs_xyz789",
					"attributes": {
						"customer_id": "cus_42",
						"metadata": {"workspace_id": "3f2c8a1e-5b7d-4e9f-8a2b-1c3d5e7f9a0b"}
					}
				}
			}
		}
	}`)

	ev, err := DecodeEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "evt_abc123", ev.ID)
	assert.Equal(t, EventCheckoutPaid, ev.Type)
	assert.False(t, ev.Unrecognized)
	require.NotNil(t, ev.CheckoutPaid)
	assert.Equal(t, "cs_xyz789", ev.CheckoutPaid.SessionID)
	assert.Equal(t, "cus_42", ev.CheckoutPaid.CustomerID)
	assert.Equal(t, "3f2c8a1e-5b7d-4e9f-8a2b-1c3d5e7f9a0b", ev.CheckoutPaid.WorkspaceID)
}

func TestDecodeEventUnrecognizedType(t *testing.T) {
	body := []byte(`{"data":{"id":"evt_other","attributes":{"type":"payment.refunded"}}}`)

	ev, err := DecodeEvent(body)
	require.NoError(t, err)
	assert.True(t, ev.Unrecognized)
	assert.Nil(t, ev.CheckoutPaid)
	assert.Equal(t, "payment.refunded", ev.Type)
}

func TestDecodeEventRejectsMissingID(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"data":{"attributes":{"type":"x"}}}`))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}
