package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader is the header PayMongo signs webhook deliveries with.
const SignatureHeader = "Paymongo-Signature"

var (
	ErrBadSignatureHeader = errors.New("malformed signature header")
	ErrSignatureMismatch  = errors.New("webhook signature mismatch")
)

// Signature is the parsed form of the header: a timestamp plus one HMAC for
// test deliveries and one for live deliveries.
type Signature struct {
	Timestamp string
	Test      string
	Live      string
}

// ParseSignatureHeader splits "t=...,te=...,li=..." into its parts. Unknown
// keys are ignored; a missing timestamp is an error.
func ParseSignatureHeader(header string) (*Signature, error) {
	var sig Signature
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			sig.Timestamp = v
		case "te":
			sig.Test = v
		case "li":
			sig.Live = v
		}
	}
	if sig.Timestamp == "" {
		return nil, ErrBadSignatureHeader
	}
	return &sig, nil
}

// VerifySignature checks the delivery against the webhook secret. The signed
// message is "<timestamp>.<raw body>"; which HMAC to compare depends on
// whether the account runs in live mode.
func VerifySignature(secret, header string, body []byte, liveMode bool) error {
	sig, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	expected := sig.Test
	if liveMode {
		expected = sig.Live
	}
	if expected == "" {
		return ErrBadSignatureHeader
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sig.Timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(expected)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Event is the decoded webhook payload. Exactly one variant field is set;
// deliveries of types this service does not handle decode to Unrecognized so
// they can be acknowledged without processing.
type Event struct {
	ID           string
	Type         string
	CheckoutPaid *CheckoutPaidEvent
	Unrecognized bool
}

const EventCheckoutPaid = "checkout_session.payment.paid"

// CheckoutPaidEvent is the one event that mutates tier state.
type CheckoutPaidEvent struct {
	SessionID   string
	WorkspaceID string
	CustomerID  string
}

type rawEvent struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type string `json:"type"`
			Data struct {
				ID         string `json:"id"`
				Attributes struct {
					CustomerID string            `json:"customer_id"`
					Metadata   map[string]string `json:"metadata"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

// DecodeEvent parses a verified webhook body.
func DecodeEvent(body []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	if raw.Data.ID == "" {
		return nil, errors.New("webhook event has no id")
	}

	ev := &Event{ID: raw.Data.ID, Type: raw.Data.Attributes.Type}
	switch ev.Type {
	case EventCheckoutPaid:
		ev.CheckoutPaid = &CheckoutPaidEvent{
			SessionID:   raw.Data.Attributes.Data.ID,
			WorkspaceID: raw.Data.Attributes.Data.Attributes.Metadata["workspace_id"],
			CustomerID:  raw.Data.Attributes.Data.Attributes.CustomerID,
		}
	default:
		ev.Unrecognized = true
	}
	return ev, nil
}
