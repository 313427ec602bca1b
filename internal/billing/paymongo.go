package billing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zenportal/backend/internal/config"
)

const payMongoBaseURL = "https://api.paymongo.com/v1"

// PayMongoClient is a thin wrapper over the PayMongo REST API. Requests
// authenticate with HTTP basic auth, secret key as username, empty password.
type PayMongoClient struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

func NewPayMongoClient(cfg config.PayMongoConfig) *PayMongoClient {
	return &PayMongoClient{
		secretKey: cfg.SecretKey,
		baseURL:   payMongoBaseURL,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type CheckoutSession struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
}

type checkoutSessionRequest struct {
	Data struct {
		Attributes struct {
			Description        string            `json:"description"`
			LineItems          []lineItem        `json:"line_items"`
			PaymentMethodTypes []string          `json:"payment_method_types"`
			SuccessURL         string            `json:"success_url"`
			CancelURL          string            `json:"cancel_url"`
			Metadata           map[string]string `json:"metadata"`
		} `json:"attributes"`
	} `json:"data"`
}

type lineItem struct {
	Name     string `json:"name"`
	Amount   int    `json:"amount"` // centavos
	Currency string `json:"currency"`
	Quantity int    `json:"quantity"`
}

type checkoutSessionResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			CheckoutURL string `json:"checkout_url"`
		} `json:"attributes"`
	} `json:"data"`
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`
}

// CreateCheckoutSession opens a hosted payment page for the Pro plan. The
// metadata travels through PayMongo untouched and comes back on the webhook,
// which is how the paid session finds its workspace.
func (c *PayMongoClient) CreateCheckoutSession(ctx context.Context, amount int, description, successURL, cancelURL string, metadata map[string]string) (*CheckoutSession, error) {
	var req checkoutSessionRequest
	req.Data.Attributes.Description = description
	req.Data.Attributes.LineItems = []lineItem{{
		Name:     description,
		Amount:   amount,
		Currency: "PHP",
		Quantity: 1,
	}}
	req.Data.Attributes.PaymentMethodTypes = []string{"card", "gcash", "paymaya"}
	req.Data.Attributes.SuccessURL = successURL
	req.Data.Attributes.CancelURL = cancelURL
	req.Data.Attributes.Metadata = metadata

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/checkout_sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+
		base64.StdEncoding.EncodeToString([]byte(c.secretKey+":")))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read checkout response: %w", err)
	}

	var parsed checkoutSessionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := resp.Status
		if len(parsed.Errors) > 0 {
			detail = parsed.Errors[0].Detail
		}
		return nil, fmt.Errorf("paymongo checkout failed: %s", detail)
	}

	return &CheckoutSession{
		ID:          parsed.Data.ID,
		CheckoutURL: parsed.Data.Attributes.CheckoutURL,
	}, nil
}
