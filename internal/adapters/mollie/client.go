// Package mollie implements the settlements client against the payment
// provider's REST API.
package mollie

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/money"
)

// Config holds client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the provider's settlements API. It implements
// matcher.SettlementsClient. The engine has no retry logic of its own;
// transport-level retries and the overall timeout live here.
type Client struct {
	config     Config
	httpClient *http.Client
	normalizer *money.Normalizer
	logger     *slog.Logger
}

// NewClient creates a settlements client.
func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.HTTPClient.Timeout = config.Timeout
	retry.Logger = nil // request logging happens at call sites

	return &Client{
		config:     config,
		httpClient: retry.StandardClient(),
		normalizer: money.NewNormalizer(logger),
		logger:     logger,
	}
}

// apiAmount is the provider's amount object.
type apiAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type apiSettlement struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	Amount    apiAmount `json:"amount"`
	SettledAt string    `json:"settledAt"`
}

type apiPayment struct {
	ID          string         `json:"id"`
	Amount      apiAmount      `json:"amount"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

type settlementsEnvelope struct {
	Embedded struct {
		Settlements []apiSettlement `json:"settlements"`
	} `json:"_embedded"`
}

type paymentsEnvelope struct {
	Embedded struct {
		Payments []apiPayment `json:"payments"`
	} `json:"_embedded"`
}

// SettlementsByDateRange implements matcher.SettlementsClient.
func (c *Client) SettlementsByDateRange(ctx context.Context, from, to time.Time) ([]banking.Settlement, error) {
	endpoint := fmt.Sprintf("%s/v2/settlements?%s", c.config.BaseURL, url.Values{
		"from":  {from.Format("2006-01-02")},
		"until": {to.Format("2006-01-02")},
	}.Encode())

	var envelope settlementsEnvelope
	if err := c.get(ctx, endpoint, &envelope); err != nil {
		return nil, err
	}

	settlements := make([]banking.Settlement, 0, len(envelope.Embedded.Settlements))
	for _, s := range envelope.Embedded.Settlements {
		settlements = append(settlements, banking.Settlement{
			ID:        s.ID,
			Reference: s.Reference,
			Amount:    c.normalizer.Normalize(s.Amount.Value),
		})
	}
	return settlements, nil
}

// PaymentsForSettlement implements matcher.SettlementsClient.
func (c *Client) PaymentsForSettlement(ctx context.Context, settlementID string) ([]banking.SettlementPayment, error) {
	endpoint := fmt.Sprintf("%s/v2/settlements/%s/payments",
		c.config.BaseURL, url.PathEscape(settlementID))

	var envelope paymentsEnvelope
	if err := c.get(ctx, endpoint, &envelope); err != nil {
		return nil, err
	}

	payments := make([]banking.SettlementPayment, 0, len(envelope.Embedded.Payments))
	for _, p := range envelope.Embedded.Payments {
		payments = append(payments, banking.SettlementPayment{
			ID:          p.ID,
			Amount:      c.normalizer.Normalize(p.Amount.Value),
			Description: p.Description,
			Metadata:    stringMetadata(p.Metadata),
		})
	}
	return payments, nil
}

// get performs an authenticated GET and decodes the JSON response.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("settlements request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("settlements API returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding settlements response: %w", err)
	}
	return nil
}

// stringMetadata keeps the string-valued metadata entries; the engine
// only ever reads string references out of it.
func stringMetadata(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
