// Package payment converts raw card input into single-use payment-method handles.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tax-portal/internal/common"
)

// Tokenizer turns a card into an opaque, single-use payment-method ID.
type Tokenizer interface {
	Tokenize(ctx context.Context, card Card) (string, error)
}

// TokenizationError is a failure reported by the card processor. Its message
// is meant to be shown verbatim.
type TokenizationError struct {
	Code    string
	Message string
}

func (e *TokenizationError) Error() string {
	return e.Message
}

func (e *TokenizationError) Unwrap() error {
	return common.ErrTokenization
}

// HTTPTokenizer posts card details to a processor's payment_methods endpoint.
type HTTPTokenizer struct {
	baseURL        string
	publishableKey string
	httpClient     *http.Client
	logger         *slog.Logger
	now            func() time.Time
}

func NewHTTPTokenizer(baseURL, publishableKey string, httpClient *http.Client, logger *slog.Logger) *HTTPTokenizer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTokenizer{
		baseURL:        strings.TrimRight(baseURL, "/"),
		publishableKey: publishableKey,
		httpClient:     httpClient,
		logger:         common.LoggerOrDefault(logger),
		now:            time.Now,
	}
}

func (t *HTTPTokenizer) Tokenize(ctx context.Context, card Card) (string, error) {
	if err := card.Check(t.now()); err != nil {
		return "", err
	}

	reqID := uuid.New().String()
	form := url.Values{}
	form.Set("type", "card")
	form.Set("card[number]", card.digits())
	form.Set("card[exp_month]", strconv.Itoa(card.ExpMonth))
	form.Set("card[exp_year]", strconv.Itoa(card.ExpYear))
	form.Set("card[cvc]", strings.TrimSpace(card.CVC))
	if card.PostalCode != "" {
		form.Set("billing_details[address][postal_code]", card.PostalCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/payment_methods", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build tokenize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+t.publishableKey)

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Warn("payment.tokenize.send_error", "req_id", reqID, "error", err)
		return "", &TokenizationError{Code: "network_error", Message: "We could not reach the payment processor. Please try again."}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.logger.Warn("payment.tokenize.read_error", "req_id", reqID, "status", resp.StatusCode, "error", err)
		return "", &TokenizationError{Code: "processing_error", Message: "An error occurred while processing your card. Try again in a little bit."}
	}

	var body struct {
		ID    string `json:"id"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeErr := json.Unmarshal(raw, &body)

	t.logger.Info("payment.tokenize.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"last4", card.Last4(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 || body.ID == "" {
		if decodeErr == nil && body.Error != nil && body.Error.Message != "" {
			return "", &TokenizationError{Code: body.Error.Code, Message: body.Error.Message}
		}
		return "", &TokenizationError{Code: "processing_error", Message: "An error occurred while processing your card. Try again in a little bit."}
	}
	return body.ID, nil
}
