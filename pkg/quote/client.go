package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrQuoteFailure marks a quote the workflow must not execute against:
// the service reported a non-success status or returned a malformed
// success without a quote body.
var ErrQuoteFailure = errors.New("quote failure")

// StatusSuccess is the only quoteStatus value that permits execution.
const StatusSuccess = "success"

// Request describes one cross-chain quotation. Amount is in the source
// token's smallest unit.
type Request struct {
	Chain            string `json:"chain"`
	Symbol           string `json:"symbol"`
	SelectedEvmChain string `json:"selectedEvmChain"`
	Amount           string `json:"amount"`
	RefundTo         string `json:"refundTo"`
	Recipient        string `json:"recipient"`
	ToNear           bool   `json:"outChainToNearChain"`
	RecipientMessage string `json:"customRecipientMsg,omitempty"`
}

// Quote is the executable part of a successful quotation.
type Quote struct {
	DepositAddress     string `json:"depositAddress"`
	AmountIn           string `json:"amountIn"`
	AmountOutFormatted string `json:"amountOutFormatted"`
}

// Result is the service's answer to a quote request. A non-success
// Status carries a human-readable Message and no Quote.
type Result struct {
	Status  string
	Message string
	Quote   *Quote
}

// Ok reports whether the result carries an executable quote. A success
// status with a missing quote body is not Ok.
func (r *Result) Ok() bool {
	return r != nil && r.Status == StatusSuccess && r.Quote != nil
}

// Client requests cross-chain quotes from the intents quotation service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a quote client against the given base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type wireResult struct {
	QuoteStatus        string `json:"quoteStatus"`
	Message            string `json:"message"`
	QuoteSuccessResult *struct {
		Quote *Quote `json:"quote"`
	} `json:"quoteSuccessResult"`
}

// RequestQuote performs a single quotation round trip. A transport or
// protocol error returns err; a service-level rejection comes back as a
// non-Ok Result. No retry is performed here.
func (c *Client) RequestQuote(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/quote", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quote response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Try to extract the actual error message from the response
		var errorResp map[string]interface{}
		if jsonErr := json.Unmarshal(respBody, &errorResp); jsonErr == nil {
			if message, ok := errorResp["message"].(string); ok {
				return nil, fmt.Errorf("quote API error (status %d): %s", resp.StatusCode, message)
			}
		}
		return nil, fmt.Errorf("quote API returned status code %d: %s", resp.StatusCode, string(respBody))
	}

	var wire wireResult
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}

	result := &Result{Status: wire.QuoteStatus, Message: wire.Message}
	if wire.QuoteSuccessResult != nil {
		result.Quote = wire.QuoteSuccessResult.Quote
	}

	if !result.Ok() {
		c.logger.Debug("quote rejected",
			zap.String("status", result.Status),
			zap.String("message", result.Message))
	}
	return result, nil
}
