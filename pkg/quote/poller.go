package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"go.uber.org/zap"
)

const (
	pollInitialInterval = 5 * time.Second
	pollMaxInterval     = 30 * time.Second
	// Settlement has to finish inside this window or polling gives up.
	DefaultPollWindow = 30 * time.Minute
)

// Terminal settlement statuses as reported by the execution-status API.
const (
	SettlementSuccess   = "SUCCESS"
	SettlementCompleted = "COMPLETED"
	SettlementFailed    = "FAILED"
	SettlementRefunded  = "REFUNDED"
)

// IsSettled reports whether the status is terminal.
func IsSettled(status string) bool {
	switch strings.ToUpper(status) {
	case SettlementSuccess, SettlementCompleted, SettlementFailed, SettlementRefunded:
		return true
	}
	return false
}

// IsSettledSuccess reports whether the status is a successful terminal one.
func IsSettledSuccess(status string) bool {
	switch strings.ToUpper(status) {
	case SettlementSuccess, SettlementCompleted:
		return true
	}
	return false
}

// Poller tracks a swap's settlement through the 1Click execution-status
// API, keyed by the quote's deposit address.
type Poller struct {
	client  *oneclick.APIClient
	authCtx context.Context
	window  time.Duration
	logger  *zap.Logger
}

// NewPoller creates a poller authenticated with the given JWT token.
func NewPoller(jwtToken string, logger *zap.Logger) *Poller {
	config := oneclick.NewConfiguration()
	authCtx := context.WithValue(context.Background(), oneclick.ContextAccessToken, jwtToken)

	return &Poller{
		client:  oneclick.NewAPIClient(config),
		authCtx: authCtx,
		window:  DefaultPollWindow,
		logger:  logger,
	}
}

// Status fetches the current settlement status once.
func (p *Poller) Status(ctx context.Context, depositAddress string) (string, error) {
	resp, httpResp, err := p.client.OneClickAPI.GetExecutionStatus(p.requestCtx(ctx)).
		DepositAddress(depositAddress).Execute()
	if err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return "", fmt.Errorf("status API returned status code %d", httpResp.StatusCode)
	}
	return strings.ToUpper(resp.GetStatus()), nil
}

// Poll repeatedly checks the deposit address until a terminal status is
// observed, backing off between checks. It returns the terminal status;
// deciding whether that status is a success is the caller's concern.
func (p *Poller) Poll(ctx context.Context, depositAddress string) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = pollInitialInterval
	policy.MaxInterval = pollMaxInterval

	operation := func() (string, error) {
		status, err := p.Status(ctx, depositAddress)
		if err != nil {
			// Transient API failure, retry on the next tick.
			return "", err
		}
		if !IsSettled(status) {
			return "", fmt.Errorf("status %s is not terminal", status)
		}
		return status, nil
	}

	notify := func(err error, wait time.Duration) {
		p.logger.Debug("settlement not final yet",
			zap.String("deposit_address", depositAddress),
			zap.Duration("next_check", wait),
			zap.Error(err))
	}

	status, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(p.window),
		backoff.WithNotify(notify))
	if err != nil {
		return "", fmt.Errorf("settlement polling for %s gave up: %w", depositAddress, err)
	}

	p.logger.Info("settlement reached terminal status",
		zap.String("deposit_address", depositAddress),
		zap.String("status", status))
	return status, nil
}

// NotifyDeposit submits the deposit transaction hash so settlement does
// not wait for chain scanning to spot the transfer.
func (p *Poller) NotifyDeposit(ctx context.Context, depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(depositAddress, txHash)

	_, httpResp, err := p.client.OneClickAPI.SubmitDepositTx(p.requestCtx(ctx)).
		SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return fmt.Errorf("failed to submit deposit tx: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 && httpResp.StatusCode != 201 {
		return fmt.Errorf("status API returned status code %d", httpResp.StatusCode)
	}
	return nil
}

// requestCtx layers the caller's cancellation over the authenticated
// context the SDK expects the access token in.
func (p *Poller) requestCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oneclick.ContextAccessToken, p.authCtx.Value(oneclick.ContextAccessToken))
}
