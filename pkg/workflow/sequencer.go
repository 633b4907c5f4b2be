package workflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lsd-bridge/pkg/amount"
	"lsd-bridge/pkg/bridge"
	"lsd-bridge/pkg/quote"
	"lsd-bridge/pkg/types"
)

var (
	// ErrRunInFlight rejects a re-entrant trigger: a direction is
	// mutually exclusive with itself, not with the other direction.
	ErrRunInFlight = errors.New("a run for this direction is already in flight")
	// ErrSettlementFailure marks a terminal non-success settlement status.
	ErrSettlementFailure = errors.New("settlement failed")
)

// withdrawBuffer absorbs destination-side fees on the withdraw quote.
var withdrawBuffer = decimal.RequireFromString("0.9999")

// Quoter requests cross-chain quotations.
type Quoter interface {
	RequestQuote(ctx context.Context, req quote.Request) (*quote.Result, error)
}

// Calculator converts stablecoin amounts into derivative amounts from
// live pool state and builds the supply recipient message.
type Calculator interface {
	RequiredDerivative(ctx context.Context, usdtAmount string) (*big.Int, error)
	SupplyRecipientMessage(ctx context.Context, evmAccount string) (string, error)
}

// Transferer executes a plain ERC20 transfer on the source chain.
type Transferer interface {
	TransferToken(ctx context.Context, token, to common.Address, value *big.Int) (string, error)
}

// Bridger executes the approve-resolve-transfer bridge sequence.
type Bridger interface {
	Transfer(ctx context.Context, p bridge.TransferParams) (string, error)
}

// Poller tracks settlement of a deposit address.
type Poller interface {
	Poll(ctx context.Context, depositAddress string) (string, error)
	NotifyDeposit(ctx context.Context, depositAddress, txHash string) error
}

// BalanceRefresher is poked after a successful settlement so displays
// catch up immediately instead of waiting for the next cycle.
type BalanceRefresher interface {
	Refresh(ctx context.Context)
}

// Config fixes the route the sequencer drives.
type Config struct {
	StableToken     types.Token
	DerivativeToken types.Token
	// NearStableDecimals is the stablecoin's precision on the NEAR side,
	// used for the withdraw quote amount.
	NearStableDecimals int32
	LsdContractID      string
	EvmChainName       string
}

// Sequencer composes quoting, transfers, bridging and settlement polling
// into the supply and withdraw workflows. Each run owns its state
// exclusively; failures abort the remaining steps with no rollback.
type Sequencer struct {
	cfg        Config
	quoter     Quoter
	calc       Calculator
	transferer Transferer
	bridger    Bridger
	poller     Poller
	balances   BalanceRefresher
	logger     *zap.Logger

	mu       sync.Mutex
	inFlight map[types.Direction]bool
}

// NewSequencer wires a sequencer over its collaborators. balances may be
// nil when no display needs refreshing.
func NewSequencer(cfg Config, quoter Quoter, calc Calculator, transferer Transferer, bridger Bridger, poller Poller, balances BalanceRefresher, logger *zap.Logger) *Sequencer {
	return &Sequencer{
		cfg:        cfg,
		quoter:     quoter,
		calc:       calc,
		transferer: transferer,
		bridger:    bridger,
		poller:     poller,
		balances:   balances,
		logger:     logger,
		inFlight:   make(map[types.Direction]bool),
	}
}

// Supply moves stablecoin from the EVM chain into the pool: quote with a
// recipient message, transfer the quoted amount to the deposit address,
// then poll for settlement.
func (s *Sequencer) Supply(ctx context.Context, account, usdtAmount string) (*types.Run, error) {
	if err := s.begin(types.DirectionSupply); err != nil {
		return nil, err
	}
	defer s.end(types.DirectionSupply)

	run := newRun(types.DirectionSupply, account, usdtAmount)

	if !amount.IsPositive(usdtAmount) {
		return s.fail(run, fmt.Errorf("%w: %q", amount.ErrInvalidAmount, usdtAmount))
	}
	rawIn, err := amount.ToRaw(usdtAmount, s.cfg.StableToken.Decimals)
	if err != nil {
		return s.fail(run, err)
	}

	msg, err := s.calc.SupplyRecipientMessage(ctx, account)
	if err != nil {
		return s.fail(run, err)
	}

	result, err := s.quoter.RequestQuote(ctx, quote.Request{
		Chain:            "evm",
		Symbol:           s.cfg.StableToken.Symbol,
		SelectedEvmChain: s.cfg.EvmChainName,
		Amount:           rawIn,
		RefundTo:         account,
		Recipient:        s.cfg.LsdContractID,
		ToNear:           true,
		RecipientMessage: msg,
	})
	if err != nil {
		return s.fail(run, err)
	}
	if !result.Ok() {
		return s.fail(run, quoteError(result))
	}
	run.DepositAddress = result.Quote.DepositAddress
	run.EstimatedOutput = result.Quote.AmountOutFormatted

	run.Status = types.StatusExecuting
	if !common.IsHexAddress(result.Quote.DepositAddress) {
		return s.fail(run, fmt.Errorf("%w: malformed deposit address %q", quote.ErrQuoteFailure, result.Quote.DepositAddress))
	}
	amountIn, ok := new(big.Int).SetString(result.Quote.AmountIn, 10)
	if !ok {
		return s.fail(run, fmt.Errorf("%w: malformed amountIn %q", quote.ErrQuoteFailure, result.Quote.AmountIn))
	}

	txHash, err := s.transferer.TransferToken(ctx,
		common.HexToAddress(s.cfg.StableToken.Address),
		common.HexToAddress(result.Quote.DepositAddress),
		amountIn)
	if err != nil {
		return s.fail(run, err)
	}
	run.TxHash = txHash

	if err := s.poller.NotifyDeposit(ctx, run.DepositAddress, txHash); err != nil {
		// Settlement still proceeds via chain scanning, just slower.
		s.logger.Warn("deposit notification failed", zap.String("tx_hash", txHash), zap.Error(err))
	}

	return s.settle(ctx, run)
}

// Withdraw redeems derivative tokens back into stablecoin: compute the
// required derivative amount from pool state, quote the reverse
// direction with a fee buffer, bridge the derivative to the deposit
// address with that address as payload, then poll for settlement.
func (s *Sequencer) Withdraw(ctx context.Context, account, usdtAmount string) (*types.Run, error) {
	if err := s.begin(types.DirectionWithdraw); err != nil {
		return nil, err
	}
	defer s.end(types.DirectionWithdraw)

	run := newRun(types.DirectionWithdraw, account, usdtAmount)

	if !amount.IsPositive(usdtAmount) {
		return s.fail(run, fmt.Errorf("%w: %q", amount.ErrInvalidAmount, usdtAmount))
	}

	lsdAmount, err := s.calc.RequiredDerivative(ctx, usdtAmount)
	if err != nil {
		return s.fail(run, err)
	}
	s.logger.Info("computed required derivative amount",
		zap.String("usdt_amount", usdtAmount),
		zap.String("lsd_amount", lsdAmount.String()))

	buffered, err := BufferedWithdrawAmount(usdtAmount, s.cfg.NearStableDecimals)
	if err != nil {
		return s.fail(run, err)
	}

	result, err := s.quoter.RequestQuote(ctx, quote.Request{
		Chain:            "evm",
		Symbol:           s.cfg.StableToken.Symbol,
		SelectedEvmChain: s.cfg.EvmChainName,
		Amount:           buffered,
		RefundTo:         s.cfg.LsdContractID,
		Recipient:        account,
		ToNear:           false,
	})
	if err != nil {
		return s.fail(run, err)
	}
	if !result.Ok() {
		return s.fail(run, quoteError(result))
	}
	run.DepositAddress = result.Quote.DepositAddress
	run.EstimatedOutput = result.Quote.AmountOutFormatted

	run.Status = types.StatusExecuting
	txHash, err := s.bridger.Transfer(ctx, bridge.TransferParams{
		Token:   common.HexToAddress(s.cfg.DerivativeToken.Address),
		Amount:  lsdAmount,
		Payload: []byte(result.Quote.DepositAddress),
	})
	if err != nil {
		return s.fail(run, err)
	}
	run.TxHash = txHash

	return s.settle(ctx, run)
}

// settle polls the run's deposit address to a terminal status and closes
// out the run.
func (s *Sequencer) settle(ctx context.Context, run *types.Run) (*types.Run, error) {
	run.Status = types.StatusPolling

	status, err := s.poller.Poll(ctx, run.DepositAddress)
	if err != nil {
		return s.fail(run, err)
	}
	run.SettledStatus = status
	if !quote.IsSettledSuccess(status) {
		return s.fail(run, fmt.Errorf("%w: status %s", ErrSettlementFailure, status))
	}

	if s.balances != nil {
		s.balances.Refresh(ctx)
	}

	run.Status = types.StatusSucceeded
	run.FinishedAt = time.Now()
	s.logger.Info("workflow settled",
		zap.String("run_id", run.ID),
		zap.String("direction", string(run.Direction)),
		zap.String("deposit_address", run.DepositAddress),
		zap.String("tx_hash", run.TxHash))
	return run, nil
}

// BufferedWithdrawAmount scales the requested amount by the fee buffer
// and converts it to the destination stablecoin's smallest unit.
func BufferedWithdrawAmount(usdtAmount string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(usdtAmount)
	if err != nil {
		return "", fmt.Errorf("%w: %q", amount.ErrInvalidAmount, usdtAmount)
	}
	return amount.ToRaw(d.Mul(withdrawBuffer).String(), decimals)
}

func newRun(direction types.Direction, account, amountStr string) *types.Run {
	return &types.Run{
		ID:        uuid.NewString(),
		Direction: direction,
		Account:   account,
		Amount:    amountStr,
		Status:    types.StatusQuoting,
		StartedAt: time.Now(),
	}
}

// fail closes the run with a normalized error message. The partial
// on-chain state (an approval, a sent transfer) is left as-is; recovery
// is a fresh user-triggered run.
func (s *Sequencer) fail(run *types.Run, err error) (*types.Run, error) {
	run.Status = types.StatusFailed
	run.Error = err.Error()
	run.FinishedAt = time.Now()
	s.logger.Error("workflow failed",
		zap.String("run_id", run.ID),
		zap.String("direction", string(run.Direction)),
		zap.String("status", string(run.Status)),
		zap.Error(err))
	return run, err
}

func quoteError(result *quote.Result) error {
	message := result.Message
	if message == "" {
		message = "quote service returned status " + result.Status
	}
	return fmt.Errorf("%w: %s", quote.ErrQuoteFailure, message)
}

func (s *Sequencer) begin(direction types.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[direction] {
		return fmt.Errorf("%w: %s", ErrRunInFlight, direction)
	}
	s.inFlight[direction] = true
	return nil
}

func (s *Sequencer) end(direction types.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, direction)
}
