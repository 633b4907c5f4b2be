package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	// ErrApprovalFailed marks a failed allowance query or approval tx.
	ErrApprovalFailed = errors.New("token approval failed")
	// ErrBridgeUnavailable marks a chain id with no known token bridge
	// contract. The workflow hard-stops; a partial address is never used.
	ErrBridgeUnavailable = errors.New("token bridge unavailable")
	// ErrTransferFailed marks a failed bridge transfer submission or
	// confirmation.
	ErrTransferFailed = errors.New("bridge transfer failed")
)

// ChainClient is the source-chain signer the orchestrator drives. It is
// injected by the caller; the orchestrator never reaches for a global
// provider.
type ChainClient interface {
	Address() common.Address
	Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, value *big.Int) (string, error)
	TransferTokensWithPayload(ctx context.Context, bridge, token common.Address, value *big.Int, recipientChain uint16, recipient [32]byte, payload []byte) (string, error)
}

// AccountHasher derives the destination chain's 32-byte bridge recipient
// for an account id.
type AccountHasher interface {
	HashAccount(ctx context.Context, bridgeContractID, account string) ([32]byte, error)
}

// Directory maps bridge-protocol chain ids to token bridge contracts.
type Directory struct {
	contracts map[uint16]string
}

// NewDirectory creates a directory over the given chain-id mapping.
func NewDirectory(contracts map[uint16]string) *Directory {
	return &Directory{contracts: contracts}
}

// TokenBridge returns the token bridge contract for a chain id, or the
// empty string when none is known.
func (d *Directory) TokenBridge(chainID uint16) string {
	return d.contracts[chainID]
}

// Config fixes the single route the orchestrator serves.
type Config struct {
	SourceChainID uint16
	DestChainID   uint16
	// PayloadAccount is the destination account hashed into the bridge
	// recipient when a payload is attached.
	PayloadAccount string
}

// Orchestrator sequences the three external effects of a bridge
// transfer: approve, resolve, transfer. Failures abort at the point they
// occur; nothing is rolled back (a granted approval short-circuits the
// next attempt).
type Orchestrator struct {
	chain  ChainClient
	hasher AccountHasher
	dir    *Directory
	cfg    Config
	logger *zap.Logger
}

// NewOrchestrator wires an orchestrator over an injected chain client.
func NewOrchestrator(chain ChainClient, hasher AccountHasher, dir *Directory, cfg Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{chain: chain, hasher: hasher, dir: dir, cfg: cfg, logger: logger}
}

// TransferParams describes one bridge transfer. Amount is in the token's
// smallest unit; Payload is consumed once by the destination bridge
// contract.
type TransferParams struct {
	Token   common.Address
	Amount  *big.Int
	Payload []byte
}

// Transfer moves tokens to the destination chain, returning the transfer
// transaction hash.
func (o *Orchestrator) Transfer(ctx context.Context, p TransferParams) (string, error) {
	sourceBridge := o.dir.TokenBridge(o.cfg.SourceChainID)
	if sourceBridge == "" {
		return "", fmt.Errorf("%w: no token bridge for source chain %d", ErrBridgeUnavailable, o.cfg.SourceChainID)
	}
	spender := common.HexToAddress(sourceBridge)

	if err := o.ensureApproval(ctx, p.Token, spender, p.Amount); err != nil {
		return "", err
	}

	destBridge := o.dir.TokenBridge(o.cfg.DestChainID)
	if destBridge == "" {
		return "", fmt.Errorf("%w: no token bridge for destination chain %d", ErrBridgeUnavailable, o.cfg.DestChainID)
	}

	account := ""
	if len(p.Payload) > 0 {
		account = o.cfg.PayloadAccount
	} else {
		o.logger.Warn("bridging with empty payload, recipient derived from empty account id")
	}

	recipient, err := o.hasher.HashAccount(ctx, destBridge, account)
	if err != nil {
		return "", fmt.Errorf("%w: failed to derive recipient: %v", ErrTransferFailed, err)
	}

	o.logger.Info("submitting bridge transfer",
		zap.String("token", p.Token.Hex()),
		zap.String("amount", p.Amount.String()),
		zap.Uint16("recipient_chain", o.cfg.DestChainID),
		zap.Int("payload_bytes", len(p.Payload)))

	// Zero relayer fee; the transfer amount already covers the route.
	txHash, err := o.chain.TransferTokensWithPayload(ctx, spender, p.Token, p.Amount, o.cfg.DestChainID, recipient, p.Payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	o.logger.Info("bridge transfer confirmed", zap.String("tx_hash", txHash))
	return txHash, nil
}

// ensureApproval grants the bridge an allowance if the existing one does
// not already cover the amount.
func (o *Orchestrator) ensureApproval(ctx context.Context, token, spender common.Address, value *big.Int) error {
	allowance, err := o.chain.Allowance(ctx, token, spender)
	if err != nil {
		return fmt.Errorf("%w: allowance query: %v", ErrApprovalFailed, err)
	}

	if allowance.Cmp(value) >= 0 {
		o.logger.Info("token already approved, skipping approval",
			zap.String("allowance", allowance.String()),
			zap.String("needed", value.String()))
		return nil
	}

	txHash, err := o.chain.Approve(ctx, token, spender, value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrApprovalFailed, err)
	}

	o.logger.Info("token approved", zap.String("tx_hash", txHash))
	return nil
}
