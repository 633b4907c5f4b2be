package lsd

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lsd-bridge/pkg/amount"
)

// ErrUpstreamUnavailable marks a failed read against the NEAR-side pool
// contracts. No partial calculation is attempted when it occurs.
var ErrUpstreamUnavailable = errors.New("pool state unavailable")

// Viewer is the read-only ledger access the service needs.
type Viewer interface {
	ViewCall(ctx context.Context, contractID, method string, args, out interface{}) error
	LatestBlockHash(ctx context.Context) (string, error)
}

// Metadata is the LSD contract's get_metadata view result.
type Metadata struct {
	UnderlyingTokenID          string            `json:"underlying_token_id"`
	UnderlyingBurrowlandShares string            `json:"underlying_burrowland_shares"`
	BurrowlandID               string            `json:"burrowland_id"`
	Rewards                    map[string]string `json:"rewards"`
	ProtocolFeeRate            float64           `json:"protocol_fee_rate"`
	AccProtocolFee             string            `json:"acc_protocol_fee"`
}

// AssetPosition is a shares/balance pair inside a Burrow asset.
type AssetPosition struct {
	Shares  string `json:"shares"`
	Balance string `json:"balance"`
}

// BurrowAsset is the lending pool's get_asset view result.
type BurrowAsset struct {
	TokenID  string        `json:"token_id"`
	Supplied AssetPosition `json:"supplied"`
	Borrowed AssetPosition `json:"borrowed"`
}

// PoolState is a read-only snapshot of the pool accounting used by the
// exchange-rate calculation. All four fields come from the same fetch
// round; fields are never mixed across snapshots.
type PoolState struct {
	SuppliedShares   *big.Int
	SuppliedBalance  *big.Int
	TotalSupply      *big.Int
	UnderlyingShares *big.Int
}

// Config carries the route constants the service operates on.
type Config struct {
	LsdContractID    string
	BurrowContractID string
	UnderlyingToken  string
	StableDecimals   int32
	SourceChainID    int
	FinalReceiver    string
}

// Service computes stablecoin ⇄ derivative conversions from live pool
// state and builds the supply-path recipient message.
type Service struct {
	viewer Viewer
	cfg    Config
	logger *zap.Logger
}

// NewService creates a service reading pool state through viewer.
func NewService(viewer Viewer, cfg Config, logger *zap.Logger) *Service {
	return &Service{viewer: viewer, cfg: cfg, logger: logger}
}

// PoolState fetches the pool snapshot. The three view calls are fanned
// out concurrently to minimize snapshot skew; if any fails the whole
// snapshot fails.
func (s *Service) PoolState(ctx context.Context) (*PoolState, error) {
	var (
		metadata    Metadata
		totalSupply string
		asset       BurrowAsset
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.viewer.ViewCall(gctx, s.cfg.LsdContractID, "get_metadata", nil, &metadata)
	})
	g.Go(func() error {
		return s.viewer.ViewCall(gctx, s.cfg.LsdContractID, "ft_total_supply", nil, &totalSupply)
	})
	g.Go(func() error {
		args := map[string]string{"token_id": s.cfg.UnderlyingToken}
		return s.viewer.ViewCall(gctx, s.cfg.BurrowContractID, "get_asset", args, &asset)
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("pool state fetch failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	pool := &PoolState{}
	for _, field := range []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"supplied.shares", asset.Supplied.Shares, &pool.SuppliedShares},
		{"supplied.balance", asset.Supplied.Balance, &pool.SuppliedBalance},
		{"ft_total_supply", totalSupply, &pool.TotalSupply},
		{"underlying_burrowland_shares", metadata.UnderlyingBurrowlandShares, &pool.UnderlyingShares},
	} {
		v, ok := new(big.Int).SetString(field.value, 10)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an integer: %q", ErrUpstreamUnavailable, field.name, field.value)
		}
		*field.dst = v
	}

	return pool, nil
}

// RequiredDerivative converts a stablecoin amount (human decimal string)
// into the derivative-token amount, in the derivative's smallest unit.
// It fetches a fresh pool snapshot per call.
func (s *Service) RequiredDerivative(ctx context.Context, usdtAmount string) (*big.Int, error) {
	rawStr, err := amount.ToRaw(usdtAmount, s.cfg.StableDecimals)
	if err != nil {
		return nil, err
	}
	rawIn, ok := new(big.Int).SetString(rawStr, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", amount.ErrInvalidAmount, usdtAmount)
	}

	pool, err := s.PoolState(ctx)
	if err != nil {
		return nil, err
	}
	return RequiredFromPool(pool, rawIn)
}

// RequiredFromPool applies the share-based exchange rate:
//
//	shareEquivalent = rawIn * suppliedShares / suppliedBalance
//	derivative      = ceil(shareEquivalent * totalSupply / underlyingShares)
//
// The intermediate division is carried exactly, so the whole conversion
// collapses to one ceiling division over exact integer products. Rounding
// up means a withdrawer always burns enough derivative tokens to cover
// the requested stablecoin amount.
func RequiredFromPool(pool *PoolState, rawIn *big.Int) (*big.Int, error) {
	if pool.SuppliedBalance.Sign() <= 0 {
		return nil, fmt.Errorf("%w: supplied balance is zero", ErrUpstreamUnavailable)
	}
	if pool.UnderlyingShares.Sign() <= 0 {
		return nil, fmt.Errorf("%w: underlying shares is zero", ErrUpstreamUnavailable)
	}

	num := new(big.Int).Mul(rawIn, pool.SuppliedShares)
	num.Mul(num, pool.TotalSupply)
	den := new(big.Int).Mul(pool.SuppliedBalance, pool.UnderlyingShares)

	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q, nil
}

// supplyMessage is the outer recipient-message envelope: a finality-
// committed block reference plus the bridge instruction as a JSON string.
type supplyMessage struct {
	BlockHash string `json:"block_hash"`
	Msg       string `json:"msg"`
}

type supplyInstruction struct {
	Chain      int    `json:"chain"`
	Fee        string `json:"fee"`
	MessageFee int    `json:"message_fee"`
	Payload    string `json:"payload"`
	Receiver   string `json:"receiver"`
}

// SupplyRecipientMessage builds the custom recipient message attached to
// a supply quote: the destination contract uses it to route the minted
// derivative back to the user's EVM address.
func (s *Service) SupplyRecipientMessage(ctx context.Context, evmAccount string) (string, error) {
	blockHash, err := s.viewer.LatestBlockHash(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	payload, err := EncodeAddress(evmAccount)
	if err != nil {
		return "", err
	}
	receiver, err := EncodeAddress(s.cfg.FinalReceiver)
	if err != nil {
		return "", err
	}

	instruction, err := json.Marshal(supplyInstruction{
		Chain:      s.cfg.SourceChainID,
		Fee:        "0",
		MessageFee: 0,
		Payload:    payload,
		Receiver:   receiver,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal instruction: %w", err)
	}

	msg, err := json.Marshal(supplyMessage{BlockHash: blockHash, Msg: string(instruction)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal recipient message: %w", err)
	}
	return string(msg), nil
}

// EncodeAddress ABI-encodes an EVM address as a single 32-byte word and
// returns it as hex without the 0x prefix.
func EncodeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid EVM address: %q", address)
	}
	word := common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)
	return hex.EncodeToString(word), nil
}
