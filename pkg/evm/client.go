package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"lsd-bridge/pkg/amount"
)

const erc20ABIJSON = `[
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}
]`

const tokenBridgeABIJSON = `[
	{"inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"recipientChain","type":"uint16"},{"name":"recipient","type":"bytes32"},{"name":"nonce","type":"uint32"},{"name":"payload","type":"bytes"}],"name":"transferTokensWithPayload","outputs":[{"name":"sequence","type":"uint64"}],"stateMutability":"payable","type":"function"}
]`

// Client signs and submits transactions on the EVM side of the route.
// The signer key is injected explicitly; nothing is reached through
// ambient provider state.
type Client struct {
	rpc        *ethclient.Client
	privateKey *ecdsa.PrivateKey
	from       common.Address
	chainID    *big.Int
	erc20      abi.ABI
	bridge     abi.ABI
	logger     *zap.Logger
}

// NewClient connects to the RPC endpoint and prepares the signer.
func NewClient(rpcURL, privateKeyHex string, chainID int64, logger *zap.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key not configured")
	}

	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	erc20, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	bridgeABI, err := abi.JSON(strings.NewReader(tokenBridgeABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token bridge ABI: %w", err)
	}

	return &Client{
		rpc:        rpc,
		privateKey: privateKey,
		from:       crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    big.NewInt(chainID),
		erc20:      erc20,
		bridge:     bridgeABI,
		logger:     logger,
	}, nil
}

// Address returns the signer's address.
func (c *Client) Address() common.Address {
	return c.from
}

// TokenBalance returns the ERC20 balance of owner in the token's
// smallest unit.
func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := c.erc20.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	result, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// DisplayBalance returns the ERC20 balance formatted as a human decimal
// string. Used for display only.
func (c *Client) DisplayBalance(ctx context.Context, token, owner common.Address, decimals int32) (string, error) {
	balance, err := c.TokenBalance(ctx, token, owner)
	if err != nil {
		return "", err
	}
	return amount.ToDisplay(balance.String(), decimals)
}

// Allowance returns the amount spender may move on behalf of the signer.
func (c *Client) Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error) {
	data, err := c.erc20.Pack("allowance", c.from, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to pack allowance data: %w", err)
	}

	result, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call allowance: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// Approve grants spender an allowance of amount and waits for the
// receipt. Returns the transaction hash.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, value *big.Int) (string, error) {
	data, err := c.erc20.Pack("approve", spender, value)
	if err != nil {
		return "", fmt.Errorf("failed to pack approve data: %w", err)
	}
	return c.sendAndWait(ctx, token, data)
}

// TransferToken sends an ERC20 transfer and waits for the receipt.
// The amount is in the token's smallest unit.
func (c *Client) TransferToken(ctx context.Context, token, to common.Address, value *big.Int) (string, error) {
	balance, err := c.TokenBalance(ctx, token, c.from)
	if err != nil {
		return "", fmt.Errorf("failed to get token balance: %w", err)
	}
	if balance.Cmp(value) < 0 {
		return "", fmt.Errorf("insufficient token balance: have %s, need %s", balance.String(), value.String())
	}

	data, err := c.erc20.Pack("transfer", to, value)
	if err != nil {
		return "", fmt.Errorf("failed to pack transfer data: %w", err)
	}
	return c.sendAndWait(ctx, token, data)
}

// TransferTokensWithPayload submits a token-bridge transfer carrying an
// opaque payload for the destination chain's bridge contract, and waits
// for the receipt.
func (c *Client) TransferTokensWithPayload(ctx context.Context, bridge, token common.Address, value *big.Int, recipientChain uint16, recipient [32]byte, payload []byte) (string, error) {
	data, err := c.bridge.Pack("transferTokensWithPayload", token, value, recipientChain, recipient, uint32(0), payload)
	if err != nil {
		return "", fmt.Errorf("failed to pack bridge transfer data: %w", err)
	}
	return c.sendAndWait(ctx, bridge, data)
}

// sendAndWait signs a contract call, submits it and blocks until it is
// mined, rejecting reverted transactions.
func (c *Client) sendAndWait(ctx context.Context, to common.Address, data []byte) (string, error) {
	nonce, err := c.rpc.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit := uint64(200000)
	msg := ethereum.CallMsg{From: c.from, To: &to, Data: data}
	if estimated, err := c.rpc.EstimateGas(ctx, msg); err == nil {
		gasLimit = estimated * 120 / 100
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.rpc.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	txHash := signedTx.Hash().Hex()
	c.logger.Info("transaction submitted",
		zap.String("tx_hash", txHash),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce))

	receipt, err := bind.WaitMined(ctx, c.rpc, signedTx)
	if err != nil {
		return txHash, fmt.Errorf("failed to confirm transaction %s: %w", txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return txHash, fmt.Errorf("transaction %s reverted", txHash)
	}
	return txHash, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}
