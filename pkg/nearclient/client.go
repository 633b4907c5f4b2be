package nearclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Client is a minimal NEAR JSON-RPC client covering the read-only calls
// the workflow needs: contract view functions and final-block lookups.
type Client struct {
	url    string
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a client for the given NEAR RPC endpoint.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		url:    rpcURL,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Name    string          `json:"name"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type callFunctionParams struct {
	RequestType string `json:"request_type"`
	Finality    string `json:"finality"`
	AccountID   string `json:"account_id"`
	MethodName  string `json:"method_name"`
	ArgsBase64  string `json:"args_base64"`
}

type callFunctionResult struct {
	// The RPC encodes the return value as an array of byte values.
	Result []int  `json:"result"`
	Error  string `json:"error"`
}

type blockParams struct {
	Finality string `json:"finality"`
}

type blockResult struct {
	Header struct {
		Hash string `json:"hash"`
	} `json:"header"`
}

// ViewCall invokes a read-only contract method against the final block
// and unmarshals its JSON return value into out.
func (c *Client) ViewCall(ctx context.Context, contractID, method string, args, out interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}

	params := callFunctionParams{
		RequestType: "call_function",
		Finality:    "final",
		AccountID:   contractID,
		MethodName:  method,
		ArgsBase64:  base64.StdEncoding.EncodeToString(argsJSON),
	}

	var result callFunctionResult
	if err := c.call(ctx, "query", params, &result); err != nil {
		return fmt.Errorf("view call %s.%s: %w", contractID, method, err)
	}
	if result.Error != "" {
		return fmt.Errorf("view call %s.%s: contract error: %s", contractID, method, result.Error)
	}

	raw := make([]byte, len(result.Result))
	for i, b := range result.Result {
		raw[i] = byte(b)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("view call %s.%s: failed to decode return value: %w", contractID, method, err)
	}
	return nil
}

// LatestBlockHash returns the hash of the latest finality-committed block.
func (c *Client) LatestBlockHash(ctx context.Context) (string, error) {
	var result blockResult
	if err := c.call(ctx, "block", blockParams{Finality: "final"}, &result); err != nil {
		return "", fmt.Errorf("failed to get final block: %w", err)
	}
	if result.Header.Hash == "" {
		return "", fmt.Errorf("final block response missing header hash")
	}
	return result.Header.Hash, nil
}

// HashAccount resolves the 32-byte bridge recipient for a NEAR account id
// via the token bridge contract's hash_account view method. The contract
// returns a [registered, hex] pair; only the hex hash is used here.
func (c *Client) HashAccount(ctx context.Context, bridgeContractID, account string) ([32]byte, error) {
	var recipient [32]byte

	var result []json.RawMessage
	args := map[string]string{"account": account}
	if err := c.ViewCall(ctx, bridgeContractID, "hash_account", args, &result); err != nil {
		return recipient, err
	}
	if len(result) < 2 {
		return recipient, fmt.Errorf("hash_account returned %d elements, want 2", len(result))
	}

	var hashHex string
	if err := json.Unmarshal(result[1], &hashHex); err != nil {
		return recipient, fmt.Errorf("failed to decode account hash: %w", err)
	}

	raw := common.FromHex(hashHex)
	if len(raw) != len(recipient) {
		return recipient, fmt.Errorf("account hash is %d bytes, want %d", len(raw), len(recipient))
	}
	copy(recipient[:], raw)
	return recipient, nil
}

// call performs a single JSON-RPC round trip and decodes result into out.
func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "dontcare",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc returned status code %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		c.logger.Debug("near rpc error",
			zap.String("method", method),
			zap.String("name", rpcResp.Error.Name),
			zap.String("message", rpcResp.Error.Message))
		return fmt.Errorf("rpc error: %s: %s", rpcResp.Error.Name, rpcResp.Error.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}
