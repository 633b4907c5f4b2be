package nearclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// byteArray renders a JSON value the way the NEAR RPC returns view-call
// results: an array of byte values.
func byteArray(v interface{}) []int {
	raw, _ := json.Marshal(v)
	out := make([]int, len(raw))
	for i, b := range raw {
		out[i] = int(b)
	}
	return out
}

func TestViewCall(t *testing.T) {
	var gotParams callFunctionParams

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string             `json:"method"`
			Params callFunctionParams `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "query", req.Method)
		gotParams = req.Params

		result := map[string]interface{}{
			"result": byteArray(map[string]string{"underlying_token_id": "usdt.tether-token.near"}),
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": "dontcare", "result": result})
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())

	var out struct {
		UnderlyingTokenID string `json:"underlying_token_id"`
	}
	err := client.ViewCall(context.Background(), "lsd.stg.ref-dev-team.near", "get_metadata", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "usdt.tether-token.near", out.UnderlyingTokenID)

	assert.Equal(t, "call_function", gotParams.RequestType)
	assert.Equal(t, "final", gotParams.Finality)
	assert.Equal(t, "lsd.stg.ref-dev-team.near", gotParams.AccountID)
	assert.Equal(t, "get_metadata", gotParams.MethodName)

	args, err := base64.StdEncoding.DecodeString(gotParams.ArgsBase64)
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(args))
}

func TestViewCallContractError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := map[string]interface{}{"error": "wasm execution failed"}
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": "dontcare", "result": result})
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	err := client.ViewCall(context.Background(), "some.near", "get_asset", map[string]string{"token_id": "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wasm execution failed")
}

func TestViewCallRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rpcErr := map[string]interface{}{"name": "HANDLER_ERROR", "message": "unknown account"}
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": "dontcare", "error": rpcErr})
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	err := client.ViewCall(context.Background(), "missing.near", "get_metadata", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown account")
}

func TestLatestBlockHash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string      `json:"method"`
			Params blockParams `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "block", req.Method)
		require.Equal(t, "final", req.Params.Finality)

		result := map[string]interface{}{"header": map[string]string{"hash": "9e1VDhd7vV2pYSEkkzVMPUJsxBp8XW3UXis7rGrFFMTY"}}
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": "dontcare", "result": result})
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	hash, err := client.LatestBlockHash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9e1VDhd7vV2pYSEkkzVMPUJsxBp8XW3UXis7rGrFFMTY", hash)
}

func TestHashAccount(t *testing.T) {
	hashHex := fmt.Sprintf("%064x", 0xabcdef)

	var gotArgs map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Params callFunctionParams `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		args, err := base64.StdEncoding.DecodeString(req.Params.ArgsBase64)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(args, &gotArgs))

		result := map[string]interface{}{
			"result": byteArray([]interface{}{true, hashHex}),
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": "dontcare", "result": result})
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	recipient, err := client.HashAccount(context.Background(), "contract.portalbridge.near", "lsd.stg.ref-dev-team.near")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"account": "lsd.stg.ref-dev-team.near"}, gotArgs)
	assert.Equal(t, fmt.Sprintf("%064x", 0xabcdef), fmt.Sprintf("%x", recipient[:]))
}
