package lsd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeViewer serves canned view-call results keyed by method name and can
// inject failures per method.
type fakeViewer struct {
	results   map[string]interface{}
	failing   map[string]error
	blockHash string
}

func (f *fakeViewer) ViewCall(_ context.Context, _, method string, _, out interface{}) error {
	if err, ok := f.failing[method]; ok {
		return err
	}
	value, ok := f.results[method]
	if !ok {
		return fmt.Errorf("unexpected view call: %s", method)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeViewer) LatestBlockHash(context.Context) (string, error) {
	if f.blockHash == "" {
		return "", fmt.Errorf("no block hash configured")
	}
	return f.blockHash, nil
}

func testConfig() Config {
	return Config{
		LsdContractID:    "lsd.stg.ref-dev-team.near",
		BurrowContractID: "br.private-mainnet.ref-dev-team.near",
		UnderlyingToken:  "usdt.tether-token.near",
		StableDecimals:   18,
		SourceChainID:    4,
		FinalReceiver:    "0x468fB74626aA39ddeD71F69a39D660A66108BCf1",
	}
}

func viewerWithPool(shares, balance, totalSupply, underlying string) *fakeViewer {
	return &fakeViewer{
		results: map[string]interface{}{
			"get_metadata": Metadata{
				UnderlyingTokenID:          "usdt.tether-token.near",
				UnderlyingBurrowlandShares: underlying,
			},
			"ft_total_supply": totalSupply,
			"get_asset": BurrowAsset{
				TokenID:  "usdt.tether-token.near",
				Supplied: AssetPosition{Shares: shares, Balance: balance},
			},
		},
		blockHash: "9e1VDhd7vV2pYSEkkzVMPUJsxBp8XW3UXis7rGrFFMTY",
	}
}

func TestRequiredFromPoolExact(t *testing.T) {
	pool := &PoolState{
		SuppliedShares:   big.NewInt(2),
		SuppliedBalance:  big.NewInt(4),
		TotalSupply:      big.NewInt(10),
		UnderlyingShares: big.NewInt(5),
	}

	// 8 * 2 * 10 / (4 * 5) = 8 exactly, no ceiling bump.
	got, err := RequiredFromPool(pool, big.NewInt(8))
	require.NoError(t, err)
	assert.Equal(t, "8", got.String())
}

func TestRequiredFromPoolRoundsUp(t *testing.T) {
	pool := &PoolState{
		SuppliedShares:   big.NewInt(43),
		SuppliedBalance:  big.NewInt(100),
		TotalSupply:      big.NewInt(1),
		UnderlyingShares: big.NewInt(1),
	}

	// 7 * 43 / 100 = 3.01: truncation and round-half would both give 3,
	// ceiling must give 4.
	got, err := RequiredFromPool(pool, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, "4", got.String())
}

func TestRequiredFromPoolMonotonic(t *testing.T) {
	pool := &PoolState{
		SuppliedShares:   big.NewInt(987654321),
		SuppliedBalance:  big.NewInt(1234567890),
		TotalSupply:      big.NewInt(555555555),
		UnderlyingShares: big.NewInt(777777777),
	}

	prev := big.NewInt(-1)
	for in := int64(1); in <= 5000; in += 7 {
		got, err := RequiredFromPool(pool, big.NewInt(in))
		require.NoError(t, err)
		require.True(t, got.Cmp(prev) >= 0, "derivative decreased at input %d", in)
		prev = got
	}
}

func TestRequiredFromPoolZeroDenominator(t *testing.T) {
	pool := &PoolState{
		SuppliedShares:   big.NewInt(1),
		SuppliedBalance:  big.NewInt(0),
		TotalSupply:      big.NewInt(1),
		UnderlyingShares: big.NewInt(1),
	}
	_, err := RequiredFromPool(pool, big.NewInt(1))
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestRequiredDerivative(t *testing.T) {
	viewer := viewerWithPool("300", "100", "7", "21")
	svc := NewService(viewer, testConfig(), zap.NewNop())

	// rawIn = 2e18; 2e18 * 300 * 7 / (100 * 21) = 2e18.
	got, err := svc.RequiredDerivative(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", got.String())
}

func TestPoolStateFetchFailure(t *testing.T) {
	viewer := viewerWithPool("1", "1", "1", "1")
	viewer.failing = map[string]error{
		"ft_total_supply": fmt.Errorf("rpc timeout"),
		"get_asset":       fmt.Errorf("rpc timeout"),
	}
	svc := NewService(viewer, testConfig(), zap.NewNop())

	pool, err := svc.PoolState(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Nil(t, pool, "no partial snapshot on failure")
}

func TestPoolStateMalformedField(t *testing.T) {
	viewer := viewerWithPool("300", "not-a-number", "7", "21")
	svc := NewService(viewer, testConfig(), zap.NewNop())

	_, err := svc.PoolState(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestSupplyRecipientMessage(t *testing.T) {
	viewer := viewerWithPool("1", "1", "1", "1")
	svc := NewService(viewer, testConfig(), zap.NewNop())

	msg, err := svc.SupplyRecipientMessage(context.Background(), "0x55d398326f99059fF775485246999027B3197955")
	require.NoError(t, err)

	var outer supplyMessage
	require.NoError(t, json.Unmarshal([]byte(msg), &outer))
	assert.Equal(t, viewer.blockHash, outer.BlockHash)

	var inner supplyInstruction
	require.NoError(t, json.Unmarshal([]byte(outer.Msg), &inner))
	assert.Equal(t, 4, inner.Chain)
	assert.Equal(t, "0", inner.Fee)
	assert.Equal(t, 0, inner.MessageFee)
	assert.Equal(t, "00000000000000000000000055d398326f99059ff775485246999027b3197955", inner.Payload)
	assert.Equal(t, "000000000000000000000000468fb74626aa39dded71f69a39d660a66108bcf1", inner.Receiver)
}

func TestEncodeAddress(t *testing.T) {
	encoded, err := EncodeAddress("0x468fB74626aA39ddeD71F69a39D660A66108BCf1")
	require.NoError(t, err)
	assert.Equal(t, "000000000000000000000000468fb74626aa39dded71f69a39d660a66108bcf1", encoded)

	_, err = EncodeAddress("not-an-address")
	assert.Error(t, err)

	_, err = EncodeAddress("lsd.stg.ref-dev-team.near")
	assert.Error(t, err)
}
