package bridge

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChain struct {
	allowance    *big.Int
	allowanceErr error
	approveErr   error
	transferErr  error

	approveCalls  int
	transferCalls int

	gotApproveValue *big.Int
	gotBridge       common.Address
	gotChain        uint16
	gotRecipient    [32]byte
	gotPayload      []byte
}

func (f *fakeChain) Address() common.Address {
	return common.HexToAddress("0x2222222222222222222222222222222222222222")
}

func (f *fakeChain) Allowance(context.Context, common.Address, common.Address) (*big.Int, error) {
	if f.allowanceErr != nil {
		return nil, f.allowanceErr
	}
	return f.allowance, nil
}

func (f *fakeChain) Approve(_ context.Context, _, _ common.Address, value *big.Int) (string, error) {
	f.approveCalls++
	f.gotApproveValue = value
	if f.approveErr != nil {
		return "", f.approveErr
	}
	return "0xapprove", nil
}

func (f *fakeChain) TransferTokensWithPayload(_ context.Context, bridge, _ common.Address, _ *big.Int, recipientChain uint16, recipient [32]byte, payload []byte) (string, error) {
	f.transferCalls++
	f.gotBridge = bridge
	f.gotChain = recipientChain
	f.gotRecipient = recipient
	f.gotPayload = payload
	if f.transferErr != nil {
		return "", f.transferErr
	}
	return "0xtransfer", nil
}

type fakeHasher struct {
	gotContract string
	gotAccount  string
	err         error
}

func (f *fakeHasher) HashAccount(_ context.Context, bridgeContractID, account string) ([32]byte, error) {
	f.gotContract = bridgeContractID
	f.gotAccount = account
	var out [32]byte
	if f.err != nil {
		return out, f.err
	}
	out[31] = 0x7f
	return out, nil
}

func testDirectory() *Directory {
	return NewDirectory(map[uint16]string{
		4:  "0xB6F6D86a8f9879A9c87f643768d9efc38c1Da6E7",
		15: "contract.portalbridge.near",
	})
}

func testOrchestrator(chain *fakeChain, hasher *fakeHasher, dir *Directory) *Orchestrator {
	cfg := Config{SourceChainID: 4, DestChainID: 15, PayloadAccount: "lsd.stg.ref-dev-team.near"}
	return NewOrchestrator(chain, hasher, dir, cfg, zap.NewNop())
}

func params(amount int64, payload string) TransferParams {
	return TransferParams{
		Token:   common.HexToAddress("0xc350bafb46813dd23fd298c1caef96da4a4c1f2a"),
		Amount:  big.NewInt(amount),
		Payload: []byte(payload),
	}
}

func TestTransferHappyPath(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(0)}
	hasher := &fakeHasher{}

	txHash, err := testOrchestrator(chain, hasher, testDirectory()).Transfer(context.Background(), params(1000, "0xdeposit"))
	require.NoError(t, err)
	assert.Equal(t, "0xtransfer", txHash)

	assert.Equal(t, 1, chain.approveCalls)
	assert.Equal(t, "1000", chain.gotApproveValue.String())
	assert.Equal(t, 1, chain.transferCalls)
	assert.Equal(t, common.HexToAddress("0xB6F6D86a8f9879A9c87f643768d9efc38c1Da6E7"), chain.gotBridge)
	assert.Equal(t, uint16(15), chain.gotChain)
	assert.Equal(t, byte(0x7f), chain.gotRecipient[31])
	assert.Equal(t, []byte("0xdeposit"), chain.gotPayload)

	assert.Equal(t, "contract.portalbridge.near", hasher.gotContract)
	assert.Equal(t, "lsd.stg.ref-dev-team.near", hasher.gotAccount)
}

// Sufficient allowance must short-circuit the approval submission.
func TestTransferSkipsApprovalWhenCovered(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(5000)}

	_, err := testOrchestrator(chain, &fakeHasher{}, testDirectory()).Transfer(context.Background(), params(1000, "p"))
	require.NoError(t, err)
	assert.Zero(t, chain.approveCalls, "approval must not be submitted when allowance covers the amount")
}

func TestTransferAllowanceQueryFails(t *testing.T) {
	chain := &fakeChain{allowanceErr: fmt.Errorf("rpc down")}

	_, err := testOrchestrator(chain, &fakeHasher{}, testDirectory()).Transfer(context.Background(), params(1000, "p"))
	assert.ErrorIs(t, err, ErrApprovalFailed)
	assert.Zero(t, chain.transferCalls)
}

func TestTransferApproveFails(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(0), approveErr: fmt.Errorf("rejected")}

	_, err := testOrchestrator(chain, &fakeHasher{}, testDirectory()).Transfer(context.Background(), params(1000, "p"))
	assert.ErrorIs(t, err, ErrApprovalFailed)
	assert.Zero(t, chain.transferCalls)
}

func TestTransferUnknownSourceBridge(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(0)}
	dir := NewDirectory(map[uint16]string{15: "contract.portalbridge.near"})

	_, err := testOrchestrator(chain, &fakeHasher{}, dir).Transfer(context.Background(), params(1000, "p"))
	assert.ErrorIs(t, err, ErrBridgeUnavailable)
	assert.Zero(t, chain.approveCalls)
	assert.Zero(t, chain.transferCalls)
}

func TestTransferUnknownDestinationBridge(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(5000)}
	dir := NewDirectory(map[uint16]string{4: "0xB6F6D86a8f9879A9c87f643768d9efc38c1Da6E7"})

	_, err := testOrchestrator(chain, &fakeHasher{}, dir).Transfer(context.Background(), params(1000, "p"))
	assert.ErrorIs(t, err, ErrBridgeUnavailable)
	assert.Zero(t, chain.transferCalls, "must hard-stop before transferring")
}

// An empty payload derives the recipient from the empty account id.
func TestTransferEmptyPayloadHashesEmptyAccount(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(5000)}
	hasher := &fakeHasher{}

	_, err := testOrchestrator(chain, hasher, testDirectory()).Transfer(context.Background(), params(1000, ""))
	require.NoError(t, err)
	assert.Equal(t, "", hasher.gotAccount)
}

func TestTransferSubmissionFails(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(5000), transferErr: fmt.Errorf("reverted")}

	_, err := testOrchestrator(chain, &fakeHasher{}, testDirectory()).Transfer(context.Background(), params(1000, "p"))
	assert.ErrorIs(t, err, ErrTransferFailed)
}

func TestTransferRecipientDerivationFails(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(5000)}
	hasher := &fakeHasher{err: fmt.Errorf("view call failed")}

	_, err := testOrchestrator(chain, hasher, testDirectory()).Transfer(context.Background(), params(1000, "p"))
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.Zero(t, chain.transferCalls)
}
