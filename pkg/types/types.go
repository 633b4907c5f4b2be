package types

import "time"

// Direction identifies which side of the route a workflow run moves funds.
type Direction string

const (
	DirectionSupply   Direction = "supply"
	DirectionWithdraw Direction = "withdraw"
)

// RunStatus tracks a workflow run through its state machine.
type RunStatus string

const (
	StatusQuoting   RunStatus = "quoting"
	StatusExecuting RunStatus = "executing"
	StatusPolling   RunStatus = "polling"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s RunStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Token describes an ERC20 token on the EVM side of the route.
type Token struct {
	Symbol   string
	Address  string
	Decimals int32
}

// Run is the state of a single supply or withdraw workflow execution.
// It is owned by the sequencer while in flight and recorded to history
// once it reaches a terminal status.
type Run struct {
	ID              string    `json:"id"`
	Direction       Direction `json:"direction"`
	Account         string    `json:"account"`
	Amount          string    `json:"amount"`
	DepositAddress  string    `json:"deposit_address,omitempty"`
	TxHash          string    `json:"tx_hash,omitempty"`
	EstimatedOutput string    `json:"estimated_output,omitempty"`
	Status          RunStatus `json:"status"`
	SettledStatus   string    `json:"settled_status,omitempty"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
}
