package models

import "time"

// TransactionStatus represents the status of a transaction
type TransactionStatus string

const (
	TransactionStatusExecuted TransactionStatus = "EXECUTED"
	TransactionStatusFailed   TransactionStatus = "FAILED"
)

// Transaction represents a blockchain transaction record
type Transaction struct {
	ID      string `json:"id"` // "tx-<hash>"
	ChainID uint64 `json:"chainId"`
	Hash    string `json:"hash"`

	Status      TransactionStatus `json:"status"`
	BlockNumber uint64            `json:"blockNumber,omitempty"`
	GasUsed     uint64            `json:"gasUsed,omitempty"`
	Sender      string            `json:"sender"`

	// Deployment IDs created or changed by this tx
	Deployments []string    `json:"deployments"`
	Operations  []Operation `json:"operations"`

	Namespace string    `json:"namespace"`
	CreatedAt time.Time `json:"createdAt"`
}

// Operation represents an operation within a transaction
type Operation struct {
	Type   string `json:"type"`   // DEPLOY, CALL
	Target string `json:"target"` // Target address
	Method string `json:"method"` // Method called or contract deployed
}

// TxResult is what the chain reports for a mined transaction
type TxResult struct {
	Address     string // created contract, empty for calls
	Hash        string
	BlockNumber uint64
	GasUsed     uint64
	Sender      string
}

// TransactionID builds the registry key for a transaction hash
func TransactionID(hash string) string {
	return "tx-" + hash
}
