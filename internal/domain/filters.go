package domain

import (
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// DeploymentFilter defines filtering options for deployments
type DeploymentFilter struct {
	Namespace    string
	ChainID      uint64
	ContractName string
	Label        string
	Type         models.DeploymentType
}

// TransactionFilter defines filtering options for transactions
type TransactionFilter struct {
	ChainID      uint64
	Namespace    string
	DeploymentID string
}
