package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// DeploymentRepository handles persistence of deployments
type DeploymentRepository interface {
	GetDeployment(ctx context.Context, id string) (*models.Deployment, error)
	GetDeploymentByAddress(ctx context.Context, chainID uint64, address string) (*models.Deployment, error)
	ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*models.Deployment, error)
	FindImplementation(ctx context.Context, chainID uint64, bytecodeHash string) (*models.Deployment, error)
	SaveDeployment(ctx context.Context, deployment *models.Deployment) error
	DeleteDeployments(ctx context.Context, ids []string) error
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*models.Transaction, error)
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
}

// ArtifactRepository resolves contract names to compiled artifacts
type ArtifactRepository interface {
	GetArtifact(ctx context.Context, ref string) (*models.Artifact, error)
	ListArtifacts(ctx context.Context) ([]*models.Artifact, error)
}

// CallEncoder turns literal argument tuples into ABI encoded bytes
type CallEncoder interface {
	// EncodeCall packs selector + arguments for method
	EncodeCall(contractABI *abi.ABI, method string, args []any) ([]byte, error)
	// EncodeConstructor packs constructor arguments (without bytecode)
	EncodeConstructor(contractABI *abi.ABI, args []any) ([]byte, error)
}

// ChainConnector opens a session against a network
type ChainConnector interface {
	Connect(ctx context.Context, network *config.Network) (ChainClient, error)
}

// ChainClient sends transactions and reads state on one chain
type ChainClient interface {
	ChainID() uint64
	From() common.Address
	// Deploy sends creation code with encoded constructor args appended and waits for the receipt
	Deploy(ctx context.Context, artifact *models.Artifact, constructorArgs []byte) (*models.TxResult, error)
	// Transact sends calldata to an address and waits for the receipt
	Transact(ctx context.Context, to common.Address, calldata []byte) (*models.TxResult, error)
	HasCode(ctx context.Context, address common.Address) (bool, error)
	// ReadAddressSlot reads a storage slot holding an address (EIP-1967 slots)
	ReadAddressSlot(ctx context.Context, address common.Address, slot common.Hash) (common.Address, error)
	Close()
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata any
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}

// DeploymentSelector handles interactive selection of deployments
type DeploymentSelector interface {
	SelectDeployment(ctx context.Context, deployments []*models.Deployment, prompt string) (*models.Deployment, error)
}
