package blockchain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// Backend is the subset of an RPC client the deployer needs.
// *ethclient.Client and the simulated backend client both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

// Client signs and sends transactions with a single key on one chain
type Client struct {
	backend        Backend
	opts           *bind.TransactOpts
	chainID        uint64
	receiptTimeout time.Duration
	closer         func()
	log            *slog.Logger
}

// NewClient creates a client on an already connected backend
func NewClient(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, log *slog.Logger) (*Client, error) {
	networkChainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, networkChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	return &Client{
		backend: backend,
		opts:    opts,
		chainID: networkChainID.Uint64(),
		closer:  func() {},
		log:     log,
	}, nil
}

// ChainID returns the chain the client is connected to
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// From returns the deployer address
func (c *Client) From() common.Address {
	return c.opts.From
}

// transactOpts copies the signer options bound to ctx
func (c *Client) transactOpts(ctx context.Context) *bind.TransactOpts {
	opts := *c.opts
	opts.Context = ctx
	return &opts
}

// Deploy sends the artifact's creation code with constructorArgs appended
func (c *Client) Deploy(ctx context.Context, artifact *models.Artifact, constructorArgs []byte) (*models.TxResult, error) {
	initCode := append(append([]byte{}, artifact.Bytecode...), constructorArgs...)

	c.log.Debug("deploying contract", "contract", artifact.Name, "initCodeSize", len(initCode))

	// Arguments are pre-encoded, so an empty ABI packs nothing extra
	_, tx, _, err := bind.DeployContract(c.transactOpts(ctx), abi.ABI{}, initCode, c.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s deployment: %w", artifact.Name, err)
	}

	receipt, err := c.wait(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%s deployment: %w", artifact.Name, err)
	}

	return &models.TxResult{
		Address:     receipt.ContractAddress.Hex(),
		Hash:        tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Sender:      c.opts.From.Hex(),
	}, nil
}

// Transact sends calldata to an existing contract
func (c *Client) Transact(ctx context.Context, to common.Address, calldata []byte) (*models.TxResult, error) {
	c.log.Debug("sending transaction", "to", to.Hex(), "calldataSize", len(calldata))

	contract := bind.NewBoundContract(to, abi.ABI{}, c.backend, c.backend, c.backend)
	tx, err := contract.RawTransact(c.transactOpts(ctx), calldata)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction to %s: %w", to.Hex(), err)
	}

	receipt, err := c.wait(ctx, tx)
	if err != nil {
		return nil, err
	}

	return &models.TxResult{
		Hash:        tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Sender:      c.opts.From.Hex(),
	}, nil
}

// wait blocks until tx is mined and checks its status
func (c *Client) wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if c.receiptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.receiptTimeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s: %w", tx.Hash().Hex(), domain.ErrTransactionReverted)
	}
	return receipt, nil
}

// HasCode reports whether a contract exists at address
func (c *Client) HasCode(ctx context.Context, address common.Address) (bool, error) {
	code, err := c.backend.CodeAt(ctx, address, nil)
	if err != nil {
		return false, fmt.Errorf("failed to check code: %w", err)
	}
	return len(code) > 0, nil
}

// ReadAddressSlot reads the low 20 bytes of a storage slot
func (c *Client) ReadAddressSlot(ctx context.Context, address common.Address, slot common.Hash) (common.Address, error) {
	value, err := c.backend.StorageAt(ctx, address, slot, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read slot %s: %w", slot.Hex(), err)
	}
	return common.BytesToAddress(value), nil
}

// Close releases the underlying connection
func (c *Client) Close() {
	c.closer()
}

// Connector dials networks with the configured deployer key
type Connector struct {
	cfg *config.RuntimeConfig
	log *slog.Logger
}

// NewConnector creates a new chain connector
func NewConnector(cfg *config.RuntimeConfig, log *slog.Logger) *Connector {
	return &Connector{cfg: cfg, log: log}
}

// Connect dials the network RPC and verifies its chain ID
func (c *Connector) Connect(ctx context.Context, network *config.Network) (usecase.ChainClient, error) {
	if network == nil || network.RPCURL == "" {
		return nil, domain.ErrNetworkRequired
	}

	key, err := ParsePrivateKey(c.deployerKey())
	if err != nil {
		return nil, err
	}

	rpcClient, err := ethclient.DialContext(ctx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	client, err := NewClient(ctx, rpcClient, key, c.log)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	client.closer = rpcClient.Close

	if network.ChainID != 0 && network.ChainID != client.chainID {
		rpcClient.Close()
		return nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", network.ChainID, client.chainID)
	}
	network.ChainID = client.chainID

	if c.cfg.Project != nil {
		if netCfg, ok := c.cfg.Project.Networks[network.Name]; ok {
			client.receiptTimeout = netCfg.ReceiptWait()
		}
	}

	c.log.Debug("connected", "network", network.Name, "chainId", client.chainID, "deployer", client.From().Hex())
	return client, nil
}

func (c *Connector) deployerKey() string {
	if c.cfg.Project == nil {
		return ""
	}
	return c.cfg.Project.Deployer.PrivateKey
}

// ReadChainID dials rpcURL and asks for its chain ID without needing a deployer key
func (c *Connector) ReadChainID(ctx context.Context, rpcURL string) (uint64, error) {
	rpcClient, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	defer rpcClient.Close()

	chainID, err := rpcClient.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return chainID.Uint64(), nil
}

// ParsePrivateKey parses a hex private key with or without 0x prefix
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex == "" {
		return nil, domain.ErrNoDeployer
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid deployer private key: %w", err)
	}
	return key, nil
}

// Ensure the adapters implement the interfaces
var (
	_ usecase.ChainClient    = (*Client)(nil)
	_ usecase.ChainConnector = (*Connector)(nil)
	_ usecase.ChainIDReader  = (*Connector)(nil)
)
