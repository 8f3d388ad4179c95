package usecase_test

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// MockDeploymentRepository is a mock implementation of DeploymentRepository
type MockDeploymentRepository struct {
	mock.Mock
}

func (m *MockDeploymentRepository) GetDeployment(ctx context.Context, id string) (*models.Deployment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deployment), args.Error(1)
}

func (m *MockDeploymentRepository) GetDeploymentByAddress(ctx context.Context, chainID uint64, address string) (*models.Deployment, error) {
	args := m.Called(ctx, chainID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deployment), args.Error(1)
}

func (m *MockDeploymentRepository) ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*models.Deployment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deployment), args.Error(1)
}

func (m *MockDeploymentRepository) FindImplementation(ctx context.Context, chainID uint64, bytecodeHash string) (*models.Deployment, error) {
	args := m.Called(ctx, chainID, bytecodeHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deployment), args.Error(1)
}

func (m *MockDeploymentRepository) SaveDeployment(ctx context.Context, deployment *models.Deployment) error {
	args := m.Called(ctx, deployment)
	return args.Error(0)
}

func (m *MockDeploymentRepository) DeleteDeployments(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockDeploymentRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*models.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockDeploymentRepository) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

// MockDeploymentSelector is a mock implementation of DeploymentSelector
type MockDeploymentSelector struct {
	mock.Mock
}

func (m *MockDeploymentSelector) SelectDeployment(ctx context.Context, deployments []*models.Deployment, prompt string) (*models.Deployment, error) {
	args := m.Called(ctx, deployments, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deployment), args.Error(1)
}

// MockProgressSink records progress events
type MockProgressSink struct {
	events []usecase.ProgressEvent
	infos  []string
	errors []string
}

func (m *MockProgressSink) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	m.events = append(m.events, event)
}

func (m *MockProgressSink) Info(message string) {
	m.infos = append(m.infos, message)
}

func (m *MockProgressSink) Error(message string) {
	m.errors = append(m.errors, message)
}

// messagesWithPrefix returns every event message starting with prefix
func (m *MockProgressSink) messagesWithPrefix(prefix string) []string {
	var out []string
	for _, e := range m.events {
		if strings.HasPrefix(e.Message, prefix) {
			out = append(out, e.Message)
		}
	}
	return out
}

// artifactRepo is an in-memory ArtifactRepository
type artifactRepo map[string]*models.Artifact

func (r artifactRepo) GetArtifact(ctx context.Context, ref string) (*models.Artifact, error) {
	if a, ok := r[ref]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%s: %w", ref, domain.ErrContractNotFound)
}

func (r artifactRepo) ListArtifacts(ctx context.Context) ([]*models.Artifact, error) {
	var out []*models.Artifact
	for _, a := range r {
		out = append(out, a)
	}
	return out, nil
}

// sentDeploy is a contract creation seen by the fake chain
type sentDeploy struct {
	Artifact string
	Address  common.Address
	Args     []byte
}

// sentCall is a transaction seen by the fake chain
type sentCall struct {
	To       common.Address
	Calldata []byte
}

// fakeChain implements ChainConnector and ChainClient in memory
type fakeChain struct {
	mu       sync.Mutex
	chainID  uint64
	from     common.Address
	next     int64
	code     map[common.Address]bool
	deploys  []sentDeploy
	calls    []sentCall
	connects int

	// slots returns the value of an EIP-1967 slot, zero when nil
	slots     func(address common.Address, slot common.Hash) common.Address
	deployErr error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainID: 31337,
		from:    common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		next:    0x1000,
		code:    make(map[common.Address]bool),
	}
}

func (f *fakeChain) Connect(ctx context.Context, network *config.Network) (usecase.ChainClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f, nil
}

func (f *fakeChain) ChainID() uint64 { return f.chainID }

func (f *fakeChain) From() common.Address { return f.from }

func (f *fakeChain) Close() {}

func (f *fakeChain) txHash() string {
	return crypto.Keccak256Hash(big.NewInt(f.next).Bytes()).Hex()
}

func (f *fakeChain) Deploy(ctx context.Context, artifact *models.Artifact, constructorArgs []byte) (*models.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deployErr != nil {
		return nil, f.deployErr
	}

	f.next++
	address := common.BigToAddress(big.NewInt(f.next))
	f.code[address] = true
	f.deploys = append(f.deploys, sentDeploy{Artifact: artifact.Name, Address: address, Args: constructorArgs})

	return &models.TxResult{
		Address:     address.Hex(),
		Hash:        f.txHash(),
		BlockNumber: uint64(f.next),
		GasUsed:     21000,
		Sender:      f.from.Hex(),
	}, nil
}

func (f *fakeChain) Transact(ctx context.Context, to common.Address, calldata []byte) (*models.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	f.calls = append(f.calls, sentCall{To: to, Calldata: calldata})
	return &models.TxResult{
		Hash:        f.txHash(),
		BlockNumber: uint64(f.next),
		GasUsed:     30000,
		Sender:      f.from.Hex(),
	}, nil
}

func (f *fakeChain) HasCode(ctx context.Context, address common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code[address], nil
}

func (f *fakeChain) ReadAddressSlot(ctx context.Context, address common.Address, slot common.Hash) (common.Address, error) {
	if f.slots == nil {
		return common.Address{}, nil
	}
	return f.slots(address, slot), nil
}

func (f *fakeChain) deployed(name string) []sentDeploy {
	var out []sentDeploy
	for _, d := range f.deploys {
		if d.Artifact == name {
			out = append(out, d)
		}
	}
	return out
}

const (
	agreementABI = `[
		{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[
			{"name":"minimum","type":"uint256"},{"name":"maximum","type":"uint256"},{"name":"title","type":"string"}],"outputs":[]},
		{"type":"function","name":"upgradeToAndCall","stateMutability":"payable","inputs":[
			{"name":"newImplementation","type":"address"},{"name":"data","type":"bytes"}],"outputs":[]}
	]`
	agreementV2ABI = `[
		{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[
			{"name":"minimum","type":"uint256"},{"name":"maximum","type":"uint256"},{"name":"title","type":"string"}],"outputs":[]},
		{"type":"function","name":"migrate","stateMutability":"nonpayable","inputs":[{"name":"version","type":"uint8"}],"outputs":[]},
		{"type":"function","name":"upgradeToAndCall","stateMutability":"payable","inputs":[
			{"name":"newImplementation","type":"address"},{"name":"data","type":"bytes"}],"outputs":[]}
	]`
	lockedABI = `[
		{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[],"outputs":[]}
	]`
	erc1967ProxyABI = `[
		{"type":"constructor","stateMutability":"payable","inputs":[
			{"name":"implementation","type":"address"},{"name":"_data","type":"bytes"}]}
	]`
	transparentProxyV4ABI = `[
		{"type":"constructor","stateMutability":"payable","inputs":[
			{"name":"_logic","type":"address"},{"name":"admin_","type":"address"},{"name":"_data","type":"bytes"}]}
	]`
	transparentProxyV5ABI = `[
		{"type":"constructor","stateMutability":"payable","inputs":[
			{"name":"_logic","type":"address"},{"name":"initialOwner","type":"address"},{"name":"_data","type":"bytes"}]}
	]`
	proxyAdminV4ABI = `[
		{"type":"function","name":"upgrade","stateMutability":"nonpayable","inputs":[
			{"name":"proxy","type":"address"},{"name":"implementation","type":"address"}],"outputs":[]},
		{"type":"function","name":"upgradeAndCall","stateMutability":"payable","inputs":[
			{"name":"proxy","type":"address"},{"name":"implementation","type":"address"},{"name":"data","type":"bytes"}],"outputs":[]}
	]`
	proxyAdminV5ABI = `[
		{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"initialOwner","type":"address"}]},
		{"type":"function","name":"upgradeAndCall","stateMutability":"payable","inputs":[
			{"name":"proxy","type":"address"},{"name":"implementation","type":"address"},{"name":"data","type":"bytes"}],"outputs":[]}
	]`
)

func newArtifact(t *testing.T, name, abiJSON string, bytecode []byte) *models.Artifact {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	return &models.Artifact{
		Name:         name,
		SourcePath:   "src/" + name + ".sol",
		ABI:          parsed,
		Bytecode:     bytecode,
		BytecodeHash: crypto.Keccak256Hash(bytecode),
	}
}

// testArtifacts returns a repository holding the contracts used across tests.
// OpenZeppelin 4 transparent proxies are the default; v5 picks the newer layout.
func testArtifacts(t *testing.T, v5 bool) artifactRepo {
	repo := artifactRepo{
		"Agreement":    newArtifact(t, "Agreement", agreementABI, []byte{0x60, 0x01}),
		"AgreementV2":  newArtifact(t, "AgreementV2", agreementV2ABI, []byte{0x60, 0x02}),
		"Locked":       newArtifact(t, "Locked", lockedABI, []byte{0x60, 0x03}),
		"ERC1967Proxy": newArtifact(t, "ERC1967Proxy", erc1967ProxyABI, []byte{0x60, 0x10}),
	}
	if v5 {
		repo["TransparentUpgradeableProxy"] = newArtifact(t, "TransparentUpgradeableProxy", transparentProxyV5ABI, []byte{0x60, 0x11})
		repo["ProxyAdmin"] = newArtifact(t, "ProxyAdmin", proxyAdminV5ABI, []byte{0x60, 0x12})
	} else {
		repo["TransparentUpgradeableProxy"] = newArtifact(t, "TransparentUpgradeableProxy", transparentProxyV4ABI, []byte{0x60, 0x11})
		repo["ProxyAdmin"] = newArtifact(t, "ProxyAdmin", proxyAdminV4ABI, []byte{0x60, 0x12})
	}
	return repo
}

func testConfig(t *testing.T) *config.RuntimeConfig {
	root := t.TempDir()
	return &config.RuntimeConfig{
		ProjectRoot: root,
		DataDir:     root + "/.upgrades",
		Namespace:   "default",
		Network:     &config.Network{Name: "local", ChainID: 31337, RPCURL: "http://localhost:8545"},
		Project:     config.DefaultProjectConfig(),
	}
}
