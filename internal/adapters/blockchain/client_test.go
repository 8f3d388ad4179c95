package blockchain

import (
	"context"
	"crypto/ecdsa"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// init code that returns a single STOP byte as runtime code
var stopContract = common.FromHex("0x6001600c60003960016000f300")

// autoCommit mines a block after every sent transaction
type autoCommit struct {
	simulated.Client
	sim *simulated.Backend
}

func (a autoCommit) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := a.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	a.sim.Commit()
	return nil
}

func newSimulatedClient(t *testing.T) (*Client, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	balance := new(big.Int).Mul(big.NewInt(1_000_000_000_000_000_000), big.NewInt(100))
	sim := simulated.NewBackend(types.GenesisAlloc{from: {Balance: balance}})
	t.Cleanup(func() { _ = sim.Close() })

	client, err := NewClient(context.Background(), autoCommit{Client: sim.Client(), sim: sim}, key, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return client, key
}

func TestClientDeployAndTransact(t *testing.T) {
	client, key := newSimulatedClient(t)
	ctx := context.Background()

	assert.Equal(t, uint64(1337), client.ChainID())
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), client.From())

	artifact := &models.Artifact{Name: "Stop", Bytecode: stopContract}
	result, err := client.Deploy(ctx, artifact, nil)
	require.NoError(t, err)
	require.True(t, common.IsHexAddress(result.Address))
	assert.NotEqual(t, common.Address{}.Hex(), result.Address)
	assert.NotEmpty(t, result.Hash)
	assert.Equal(t, client.From().Hex(), result.Sender)
	assert.NotZero(t, result.GasUsed)

	address := common.HexToAddress(result.Address)
	hasCode, err := client.HasCode(ctx, address)
	require.NoError(t, err)
	assert.True(t, hasCode)

	hasCode, err = client.HasCode(ctx, common.HexToAddress("0x000000000000000000000000000000000000dEaD"))
	require.NoError(t, err)
	assert.False(t, hasCode)

	callResult, err := client.Transact(ctx, address, []byte{0x12, 0x34, 0x56, 0x78})
	require.NoError(t, err)
	assert.Empty(t, callResult.Address)
	assert.Greater(t, callResult.BlockNumber, result.BlockNumber)
}

func TestClientReadAddressSlot(t *testing.T) {
	client, _ := newSimulatedClient(t)
	ctx := context.Background()

	result, err := client.Deploy(ctx, &models.Artifact{Name: "Stop", Bytecode: stopContract}, nil)
	require.NoError(t, err)

	impl, err := client.ReadAddressSlot(ctx, common.HexToAddress(result.Address), models.ImplementationSlot)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, impl)
}

func TestClientDeployFailure(t *testing.T) {
	client, _ := newSimulatedClient(t)

	// PUSH1 0 PUSH1 0 REVERT
	reverting := &models.Artifact{Name: "Reverting", Bytecode: common.FromHex("0x60006000fd")}
	_, err := client.Deploy(context.Background(), reverting, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Reverting")
}

func TestConnectorRequiresNetworkAndKey(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	connector := NewConnector(&config.RuntimeConfig{Project: config.DefaultProjectConfig()}, log)

	_, err := connector.Connect(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrNetworkRequired)

	_, err = connector.Connect(ctx, &config.Network{Name: "local", RPCURL: "http://127.0.0.1:1"})
	assert.ErrorIs(t, err, domain.ErrNoDeployer)
}

func TestParsePrivateKey(t *testing.T) {
	const hexKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	key, err := ParsePrivateKey(hexKey)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), crypto.PubkeyToAddress(key.PublicKey))

	prefixed, err := ParsePrivateKey(" 0x" + hexKey + " ")
	require.NoError(t, err)
	assert.Equal(t, key.D, prefixed.D)

	_, err = ParsePrivateKey("")
	assert.ErrorIs(t, err, domain.ErrNoDeployer)

	_, err = ParsePrivateKey("not-a-key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoDeployer)
}
