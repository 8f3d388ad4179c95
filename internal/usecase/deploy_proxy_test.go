package usecase_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	abiadapter "github.com/trebuchet-org/treb-upgrades/internal/adapters/abi"
	"github.com/trebuchet-org/treb-upgrades/internal/adapters/repository/deployments"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

type deployFixture struct {
	cfg       *config.RuntimeConfig
	chain     *fakeChain
	repo      *deployments.FileRepository
	artifacts artifactRepo
	sink      *MockProgressSink
	uc        *usecase.DeployProxy
}

func newDeployFixture(t *testing.T, v5 bool) *deployFixture {
	cfg := testConfig(t)
	repo, err := deployments.NewFileRepository(cfg.DataDir)
	require.NoError(t, err)

	f := &deployFixture{
		cfg:       cfg,
		chain:     newFakeChain(),
		repo:      repo,
		artifacts: testArtifacts(t, v5),
		sink:      &MockProgressSink{},
	}
	f.uc = usecase.NewDeployProxy(cfg, f.artifacts, repo, abiadapter.NewCallEncoder(), f.chain, f.sink)
	return f
}

func TestDeployProxy(t *testing.T) {
	ctx := context.Background()

	t.Run("uups proxy with initializer arguments", func(t *testing.T) {
		f := newDeployFixture(t, false)

		result, err := f.uc.Run(ctx, usecase.DeployProxyParams{
			ContractRef: "Agreement",
			Args:        []any{123, 456, "abc"},
			Kind:        models.ProxyKindUUPS,
		})
		require.NoError(t, err)
		require.NotNil(t, result.Proxy)
		assert.NotEmpty(t, result.Proxy.Address)
		assert.Nil(t, result.Admin)
		assert.False(t, result.ReusedImplementation)

		// Exactly one address report
		assert.Equal(t, []string{"Deployed " + result.Proxy.Address}, f.sink.messagesWithPrefix("Deployed "))

		require.Len(t, f.chain.deploys, 2)
		assert.Equal(t, "Agreement", f.chain.deploys[0].Artifact)
		assert.Equal(t, "ERC1967Proxy", f.chain.deploys[1].Artifact)

		// Proxy constructor receives the implementation and the initializer call
		proxyABI := f.artifacts["ERC1967Proxy"].ABI
		values, err := proxyABI.Constructor.Inputs.Unpack(f.chain.deploys[1].Args)
		require.NoError(t, err)
		require.Len(t, values, 2)
		assert.Equal(t, f.chain.deploys[0].Address, values[0].(common.Address))

		initData := values[1].([]byte)
		initialize := f.artifacts["Agreement"].ABI.Methods["initialize"]
		require.GreaterOrEqual(t, len(initData), 4)
		assert.Equal(t, initialize.ID, initData[:4])

		decoded, err := initialize.Inputs.Unpack(initData[4:])
		require.NoError(t, err)
		assert.Equal(t, int64(123), decoded[0].(*big.Int).Int64())
		assert.Equal(t, int64(456), decoded[1].(*big.Int).Int64())
		assert.Equal(t, "abc", decoded[2])

		stored, err := f.repo.GetDeployment(ctx, "default/31337/Agreement")
		require.NoError(t, err)
		assert.Equal(t, models.ProxyDeployment, stored.Type)
		assert.Equal(t, result.Proxy.Address, stored.Address)
		require.NotNil(t, stored.ProxyInfo)
		assert.Equal(t, models.ProxyKindUUPS, stored.ProxyInfo.Kind)
		assert.Equal(t, result.Implementation.Address, stored.ProxyInfo.Implementation)
		assert.Len(t, stored.InitializerArgs, 3)
		require.NotNil(t, stored.Implementation)
		assert.Equal(t, models.ImplementationDeployment, stored.Implementation.Type)

		txs, err := f.repo.ListTransactions(ctx, domain.TransactionFilter{ChainID: 31337})
		require.NoError(t, err)
		assert.Len(t, txs, 2)
	})

	t.Run("wrong arity fails before any transaction", func(t *testing.T) {
		f := newDeployFixture(t, false)

		_, err := f.uc.Run(ctx, usecase.DeployProxyParams{
			ContractRef: "Agreement",
			Args:        []any{123, 456},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidArguments)
		assert.Zero(t, f.chain.connects)
		assert.Empty(t, f.chain.deploys)
	})

	t.Run("wrong type fails before any transaction", func(t *testing.T) {
		f := newDeployFixture(t, false)

		_, err := f.uc.Run(ctx, usecase.DeployProxyParams{
			ContractRef: "Agreement",
			Args:        []any{"abc", 456, "x"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidArguments)

		var argErr domain.ArgumentErr
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, 0, argErr.Index)
		assert.Empty(t, f.chain.deploys)
	})

	t.Run("empty argument list", func(t *testing.T) {
		f := newDeployFixture(t, false)

		result, err := f.uc.Run(ctx, usecase.DeployProxyParams{
			ContractRef: "Locked",
			Kind:        models.ProxyKindUUPS,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.Proxy.Address)

		values, err := f.artifacts["ERC1967Proxy"].ABI.Constructor.Inputs.Unpack(f.chain.deploys[1].Args)
		require.NoError(t, err)
		assert.Equal(t, f.artifacts["Locked"].ABI.Methods["initialize"].ID, values[1].([]byte))
	})

	t.Run("unknown contract", func(t *testing.T) {
		f := newDeployFixture(t, false)

		_, err := f.uc.Run(ctx, usecase.DeployProxyParams{ContractRef: "Missing"})
		assert.ErrorIs(t, err, domain.ErrContractNotFound)
		assert.Empty(t, f.chain.deploys)
	})

	t.Run("misspelled contract suggests close names", func(t *testing.T) {
		f := newDeployFixture(t, false)

		_, err := f.uc.Run(ctx, usecase.DeployProxyParams{ContractRef: "Agrement"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrContractNotFound)
		assert.Contains(t, err.Error(), "did you mean")
		assert.Contains(t, err.Error(), "Agreement")
		assert.Empty(t, f.chain.deploys)
	})

	t.Run("requires a network", func(t *testing.T) {
		f := newDeployFixture(t, false)
		f.cfg.Network = nil

		_, err := f.uc.Run(ctx, usecase.DeployProxyParams{ContractRef: "Agreement", Args: []any{1, 2, "a"}})
		assert.ErrorIs(t, err, domain.ErrNetworkRequired)
	})

	t.Run("existing proxy needs force", func(t *testing.T) {
		f := newDeployFixture(t, false)
		params := usecase.DeployProxyParams{
			ContractRef: "Agreement",
			Args:        []any{1, 2, "a"},
			Kind:        models.ProxyKindUUPS,
		}

		first, err := f.uc.Run(ctx, params)
		require.NoError(t, err)

		_, err = f.uc.Run(ctx, params)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
		assert.Len(t, f.chain.deploys, 2)

		params.Force = true
		second, err := f.uc.Run(ctx, params)
		require.NoError(t, err)
		assert.True(t, second.ReusedImplementation)
		assert.Equal(t, first.Implementation.Address, second.Implementation.Address)
		assert.NotEqual(t, first.Proxy.Address, second.Proxy.Address)
		assert.Len(t, f.chain.deploys, 3)

		stored, err := f.repo.GetDeployment(ctx, "default/31337/Agreement")
		require.NoError(t, err)
		assert.Equal(t, second.Proxy.Address, stored.Address)
		assert.True(t, first.Proxy.CreatedAt.Equal(stored.CreatedAt))
	})

	t.Run("transparent proxy with shared admin", func(t *testing.T) {
		f := newDeployFixture(t, false)

		result, err := f.uc.Run(ctx, usecase.DeployProxyParams{
			ContractRef: "Agreement",
			Args:        []any{1, 2, "a"},
		})
		require.NoError(t, err)
		require.NotNil(t, result.Admin)
		assert.False(t, result.ReusedAdmin)

		require.Len(t, f.chain.deploys, 3)
		assert.Equal(t, "Agreement", f.chain.deploys[0].Artifact)
		assert.Equal(t, "ProxyAdmin", f.chain.deploys[1].Artifact)
		assert.Equal(t, "TransparentUpgradeableProxy", f.chain.deploys[2].Artifact)

		values, err := f.artifacts["TransparentUpgradeableProxy"].ABI.Constructor.Inputs.Unpack(f.chain.deploys[2].Args)
		require.NoError(t, err)
		assert.Equal(t, f.chain.deploys[0].Address, values[0].(common.Address))
		assert.Equal(t, f.chain.deploys[1].Address, values[1].(common.Address))
		assert.Equal(t, result.Admin.Address, result.Proxy.ProxyInfo.Admin)
		assert.Equal(t, models.ProxyKindTransparent, result.Proxy.ProxyInfo.Kind)

		// A second proxy reuses the admin and the implementation
		labelled, err := f.uc.Run(ctx, usecase.DeployProxyParams{
			ContractRef: "Agreement",
			Label:       "b",
			Args:        []any{3, 4, "b"},
		})
		require.NoError(t, err)
		assert.True(t, labelled.ReusedAdmin)
		assert.True(t, labelled.ReusedImplementation)
		assert.Equal(t, result.Admin.Address, labelled.Admin.Address)
		assert.Len(t, f.chain.deploys, 4)
		assert.Equal(t, "default/31337/Agreement:b", labelled.Proxy.ID)
	})

	t.Run("transparent proxy creating its own admin", func(t *testing.T) {
		f := newDeployFixture(t, true)
		admin := common.HexToAddress("0x00000000000000000000000000000000000Ad000")
		f.chain.slots = func(address common.Address, slot common.Hash) common.Address {
			if slot == models.AdminSlot {
				return admin
			}
			return common.Address{}
		}

		result, err := f.uc.Run(ctx, usecase.DeployProxyParams{
			ContractRef: "Agreement",
			Args:        []any{1, 2, "a"},
		})
		require.NoError(t, err)

		require.Len(t, f.chain.deploys, 2)
		assert.Empty(t, f.chain.deployed("ProxyAdmin"))

		values, err := f.artifacts["TransparentUpgradeableProxy"].ABI.Constructor.Inputs.Unpack(f.chain.deploys[1].Args)
		require.NoError(t, err)
		assert.Equal(t, f.chain.from, values[1].(common.Address))

		require.NotNil(t, result.Admin)
		assert.Equal(t, admin.Hex(), result.Admin.Address)
		assert.Equal(t, "Agreement", result.Admin.Label)
		assert.Equal(t, admin.Hex(), result.Proxy.ProxyInfo.Admin)
	})
}
