package usecase_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

func TestProxyStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("in sync uups proxy", func(t *testing.T) {
		f := newDeployFixture(t, false)
		deployed := f.mustDeploy(t, usecase.DeployProxyParams{ContractRef: "Agreement", Kind: models.ProxyKindUUPS})
		impl := common.HexToAddress(deployed.Implementation.Address)
		f.chain.slots = func(address common.Address, slot common.Hash) common.Address {
			if slot == models.ImplementationSlot {
				return impl
			}
			return common.Address{}
		}

		uc := usecase.NewProxyStatus(f.cfg, f.repo, f.chain, nil, f.sink)
		status, err := uc.Run(ctx, usecase.ProxyStatusParams{ProxyRef: "Agreement"})
		require.NoError(t, err)
		assert.True(t, status.HasCode)
		assert.True(t, status.ImplementationHasCode)
		assert.True(t, status.ImplementationMatches)
		assert.True(t, status.AdminMatches)
		assert.Empty(t, status.Admin)
		assert.True(t, status.InSync())
	})

	t.Run("drifted transparent proxy", func(t *testing.T) {
		f := newDeployFixture(t, false)
		f.mustDeploy(t, usecase.DeployProxyParams{ContractRef: "Agreement"})
		f.chain.slots = func(address common.Address, slot common.Hash) common.Address {
			return common.HexToAddress("0x000000000000000000000000000000000000dEaD")
		}

		uc := usecase.NewProxyStatus(f.cfg, f.repo, f.chain, nil, f.sink)
		status, err := uc.Run(ctx, usecase.ProxyStatusParams{ProxyRef: "Agreement"})
		require.NoError(t, err)
		assert.True(t, status.HasCode)
		assert.False(t, status.ImplementationHasCode)
		assert.False(t, status.ImplementationMatches)
		assert.False(t, status.AdminMatches)
		assert.Equal(t, "0x000000000000000000000000000000000000dEaD", status.Admin)
		assert.False(t, status.InSync())
	})

	t.Run("unknown proxy", func(t *testing.T) {
		f := newDeployFixture(t, false)

		uc := usecase.NewProxyStatus(f.cfg, f.repo, f.chain, nil, f.sink)
		_, err := uc.Run(ctx, usecase.ProxyStatusParams{ProxyRef: "Agreement"})
		assert.ErrorIs(t, err, domain.ErrNotDeployed)
	})
}
