package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const (
	proxyAddr = "0x0000000000000000000000000000000000001003"
	implAddr  = "0x0000000000000000000000000000000000001001"
	impl2Addr = "0x0000000000000000000000000000000000001004"
	adminAddr = "0x0000000000000000000000000000000000001002"
)

func proxyDeployment() *models.Deployment {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return &models.Deployment{
		ID:              "default/31337/Agreement",
		Namespace:       "default",
		Network:         "local",
		ChainID:         31337,
		ContractName:    "Agreement",
		Address:         proxyAddr,
		Type:            models.ProxyDeployment,
		TransactionHash: "0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789",
		ProxyInfo: &models.ProxyInfo{
			Kind:                   models.ProxyKindTransparent,
			Implementation:         implAddr,
			ImplementationContract: "Agreement",
			Admin:                  adminAddr,
		},
		Artifact:  models.ArtifactInfo{Path: "src/Agreement.sol:Agreement"},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestProxyRenderer_Deploy(t *testing.T) {
	result := &usecase.DeployProxyResult{Proxy: proxyDeployment(), ReusedImplementation: true}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewProxyRenderer(&buf, false).RenderDeploy(result))

		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "Deployed "+proxyAddr+"\n"))
		assert.Equal(t, 1, strings.Count(out, "Deployed"))
		assert.Contains(t, out, implAddr+" (reused)")
		assert.Contains(t, out, adminAddr)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewProxyRenderer(&buf, true).RenderDeploy(result))

		var out map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, "deploy", out["action"])
		assert.Equal(t, proxyAddr, out["address"])
		assert.Equal(t, "transparent", out["kind"])
		assert.Equal(t, true, out["reusedImplementation"])
	})
}

func TestProxyRenderer_Upgrade(t *testing.T) {
	proxy := proxyDeployment()
	proxy.ProxyInfo.Implementation = impl2Addr
	proxy.ProxyInfo.ImplementationContract = "AgreementV2"
	result := &usecase.UpgradeProxyResult{
		Proxy:                  proxy,
		PreviousImplementation: implAddr,
		TransactionHash:        "0x01",
	}

	var buf bytes.Buffer
	require.NoError(t, NewProxyRenderer(&buf, false).RenderUpgrade(result))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Upgraded "+proxyAddr+"\n"))
	assert.Equal(t, 1, strings.Count(out, "Upgraded"))
	assert.Contains(t, out, implAddr+" -> "+impl2Addr+" (AgreementV2)")
}

func TestProxyRenderer_Status(t *testing.T) {
	result := &usecase.ProxyStatusResult{
		Proxy:                 proxyDeployment(),
		HasCode:               true,
		Implementation:        implAddr,
		ImplementationHasCode: true,
		ImplementationMatches: true,
		Admin:                 adminAddr,
		AdminMatches:          true,
	}

	var buf bytes.Buffer
	require.NoError(t, NewProxyRenderer(&buf, false).RenderStatus(result))
	assert.Contains(t, buf.String(), "Proxy matches the registry")

	result.AdminMatches = false
	buf.Reset()
	require.NoError(t, NewProxyRenderer(&buf, true).RenderStatus(result))
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, false, out["inSync"])
	assert.Equal(t, adminAddr, out["recordedAdmin"])
}

func TestDeploymentsRenderer(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewDeploymentsRenderer(&buf, false).RenderDeploymentList(&usecase.DeploymentListResult{}))
		assert.Equal(t, "No deployments found\n", buf.String())

		buf.Reset()
		require.NoError(t, NewDeploymentsRenderer(&buf, true).RenderDeploymentList(&usecase.DeploymentListResult{}))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("grouped", func(t *testing.T) {
		admin := &models.Deployment{
			ID: "default/31337/ProxyAdmin", Namespace: "default", ChainID: 31337,
			ContractName: "ProxyAdmin", Address: adminAddr, Type: models.ProxyAdminDeployment,
		}
		impl := &models.Deployment{
			ID: "default/31337/Agreement:impl-12345678", Namespace: "default", ChainID: 31337,
			ContractName: "Agreement", Label: "impl-12345678", Address: implAddr, Type: models.ImplementationDeployment,
		}

		var buf bytes.Buffer
		err := NewDeploymentsRenderer(&buf, false).RenderDeploymentList(&usecase.DeploymentListResult{
			Deployments: []*models.Deployment{proxyDeployment(), impl, admin},
		})
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, "DEFAULT")
		assert.Contains(t, out, "31337")
		assert.Contains(t, out, "PROXIES")
		assert.Contains(t, out, "IMPLEMENTATIONS")
		assert.Contains(t, out, "PROXY ADMINS")
		assert.Contains(t, out, "Agreement:impl-12345678")
		assert.Contains(t, out, "└─ Agreement (transparent)")
		assert.Less(t, strings.Index(out, "PROXIES"), strings.Index(out, "IMPLEMENTATIONS"))
	})
}

func TestDeploymentRenderer(t *testing.T) {
	proxy := proxyDeployment()
	proxy.ProxyInfo.History = []models.ProxyUpgrade{{
		Implementation:         impl2Addr,
		ImplementationContract: "AgreementV2",
		UpgradedAt:             time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}}

	var buf bytes.Buffer
	require.NoError(t, NewDeploymentRenderer(&buf, false).RenderDeployment(proxy))

	out := buf.String()
	assert.Contains(t, out, "Deployment: default/31337/Agreement")
	assert.Contains(t, out, "Type: Proxy")
	assert.Contains(t, out, "Network: local (31337)")
	assert.Contains(t, out, "Kind: Transparent")
	assert.Contains(t, out, "1. AgreementV2 at "+impl2Addr+" (upgraded at 2025-02-01 00:00:00)")
}

func TestDeploymentRenderer_Transactions(t *testing.T) {
	proxy := proxyDeployment()
	proxy.Transactions = []*models.Transaction{{
		ID:          "tx-0x1234",
		Hash:        "0x1234",
		ChainID:     31337,
		BlockNumber: 7,
		GasUsed:     21000,
		Sender:      adminAddr,
		Operations:  []models.Operation{{Type: "DEPLOY", Target: proxyAddr, Method: "ERC1967Proxy"}},
	}}

	var buf bytes.Buffer
	require.NoError(t, NewDeploymentRenderer(&buf, false).RenderDeployment(proxy))
	assert.Contains(t, buf.String(), "0x1234 block 7, gas 21000, from "+adminAddr+" ERC1967Proxy")

	buf.Reset()
	require.NoError(t, NewDeploymentRenderer(&buf, true).RenderDeployment(proxy))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "default/31337/Agreement", decoded["id"])
	txs, ok := decoded["transactions"].([]any)
	require.True(t, ok)
	assert.Len(t, txs, 1)
}

func TestMigrationRenderer(t *testing.T) {
	deploy := &usecase.MigrationStep{Name: "agreement", Action: usecase.ActionDeploy, Contract: "Agreement"}
	upgrade := &usecase.MigrationStep{Name: "agreement-v2", Action: usecase.ActionUpgrade, Proxy: "Agreement", To: "AgreementV2", Deps: []string{"agreement"}}
	plan := &usecase.MigrationPlan{Name: "migrations", Steps: []*usecase.MigrationStep{deploy, upgrade}}

	t.Run("plan", func(t *testing.T) {
		var buf bytes.Buffer
		NewMigrationRenderer(&buf, false).RenderPlan(plan)
		out := buf.String()
		assert.Contains(t, out, "1. agreement → deploy Agreement")
		assert.Contains(t, out, "2. agreement-v2 → upgrade Agreement to AgreementV2 (depends on: agreement)")
	})

	t.Run("failed result json", func(t *testing.T) {
		result := &usecase.RunMigrationsResult{
			Plan:         plan,
			SkippedSteps: []*usecase.MigrationStep{deploy},
			ExecutedSteps: []*usecase.MigrationStepResult{
				{Step: upgrade, Error: errors.New("step 'agreement-v2': not upgradeable")},
			},
		}
		result.FailedStep = result.ExecutedSteps[0]

		var buf bytes.Buffer
		require.NoError(t, NewMigrationRenderer(&buf, true).RenderResult(result))

		var out migrationOutput
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.False(t, out.Success)
		assert.Equal(t, []string{"agreement"}, out.Skipped)
		assert.Empty(t, out.Executed)
		assert.Equal(t, "agreement-v2", out.FailedStep)
		assert.Contains(t, out.Error, "not upgradeable")
	})

	t.Run("step results", func(t *testing.T) {
		var buf bytes.Buffer
		r := NewMigrationRenderer(&buf, false)
		r.RenderStepResult(&usecase.MigrationStepResult{Step: deploy, Address: proxyAddr, Deploy: &usecase.DeployProxyResult{}})
		r.RenderStepResult(&usecase.MigrationStepResult{Step: upgrade, Address: proxyAddr, Upgrade: &usecase.UpgradeProxyResult{}})
		assert.Equal(t, "Deployed "+proxyAddr+"\nUpgraded "+proxyAddr+"\n", buf.String())
	})
}

func TestPruneRenderer(t *testing.T) {
	result := &usecase.PruneRegistryResult{ChainID: 31337, Checked: 2, Pruned: []*models.Deployment{proxyDeployment()}}

	var buf bytes.Buffer
	require.NoError(t, NewPruneRenderer(&buf, false).RenderPrune(result, false))
	assert.Contains(t, buf.String(), "Found 1 registry entries with no code on chain 31337")
	assert.Contains(t, buf.String(), "default/31337/Agreement (Proxy) "+proxyAddr)

	buf.Reset()
	require.NoError(t, NewPruneRenderer(&buf, false).RenderPrune(result, true))
	assert.Equal(t, "✅ Pruned 1 entries from the registry\n", buf.String())

	buf.Reset()
	require.NoError(t, NewPruneRenderer(&buf, false).RenderPrune(&usecase.PruneRegistryResult{ChainID: 1, Checked: 3}, false))
	assert.Equal(t, "No stale registry entries on chain 1 (3 checked)\n", buf.String())

	buf.Reset()
	require.NoError(t, NewPruneRenderer(&buf, true).RenderPrune(result, true))
	assert.JSONEq(t, `{"chainId":31337,"checked":2,"pruned":["default/31337/Agreement"],"applied":true}`, buf.String())
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Proxy Admin", title("PROXY_ADMIN"))
	assert.Equal(t, "Uups", title("uups"))
	assert.Equal(t, "0xabcdef01…456789", shortHash("0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"))
	assert.Equal(t, "0x01", shortHash("0x01"))
}
