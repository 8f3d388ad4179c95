package artifacts

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
)

const agreementABI = `[{"type":"function","name":"initialize","inputs":[{"name":"a","type":"uint256"},{"name":"b","type":"uint256"},{"name":"c","type":"string"}],"outputs":[],"stateMutability":"nonpayable"}]`

const stopBytecode = "0x6001600c60003960016000f300"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestRepository(t *testing.T) (*Repository, string) {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "out", "Agreement.sol", "Agreement.json"), `{
		"abi": `+agreementABI+`,
		"bytecode": {"object": "`+stopBytecode+`"},
		"deployedBytecode": {"object": "0x00"},
		"metadata": {
			"compiler": {"version": "0.8.24+commit.e11b9ed9"},
			"settings": {"compilationTarget": {"src/Agreement.sol": "Agreement"}}
		}
	}`)

	writeFile(t, filepath.Join(root, "out", "IAgreement.sol", "IAgreement.json"), `{
		"abi": [],
		"bytecode": {"object": "0x"}
	}`)

	writeFile(t, filepath.Join(root, "build", "contracts", "Token.json"), `{
		"contractName": "Token",
		"sourcePath": "contracts/Token.sol",
		"abi": [],
		"bytecode": "`+stopBytecode+`",
		"deployedBytecode": "0x00",
		"compiler": {"name": "solc", "version": "0.8.20"}
	}`)

	// Same name in a second source file
	writeFile(t, filepath.Join(root, "out", "Legacy.sol", "Token.json"), `{
		"abi": [],
		"bytecode": {"object": "`+stopBytecode+`"}
	}`)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRepository(root, []string{"out", "build/contracts"}, log), root
}

func TestGetArtifact(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	t.Run("foundry artifact by name", func(t *testing.T) {
		a, err := repo.GetArtifact(ctx, "Agreement")
		require.NoError(t, err)
		assert.Equal(t, "src/Agreement.sol", a.SourcePath)
		assert.Equal(t, "0.8.24+commit.e11b9ed9", a.CompilerVersion)
		assert.True(t, a.HasMethod("initialize"))
		assert.Len(t, a.Bytecode, 13)
		assert.Equal(t, filepath.Join("out", "Agreement.sol", "Agreement.json"), a.ArtifactPath)
	})

	t.Run("full and shortened path", func(t *testing.T) {
		a, err := repo.GetArtifact(ctx, "src/Agreement.sol:Agreement")
		require.NoError(t, err)
		assert.Equal(t, "Agreement", a.Name)

		b, err := repo.GetArtifact(ctx, "Agreement.sol:Agreement")
		require.NoError(t, err)
		assert.Same(t, a, b)
	})

	t.Run("ambiguous name", func(t *testing.T) {
		_, err := repo.GetArtifact(ctx, "Token")
		var ambiguous domain.AmbiguousArtifactErr
		require.ErrorAs(t, err, &ambiguous)
		assert.Len(t, ambiguous.Matches, 2)

		a, err := repo.GetArtifact(ctx, "contracts/Token.sol:Token")
		require.NoError(t, err)
		assert.Equal(t, "0.8.20", a.CompilerVersion)
	})

	t.Run("interfaces are not indexed", func(t *testing.T) {
		_, err := repo.GetArtifact(ctx, "IAgreement")
		assert.ErrorIs(t, err, domain.ErrContractNotFound)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := repo.GetArtifact(ctx, "Missing")
		assert.ErrorIs(t, err, domain.ErrContractNotFound)
	})

	t.Run("list is sorted", func(t *testing.T) {
		all, err := repo.ListArtifacts(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "Legacy.sol:Token", all[0].FullName())
	})
}

func TestDecodeBytecode(t *testing.T) {
	b, err := decodeBytecode([]byte(`"6001"`))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x01}, b)

	b, err = decodeBytecode([]byte(`{"object":"0x"}`))
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = decodeBytecode([]byte(`"0x73__$abc$__"`))
	assert.Error(t, err)
}
