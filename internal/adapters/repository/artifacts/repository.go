package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// rawArtifact covers both the Foundry and the Truffle artifact layouts.
// Foundry nests bytecode under {"object": ...}, Truffle stores a plain string.
type rawArtifact struct {
	ContractName string          `json:"contractName"`
	SourcePath   string          `json:"sourcePath"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
	Compiler     struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Metadata json.RawMessage `json:"metadata"`
}

type foundryMetadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
	} `json:"settings"`
}

// Repository discovers and indexes compiled contract artifacts
type Repository struct {
	projectRoot string
	dirs        []string
	artifacts   map[string]*models.Artifact   // key: "path:Name"
	byName      map[string][]*models.Artifact // key: contract name
	log         *slog.Logger
	mu          sync.RWMutex
	indexed     bool
}

// NewRepository creates a repository scanning dirs (relative to projectRoot)
func NewRepository(projectRoot string, dirs []string, log *slog.Logger) *Repository {
	return &Repository{
		projectRoot: projectRoot,
		dirs:        dirs,
		log:         log,
		artifacts:   make(map[string]*models.Artifact),
		byName:      make(map[string][]*models.Artifact),
	}
}

// ProvideRepository builds the repository from runtime configuration
func ProvideRepository(cfg *config.RuntimeConfig, log *slog.Logger) *Repository {
	dirs := config.DefaultProjectConfig().Artifacts
	if cfg.Project != nil && len(cfg.Project.Artifacts) > 0 {
		dirs = cfg.Project.Artifacts
	}
	if cfg.Foundry != nil {
		if profile, ok := cfg.Foundry.Profile["default"]; ok && profile.OutPath != "" {
			dirs = append([]string{profile.OutPath}, dirs...)
		}
	}
	return NewRepository(cfg.ProjectRoot, dirs, log)
}

// Index discovers all artifacts
func (r *Repository) Index() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexed {
		return nil
	}

	r.artifacts = make(map[string]*models.Artifact)
	r.byName = make(map[string][]*models.Artifact)

	seenDirs := make(map[string]bool)
	for _, dir := range r.dirs {
		root := dir
		if !filepath.IsAbs(root) {
			root = filepath.Join(r.projectRoot, dir)
		}
		if seenDirs[root] {
			continue
		}
		seenDirs[root] = true

		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}

		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if info.Name() == "build-info" {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".json" {
				return nil
			}
			r.processArtifact(path)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", dir, err)
		}
	}

	r.indexed = true
	return nil
}

// processArtifact parses one artifact file; unusable files are skipped
func (r *Repository) processArtifact(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		r.log.Debug("skipping unreadable artifact", "path", path, "error", err)
		return
	}

	artifact, err := parseArtifact(data, path)
	if err != nil {
		r.log.Debug("skipping artifact", "path", path, "error", err)
		return
	}
	if artifact == nil {
		return
	}

	if rel, err := filepath.Rel(r.projectRoot, path); err == nil {
		artifact.ArtifactPath = rel
	} else {
		artifact.ArtifactPath = path
	}

	key := artifact.FullName()
	if _, dup := r.artifacts[key]; dup {
		return
	}
	r.artifacts[key] = artifact
	r.byName[artifact.Name] = append(r.byName[artifact.Name], artifact)
}

// parseArtifact decodes an artifact. It returns nil without error for JSON
// files that are not deployable contracts (interfaces, abstract contracts, caches).
func parseArtifact(data []byte, path string) (*models.Artifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if len(raw.ABI) == 0 || len(raw.Bytecode) == 0 {
		return nil, nil
	}

	bytecode, err := decodeBytecode(raw.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	if len(bytecode) == 0 {
		return nil, nil
	}

	parsedABI, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("abi: %w", err)
	}

	artifact := &models.Artifact{
		Name:            raw.ContractName,
		SourcePath:      raw.SourcePath,
		ABI:             parsedABI,
		Bytecode:        bytecode,
		BytecodeHash:    crypto.Keccak256Hash(bytecode),
		CompilerVersion: raw.Compiler.Version,
	}

	// Foundry: metadata carries the compilation target
	if artifact.Name == "" && len(raw.Metadata) > 0 && raw.Metadata[0] == '{' {
		var meta foundryMetadata
		if err := json.Unmarshal(raw.Metadata, &meta); err == nil {
			for source, name := range meta.Settings.CompilationTarget {
				artifact.SourcePath = source
				artifact.Name = name
			}
			artifact.CompilerVersion = meta.Compiler.Version
		}
	}

	// Foundry without metadata: out/<File>.sol/<Name>.json
	if artifact.Name == "" {
		artifact.Name = strings.TrimSuffix(filepath.Base(path), ".json")
		if parent := filepath.Base(filepath.Dir(path)); strings.HasSuffix(parent, ".sol") {
			artifact.SourcePath = parent
		}
	}

	return artifact, nil
}

// decodeBytecode accepts "0x..." or {"object": "0x..."}
func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var hexStr string
	if raw[0] == '{' {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		hexStr = obj.Object
	} else if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, err
	}

	if hexStr == "" || hexStr == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(hexStr, "0x") {
		hexStr = "0x" + hexStr
	}
	if strings.Contains(hexStr, "__") {
		return nil, fmt.Errorf("unlinked library placeholder")
	}
	return hexutil.Decode(hexStr)
}

// GetArtifact resolves "Name" or "path:Name"
func (r *Repository) GetArtifact(ctx context.Context, ref string) (*models.Artifact, error) {
	if err := r.Index(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("empty contract reference: %w", domain.ErrContractNotFound)
	}

	if strings.Contains(ref, ":") {
		if a, ok := r.artifacts[ref]; ok {
			return a, nil
		}
		// Allow a shortened path, e.g. "Agreement.sol:Agreement" for "src/Agreement.sol:Agreement"
		idx := strings.LastIndex(ref, ":")
		path, name := ref[:idx], ref[idx+1:]
		var matches []*models.Artifact
		for _, a := range r.byName[name] {
			if strings.HasSuffix(a.SourcePath, path) {
				matches = append(matches, a)
			}
		}
		return pickOne(ref, matches)
	}

	return pickOne(ref, r.byName[ref])
}

func pickOne(ref string, matches []*models.Artifact) (*models.Artifact, error) {
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%s: %w", ref, domain.ErrContractNotFound)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.FullName()
		}
		return nil, domain.AmbiguousArtifactErr{Ref: ref, Matches: names}
	}
}

// ListArtifacts returns all indexed artifacts sorted by full name
func (r *Repository) ListArtifacts(ctx context.Context) ([]*models.Artifact, error) {
	if err := r.Index(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Artifact, 0, len(r.artifacts))
	for _, a := range r.artifacts {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FullName() < result[j].FullName()
	})
	return result, nil
}

// Ensure the repository implements the interface
var _ usecase.ArtifactRepository = (*Repository)(nil)
