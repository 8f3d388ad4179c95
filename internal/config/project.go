package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
)

// ProjectFile is the project configuration file name
const ProjectFile = "upgrades.toml"

// loadProjectConfig reads upgrades.toml over the defaults.
// A missing file yields the defaults.
func loadProjectConfig(projectRoot string) (*config.ProjectConfig, error) {
	cfg := config.DefaultProjectConfig()

	path := filepath.Join(projectRoot, ProjectFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ProjectFile, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", ProjectFile, strings.Join(keys, ", "))
	}

	if cfg.Networks == nil {
		cfg.Networks = map[string]config.NetworkConfig{}
	}
	if _, err := models.ParseProxyKind(cfg.Proxy.Kind); err != nil {
		return nil, fmt.Errorf("%s: %w", ProjectFile, err)
	}

	return cfg, nil
}

// expandProjectConfig expands ${VAR} references in values that commonly hold secrets or URLs.
// Unset variables in the deployer key are left to fail when a transaction is signed.
func expandProjectConfig(cfg *config.ProjectConfig) {
	cfg.Deployer.PrivateKey, _ = expandEnv(cfg.Deployer.PrivateKey)
}
