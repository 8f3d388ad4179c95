package config

import "time"

// ProjectConfig represents upgrades.toml
type ProjectConfig struct {
	// Directories scanned for compiled artifacts, relative to the project root
	Artifacts []string                 `toml:"artifacts"`
	Networks  map[string]NetworkConfig `toml:"networks"`
	Deployer  DeployerConfig           `toml:"deployer"`
	Proxy     ProxyConfig              `toml:"proxy"`

	// Default migration plan for `migrate`
	Migrations string `toml:"migrations"`
}

// NetworkConfig is a named RPC endpoint
type NetworkConfig struct {
	RPCURL  string `toml:"rpc_url"`
	ChainID uint64 `toml:"chain_id,omitempty"`
	// Seconds to wait for a receipt before giving up, 0 uses the command timeout
	ReceiptTimeout int `toml:"receipt_timeout,omitempty"`
}

// ReceiptWait returns the per-transaction wait bound, zero meaning unbounded
func (n NetworkConfig) ReceiptWait() time.Duration {
	return time.Duration(n.ReceiptTimeout) * time.Second
}

// DeployerConfig holds the signing key used for every transaction
type DeployerConfig struct {
	PrivateKey string `toml:"private_key"` //nolint:gosec // holds env var reference, not a literal secret
}

// ProxyConfig holds proxy defaults and the artifacts used for proxies
type ProxyConfig struct {
	Kind                     string `toml:"kind"`
	Initializer              string `toml:"initializer"`
	ProxyArtifact            string `toml:"proxy_artifact"`
	TransparentProxyArtifact string `toml:"transparent_proxy_artifact"`
	AdminArtifact            string `toml:"admin_artifact"`
}

// Default artifact names and settings
const (
	DefaultInitializer              = "initialize"
	DefaultProxyArtifact            = "ERC1967Proxy"
	DefaultTransparentProxyArtifact = "TransparentUpgradeableProxy"
	DefaultAdminArtifact            = "ProxyAdmin"
	DefaultMigrationsFile           = "migrations.yaml"
)

// DefaultProjectConfig returns the configuration used when upgrades.toml is absent
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Artifacts: []string{"out", "build/contracts"},
		Networks:  map[string]NetworkConfig{},
		Proxy: ProxyConfig{
			Kind:                     "transparent",
			Initializer:              DefaultInitializer,
			ProxyArtifact:            DefaultProxyArtifact,
			TransparentProxyArtifact: DefaultTransparentProxyArtifact,
			AdminArtifact:            DefaultAdminArtifact,
		},
		Migrations: DefaultMigrationsFile,
	}
}
