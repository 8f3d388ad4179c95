package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
)

// NetworkResolver resolves network names to RPC endpoints
type NetworkResolver struct {
	project *config.ProjectConfig
	foundry *config.FoundryConfig
}

// NewNetworkResolver creates a new network resolver
func NewNetworkResolver(project *config.ProjectConfig, foundry *config.FoundryConfig) *NetworkResolver {
	return &NetworkResolver{project: project, foundry: foundry}
}

// Resolve looks the network up in upgrades.toml, then foundry.toml [rpc_endpoints],
// then the <NAME>_RPC_URL environment variable. A raw http(s) or ws(s) URL is used as is.
// The chain ID stays zero until a connection reports it, unless configured.
func (r *NetworkResolver) Resolve(name string) (*config.Network, error) {
	if isURL(name) {
		return &config.Network{Name: name, RPCURL: name}, nil
	}

	if r.project != nil {
		if netCfg, ok := r.project.Networks[name]; ok {
			rpcURL, err := expandURL(name, netCfg.RPCURL)
			if err != nil {
				return nil, err
			}
			return &config.Network{Name: name, RPCURL: rpcURL, ChainID: netCfg.ChainID}, nil
		}
	}

	if r.foundry != nil {
		if raw, ok := r.foundry.RpcEndpoints[name]; ok {
			rpcURL, err := expandURL(name, raw)
			if err != nil {
				return nil, err
			}
			return &config.Network{Name: name, RPCURL: rpcURL}, nil
		}
	}

	envVar := GenerateEnvVarName(name)
	if rpcURL := os.Getenv(envVar); rpcURL != "" {
		return &config.Network{Name: name, RPCURL: rpcURL}, nil
	}

	return nil, fmt.Errorf("network '%s' not found in %s [networks], foundry.toml [rpc_endpoints] or $%s", name, ProjectFile, envVar)
}

// Names lists the configured networks
func (r *NetworkResolver) Names() []string {
	seen := map[string]bool{}
	var names []string
	if r.project != nil {
		for name := range r.project.Networks {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	if r.foundry != nil {
		for name := range r.foundry.RpcEndpoints {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

func expandURL(network, raw string) (string, error) {
	expanded, missing := expandEnv(raw)
	if len(missing) > 0 {
		return "", fmt.Errorf("RPC URL for network '%s' references unset environment variable(s): %s", network, strings.Join(missing, ", "))
	}
	if expanded == "" {
		return "", fmt.Errorf("network '%s' has an empty RPC URL", network)
	}
	return expanded, nil
}

func isURL(s string) bool {
	for _, prefix := range []string{"http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
