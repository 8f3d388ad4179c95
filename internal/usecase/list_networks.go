package usecase

import (
	"context"
	"sort"

	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
)

// NetworkResolver resolves configured network names to RPC endpoints
type NetworkResolver interface {
	Names() []string
	Resolve(name string) (*config.Network, error)
}

// ChainIDReader asks an RPC endpoint for its chain ID
type ChainIDReader interface {
	ReadChainID(ctx context.Context, rpcURL string) (uint64, error)
}

// ListNetworksParams contains parameters for listing networks
type ListNetworksParams struct {
	// Query each endpoint for its chain ID when none is configured
	QueryChainID bool
}

// ListNetworksResult contains the result of listing networks
type ListNetworksResult struct {
	Networks []NetworkStatus
}

// NetworkStatus represents the status of a network
type NetworkStatus struct {
	Name    string
	RPCURL  string
	ChainID uint64
	Error   error
}

// ListNetworks is a use case for listing available networks
type ListNetworks struct {
	resolver NetworkResolver
	reader   ChainIDReader
}

// NewListNetworks creates a new ListNetworks use case
func NewListNetworks(resolver NetworkResolver, reader ChainIDReader) *ListNetworks {
	return &ListNetworks{
		resolver: resolver,
		reader:   reader,
	}
}

// Run executes the use case
func (uc *ListNetworks) Run(ctx context.Context, params ListNetworksParams) (*ListNetworksResult, error) {
	names := uc.resolver.Names()
	sort.Strings(names)

	networks := make([]NetworkStatus, 0, len(names))
	for _, name := range names {
		status := NetworkStatus{Name: name}

		network, err := uc.resolver.Resolve(name)
		if err != nil {
			status.Error = err
			networks = append(networks, status)
			continue
		}
		status.RPCURL = network.RPCURL
		status.ChainID = network.ChainID

		if status.ChainID == 0 && params.QueryChainID {
			status.ChainID, status.Error = uc.reader.ReadChainID(ctx, network.RPCURL)
		}

		networks = append(networks, status)
	}

	return &ListNetworksResult{
		Networks: networks,
	}, nil
}
