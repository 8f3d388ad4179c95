package models

import (
	"fmt"
	"strings"
	"time"
)

// DeploymentType represents the type of deployment
type DeploymentType string

const (
	ProxyDeployment          DeploymentType = "PROXY"
	ImplementationDeployment DeploymentType = "IMPLEMENTATION"
	ProxyAdminDeployment     DeploymentType = "PROXY_ADMIN"
)

// ProxyKind is the upgrade pattern a proxy follows
type ProxyKind string

const (
	ProxyKindTransparent ProxyKind = "transparent"
	ProxyKindUUPS        ProxyKind = "uups"
)

// ParseProxyKind normalizes a user supplied proxy kind
func ParseProxyKind(s string) (ProxyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "transparent":
		return ProxyKindTransparent, nil
	case "uups":
		return ProxyKindUUPS, nil
	default:
		return "", fmt.Errorf("unknown proxy kind %q (expected transparent or uups)", s)
	}
}

// Deployment represents a contract deployment record
type Deployment struct {
	// Core identification
	ID           string         `json:"id"`        // e.g., "default/11155111/Agreement:v1"
	Namespace    string         `json:"namespace"` // e.g., "default", "staging"
	Network      string         `json:"network"`
	ChainID      uint64         `json:"chainId"`
	ContractName string         `json:"contractName"`
	Label        string         `json:"label,omitempty"`
	Address      string         `json:"address"`
	Type         DeploymentType `json:"type"`

	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`

	// Literal initializer arguments, as supplied
	InitializerArgs []any `json:"initializerArgs,omitempty"`

	// Proxy information (null for non-proxy deployments)
	ProxyInfo *ProxyInfo `json:"proxyInfo,omitempty"`

	Artifact ArtifactInfo `json:"artifact"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Runtime fields (not persisted)
	Implementation *Deployment    `json:"-"`
	Transactions   []*Transaction `json:"-"`
}

// ProxyInfo contains proxy-specific information
type ProxyInfo struct {
	Kind                   ProxyKind      `json:"kind"`
	Implementation         string         `json:"implementation"`
	ImplementationContract string         `json:"implementationContract"`
	Admin                  string         `json:"admin,omitempty"`
	History                []ProxyUpgrade `json:"history"`
}

// ProxyUpgrade represents a proxy upgrade event
type ProxyUpgrade struct {
	Implementation         string    `json:"implementation"`
	ImplementationContract string    `json:"implementationContract"`
	TransactionHash        string    `json:"transactionHash"`
	UpgradedAt             time.Time `json:"upgradedAt"`
}

// ArtifactInfo contains contract artifact information
type ArtifactInfo struct {
	Path            string `json:"path"` // e.g., "src/Agreement.sol:Agreement"
	CompilerVersion string `json:"compilerVersion,omitempty"`
	BytecodeHash    string `json:"bytecodeHash"`
}

// DeploymentID builds the registry key for a deployment
func DeploymentID(namespace string, chainID uint64, contractName, label string) string {
	id := fmt.Sprintf("%s/%d/%s", namespace, chainID, contractName)
	if label != "" {
		id += ":" + label
	}
	return id
}

// GetShortID returns the short identifier (contractName:label or just contractName)
func (d *Deployment) GetShortID() string {
	if d.Label != "" {
		return fmt.Sprintf("%s:%s", d.ContractName, d.Label)
	}
	return d.ContractName
}

// IsProxy reports whether the record describes a proxy with known implementation
func (d *Deployment) IsProxy() bool {
	return d.Type == ProxyDeployment && d.ProxyInfo != nil
}
