package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidAddress is returned when an Ethereum address is invalid
	ErrInvalidAddress = errors.New("invalid address")

	// ErrContractNotFound is returned when no artifact matches a contract reference
	ErrContractNotFound = errors.New("contract not found")

	// ErrNotDeployed is returned when an upgrade targets a contract with no recorded proxy
	ErrNotDeployed = errors.New("no deployed proxy")

	// ErrInvalidArguments is returned when initializer arguments don't match the ABI
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrReplacementRequired is returned when an upgrade is requested without a new implementation
	ErrReplacementRequired = errors.New("replacement contract is required")

	// ErrNotUpgradeable is returned when neither the proxy admin nor the implementation exposes an upgrade function
	ErrNotUpgradeable = errors.New("not upgradeable")

	// ErrUpgradeNotApplied is returned when the implementation slot doesn't point at the new implementation
	ErrUpgradeNotApplied = errors.New("upgrade not applied")

	// ErrTransactionReverted is returned when a mined transaction has a failed status
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrNetworkRequired is returned when a chain operation runs without a network
	ErrNetworkRequired = errors.New("network is required")

	// ErrNoDeployer is returned when no signing key is configured
	ErrNoDeployer = errors.New("no deployer key configured")
)

// AmbiguousArtifactErr is returned when a contract name resolves to several artifacts
type AmbiguousArtifactErr struct {
	Ref     string
	Matches []string
}

func (e AmbiguousArtifactErr) Error() string {
	matches := make([]string, len(e.Matches))
	copy(matches, e.Matches)
	sort.Strings(matches)

	var suggestions []string
	for _, m := range matches {
		suggestions = append(suggestions, "  - "+m)
	}

	return fmt.Sprintf("multiple artifacts found matching %q - use path:Contract format to disambiguate:\n%s",
		e.Ref, strings.Join(suggestions, "\n"))
}

// ArgumentErr describes a single argument that could not be coerced to its ABI type
type ArgumentErr struct {
	Method string
	Index  int
	Name   string
	Type   string
	Err    error
}

func (e ArgumentErr) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("#%d", e.Index)
	}
	return fmt.Sprintf("%s: argument %s (%s): %v", e.Method, name, e.Type, e.Err)
}

func (e ArgumentErr) Unwrap() error {
	return ErrInvalidArguments
}
