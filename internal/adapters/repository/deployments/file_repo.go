package deployments

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

const (
	DataDir          = ".upgrades"
	DeploymentsFile  = "deployments.json"
	TransactionsFile = "transactions.json"
	AddressesFile    = "addresses.json"
)

// AddressBook is the flattened chainID -> namespace -> name -> address view
// written next to the registry for consumption by other tooling.
type AddressBook map[uint64]map[string]map[string]string

// LookupIndexes are rebuilt from deployments on every load and save
type LookupIndexes struct {
	// chainID -> lowercase address -> deployment ID
	ByAddress map[uint64]map[string]string
	// chainID -> bytecode hash -> implementation deployment ID
	Implementations map[uint64]map[string]string
}

// FileRepository stores the deployments in json files on the system
type FileRepository struct {
	dataDir      string
	lookups      *LookupIndexes
	mu           sync.RWMutex
	deployments  map[string]*models.Deployment
	transactions map[string]*models.Transaction
	addressBook  AddressBook
}

// NewFileRepository creates a repository rooted at dataDir
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", dataDir, err)
	}

	m := &FileRepository{
		dataDir:      dataDir,
		deployments:  make(map[string]*models.Deployment),
		transactions: make(map[string]*models.Transaction),
		lookups: &LookupIndexes{
			ByAddress:       make(map[uint64]map[string]string),
			Implementations: make(map[uint64]map[string]string),
		},
		addressBook: make(AddressBook),
	}

	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	return m, nil
}

// ProvideFileRepository creates the repository for the runtime config
func ProvideFileRepository(cfg *config.RuntimeConfig) (*FileRepository, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(cfg.ProjectRoot, DataDir)
	}
	return NewFileRepository(dataDir)
}

// load reads all registry files
func (m *FileRepository) load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadFile(DeploymentsFile, &m.deployments); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load deployments: %w", err)
	}

	if err := m.loadFile(TransactionsFile, &m.transactions); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	m.rebuildLookups()

	return nil
}

// loadFile loads a JSON file from the data directory
func (m *FileRepository) loadFile(filename string, v any) error {
	data, err := os.ReadFile(filepath.Join(m.dataDir, filename))
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

// save writes all registry files
func (m *FileRepository) save() error {
	if err := m.saveFile(DeploymentsFile, m.deployments); err != nil {
		return fmt.Errorf("failed to save deployments: %w", err)
	}

	if err := m.saveFile(TransactionsFile, m.transactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	if err := m.saveFile(AddressesFile, m.addressBook); err != nil {
		return fmt.Errorf("failed to save address book: %w", err)
	}

	return nil
}

// saveFile saves data to a JSON file in the data directory
func (m *FileRepository) saveFile(filename string, v any) error {
	path := filepath.Join(m.dataDir, filename)

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpPath, path)
}

// rebuildLookups rebuilds all lookup indexes from the loaded data
func (m *FileRepository) rebuildLookups() {
	m.lookups.ByAddress = make(map[uint64]map[string]string)
	m.lookups.Implementations = make(map[uint64]map[string]string)
	m.addressBook = make(AddressBook)

	for id, dep := range m.deployments {
		if m.lookups.ByAddress[dep.ChainID] == nil {
			m.lookups.ByAddress[dep.ChainID] = make(map[string]string)
		}
		m.lookups.ByAddress[dep.ChainID][strings.ToLower(dep.Address)] = id

		if dep.Type == models.ImplementationDeployment && dep.Artifact.BytecodeHash != "" {
			if m.lookups.Implementations[dep.ChainID] == nil {
				m.lookups.Implementations[dep.ChainID] = make(map[string]string)
			}
			m.lookups.Implementations[dep.ChainID][strings.ToLower(dep.Artifact.BytecodeHash)] = id
		}

		if dep.Type == models.ProxyDeployment {
			m.updateAddressBook(dep)
		}
	}
}

// updateAddressBook records proxy addresses by short ID
func (m *FileRepository) updateAddressBook(deployment *models.Deployment) {
	if m.addressBook[deployment.ChainID] == nil {
		m.addressBook[deployment.ChainID] = make(map[string]map[string]string)
	}
	if m.addressBook[deployment.ChainID][deployment.Namespace] == nil {
		m.addressBook[deployment.ChainID][deployment.Namespace] = make(map[string]string)
	}
	m.addressBook[deployment.ChainID][deployment.Namespace][deployment.GetShortID()] = deployment.Address
}

// GetDeployment retrieves a deployment by ID
func (m *FileRepository) GetDeployment(ctx context.Context, id string) (*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dep, exists := m.deployments[id]
	if !exists {
		return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
	}

	return m.hydrate(dep), nil
}

// GetDeploymentByAddress retrieves a deployment by chain ID and address
func (m *FileRepository) GetDeploymentByAddress(ctx context.Context, chainID uint64, address string) (*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.lookups.ByAddress[chainID][strings.ToLower(address)]
	if !exists {
		return nil, fmt.Errorf("deployment at address %s on chain %d: %w", address, chainID, domain.ErrNotFound)
	}

	dep, exists := m.deployments[id]
	if !exists {
		return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
	}

	return m.hydrate(dep), nil
}

// FindImplementation returns the implementation registered for a bytecode hash on a chain
func (m *FileRepository) FindImplementation(ctx context.Context, chainID uint64, bytecodeHash string) (*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.lookups.Implementations[chainID][strings.ToLower(bytecodeHash)]
	if !exists {
		return nil, fmt.Errorf("implementation %s on chain %d: %w", bytecodeHash, chainID, domain.ErrNotFound)
	}

	clone := *m.deployments[id]
	return &clone, nil
}

// ListDeployments retrieves deployments matching the filter
func (m *FileRepository) ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.Deployment
	for _, dep := range m.deployments {
		if filter.Namespace != "" && dep.Namespace != filter.Namespace {
			continue
		}
		if filter.ChainID != 0 && dep.ChainID != filter.ChainID {
			continue
		}
		if filter.ContractName != "" && dep.ContractName != filter.ContractName {
			continue
		}
		if filter.Label != "" && dep.Label != filter.Label {
			continue
		}
		if filter.Type != "" && dep.Type != filter.Type {
			continue
		}

		result = append(result, m.hydrate(dep))
	}

	return result, nil
}

// hydrate clones a deployment and links the implementation record for proxies.
// Callers must hold the read lock.
func (m *FileRepository) hydrate(dep *models.Deployment) *models.Deployment {
	clone := *dep
	if dep.ProxyInfo != nil {
		info := *dep.ProxyInfo
		info.History = append([]models.ProxyUpgrade(nil), dep.ProxyInfo.History...)
		clone.ProxyInfo = &info

		if implID, ok := m.lookups.ByAddress[dep.ChainID][strings.ToLower(info.Implementation)]; ok {
			implClone := *m.deployments[implID]
			clone.Implementation = &implClone
		}
	}
	return &clone
}

// SaveDeployment saves or updates a deployment
func (m *FileRepository) SaveDeployment(ctx context.Context, deployment *models.Deployment) error {
	if deployment.ID == "" {
		return fmt.Errorf("deployment without ID: %w", domain.ErrNotFound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.deployments[deployment.ID]; ok && !existing.CreatedAt.IsZero() {
		deployment.CreatedAt = existing.CreatedAt
	} else if deployment.CreatedAt.IsZero() {
		deployment.CreatedAt = now
	}
	deployment.UpdatedAt = now

	clone := *deployment
	clone.Implementation = nil
	m.deployments[deployment.ID] = &clone

	m.rebuildLookups()
	return m.save()
}

// DeleteDeployments removes deployments by ID; unknown IDs are ignored
func (m *FileRepository) DeleteDeployments(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.deployments, id)
	}

	m.rebuildLookups()
	return m.save()
}

// ListTransactions lists transactions based on filter criteria, oldest first
func (m *FileRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.Transaction
	for _, tx := range m.transactions {
		if filter.ChainID != 0 && tx.ChainID != filter.ChainID {
			continue
		}
		if filter.Namespace != "" && tx.Namespace != filter.Namespace {
			continue
		}
		if filter.DeploymentID != "" && !lo.Contains(tx.Deployments, filter.DeploymentID) {
			continue
		}
		clone := *tx
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber < result[j].BlockNumber
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// SaveTransaction saves or updates a transaction
func (m *FileRepository) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	clone := *tx
	m.transactions[tx.ID] = &clone

	return m.save()
}

// Ensure the repository implements the interface
var _ usecase.DeploymentRepository = (*FileRepository)(nil)
