package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/config"
	"github.com/trebuchet-org/treb-upgrades/internal/domain/models"
	"gopkg.in/yaml.v3"
)

// Migration step actions
const (
	ActionDeploy  = "deploy"
	ActionUpgrade = "upgrade"
)

// Migration state statuses
const (
	MigrationRunning   = "running"
	MigrationFailed    = "failed"
	MigrationCompleted = "completed"
)

// RunMigrationsParams contains parameters for running a migration plan
type RunMigrationsParams struct {
	// Defaults to the project's migrations file
	ConfigPath string
	// Forget previously completed steps and run everything again
	Reset bool
}

// RunMigrationsResult contains the result of a migration run
type RunMigrationsResult struct {
	Plan          *MigrationPlan
	SkippedSteps  []*MigrationStep
	ExecutedSteps []*MigrationStepResult
	FailedStep    *MigrationStepResult
	Success       bool
}

// MigrationStepResult contains the result of executing a single step
type MigrationStepResult struct {
	Step    *MigrationStep
	Address string
	Deploy  *DeployProxyResult
	Upgrade *UpgradeProxyResult
	Error   error
}

// MigrationStepState is the persisted record of a step
type MigrationStepState struct {
	Step        *MigrationStep `json:"step"`
	Success     bool           `json:"success"`
	Address     string         `json:"address,omitempty"`
	Error       string         `json:"error,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

// MigrationState is the persisted progress of a plan on one network and namespace
type MigrationState struct {
	StartedAt     time.Time                      `json:"started_at"`
	UpdatedAt     time.Time                      `json:"updated_at"`
	ConfigPath    string                         `json:"config_path"`
	Network       string                         `json:"network"`
	ChainID       uint64                         `json:"chain_id"`
	Namespace     string                         `json:"namespace"`
	ExecutedSteps map[string]*MigrationStepState `json:"executed_steps"`
	Status        string                         `json:"status"`
}

// RunMigrations runs a migrations file step by step, remembering what already ran
type RunMigrations struct {
	config    *config.RuntimeConfig
	deploy    *DeployProxy
	upgrade   *UpgradeProxy
	connector ChainConnector
	sink      ProgressSink
}

// NewRunMigrations creates a new RunMigrations use case
func NewRunMigrations(
	cfg *config.RuntimeConfig,
	deploy *DeployProxy,
	upgrade *UpgradeProxy,
	connector ChainConnector,
	sink ProgressSink,
) *RunMigrations {
	return &RunMigrations{
		config:    cfg,
		deploy:    deploy,
		upgrade:   upgrade,
		connector: connector,
		sink:      sink,
	}
}

// Run executes every step of the plan that has not completed yet
func (uc *RunMigrations) Run(ctx context.Context, params RunMigrationsParams) (*RunMigrationsResult, error) {
	configPath := uc.configPath(params.ConfigPath)

	file, err := parseMigrationsFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid migrations file: %w", err)
	}

	plan, err := NewMigrationGraph(file).Plan()
	if err != nil {
		return nil, fmt.Errorf("failed to create migration plan: %w", err)
	}
	plan.Name = planName(configPath, file)

	if uc.config.Network == nil {
		return nil, domain.ErrNetworkRequired
	}
	client, err := uc.connector.Connect(ctx, uc.config.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to blockchain: %w", err)
	}
	defer client.Close()
	chainID := client.ChainID()
	statePath := uc.stateFilePath(plan.Name, chainID)

	state := uc.newState(configPath, chainID)
	if !params.Reset {
		prev, err := loadState(statePath)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			state = prev
		}
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:    "plan_created",
		Total:    len(plan.Steps),
		Metadata: plan,
	})

	result := &RunMigrationsResult{Plan: plan, Success: true}

	for i, step := range plan.Steps {
		stale := false
		if prev, ok := state.ExecutedSteps[step.Name]; ok && prev.Success {
			live, err := stepIsLive(ctx, client, prev)
			if err != nil {
				return nil, fmt.Errorf("step '%s': %w", step.Name, err)
			}
			if live {
				result.SkippedSteps = append(result.SkippedSteps, step)
				uc.sink.OnProgress(ctx, ProgressEvent{
					Stage:   "step_skipped",
					Current: i + 1,
					Total:   len(plan.Steps),
					Message: fmt.Sprintf("%s already completed (%s)", step.Name, prev.Address),
				})
				continue
			}
			stale = true
			uc.sink.Info(fmt.Sprintf("%s completed earlier but %s has no code on chain %d, running it again", step.Name, prev.Address, chainID))
		}

		state.Status = MigrationRunning
		uc.saveStateOrWarn(statePath, state)

		uc.sink.OnProgress(ctx, ProgressEvent{
			Stage:    "step_starting",
			Current:  i + 1,
			Total:    len(plan.Steps),
			Message:  fmt.Sprintf("%s: %s", step.Name, step.Describe()),
			Metadata: step,
		})

		stepResult := uc.executeStep(ctx, step, stale)
		result.ExecutedSteps = append(result.ExecutedSteps, stepResult)

		stepState := &MigrationStepState{
			Step:        step,
			Success:     stepResult.Error == nil,
			Address:     stepResult.Address,
			CompletedAt: time.Now(),
		}
		if stepResult.Error != nil {
			stepState.Error = stepResult.Error.Error()
		}
		state.ExecutedSteps[step.Name] = stepState

		uc.sink.OnProgress(ctx, ProgressEvent{
			Stage:    "step_completed",
			Current:  i + 1,
			Total:    len(plan.Steps),
			Metadata: stepResult,
		})

		if stepResult.Error != nil {
			result.FailedStep = stepResult
			result.Success = false
			state.Status = MigrationFailed
			uc.saveStateOrWarn(statePath, state)
			break
		}

		uc.saveStateOrWarn(statePath, state)
	}

	if result.Success {
		state.Status = MigrationCompleted
		uc.saveStateOrWarn(statePath, state)
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: "migrations_completed"})

	return result, nil
}

// stepIsLive reports whether the address a completed step recorded still has code
func stepIsLive(ctx context.Context, client ChainClient, prev *MigrationStepState) (bool, error) {
	if !common.IsHexAddress(prev.Address) {
		return false, nil
	}
	return client.HasCode(ctx, common.HexToAddress(prev.Address))
}

// executeStep runs one step; stale deploys replace the dead registry record
func (uc *RunMigrations) executeStep(ctx context.Context, step *MigrationStep, stale bool) *MigrationStepResult {
	result := &MigrationStepResult{Step: step}

	switch step.Action {
	case ActionDeploy:
		// An empty kind falls back to the project default
		var kind models.ProxyKind
		if step.Kind != "" {
			parsed, err := models.ParseProxyKind(step.Kind)
			if err != nil {
				result.Error = err
				return result
			}
			kind = parsed
		}
		result.Deploy, result.Error = uc.deploy.Run(ctx, DeployProxyParams{
			ContractRef: step.Contract,
			Label:       step.Label,
			Args:        step.Args,
			Kind:        kind,
			Initializer: step.Initializer,
			Force:       step.Force || stale,
		})
		if result.Error == nil {
			result.Address = result.Deploy.Proxy.Address
		}

	case ActionUpgrade:
		params := UpgradeProxyParams{
			ProxyRef:       step.Proxy,
			NewContractRef: step.To,
		}
		if step.Call != nil {
			params.Call = &CallSpec{Method: step.Call.Method, Args: step.Call.Args}
		}
		result.Upgrade, result.Error = uc.upgrade.Run(ctx, params)
		if result.Error == nil {
			result.Address = result.Upgrade.Proxy.Address
		}
	}

	if result.Error != nil {
		result.Error = fmt.Errorf("step '%s': %w", step.Name, result.Error)
	}
	return result
}

func (uc *RunMigrations) configPath(path string) string {
	if path == "" {
		path = config.DefaultMigrationsFile
		if uc.config.Project != nil && uc.config.Project.Migrations != "" {
			path = uc.config.Project.Migrations
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(uc.config.ProjectRoot, path)
	}
	return path
}

func (uc *RunMigrations) newState(configPath string, chainID uint64) *MigrationState {
	state := &MigrationState{
		StartedAt:     time.Now(),
		ConfigPath:    configPath,
		ChainID:       chainID,
		Namespace:     uc.config.Namespace,
		ExecutedSteps: make(map[string]*MigrationStepState),
		Status:        MigrationRunning,
	}
	if uc.config.Network != nil {
		state.Network = uc.config.Network.Name
	}
	return state
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// stateFilePath returns .upgrades/migrations-<plan>-<namespace>-<chainID>.json
func (uc *RunMigrations) stateFilePath(plan string, chainID uint64) string {
	dataDir := uc.config.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(uc.config.ProjectRoot, ".upgrades")
	}
	name := fmt.Sprintf("migrations-%s-%s-%d.json",
		unsafeFileChars.ReplaceAllString(plan, "_"),
		unsafeFileChars.ReplaceAllString(uc.config.Namespace, "_"),
		chainID,
	)
	return filepath.Join(dataDir, name)
}

func (uc *RunMigrations) saveStateOrWarn(path string, state *MigrationState) {
	if err := saveState(path, state); err != nil {
		uc.sink.Error(fmt.Sprintf("Warning: failed to save migration state: %v", err))
	}
}

func saveState(path string, state *MigrationState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// loadState returns nil when the plan never ran on this chain
func loadState(path string) (*MigrationState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migration state: %w", err)
	}

	var state MigrationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal migration state: %w", err)
	}
	if state.ExecutedSteps == nil {
		state.ExecutedSteps = make(map[string]*MigrationStepState)
	}
	return &state, nil
}

func parseMigrationsFile(path string) (*MigrationsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file MigrationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &file, nil
}

func planName(configPath string, file *MigrationsFile) string {
	if file.Plan != "" {
		return file.Plan
	}
	base := filepath.Base(configPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Migrations file types

// MigrationsFile is the top-level layout of migrations.yaml
type MigrationsFile struct {
	Plan  string                    `yaml:"plan"`
	Steps map[string]*MigrationStep `yaml:"steps"`
}

// MigrationCall is a post-upgrade call in a migrations file
type MigrationCall struct {
	Method string        `yaml:"method" json:"method"`
	Args   MigrationArgs `yaml:"args,omitempty" json:"args,omitempty"`
}

// MigrationStep is a single deploy or upgrade
type MigrationStep struct {
	Name        string         `yaml:"-" json:"name"`
	Action      string         `yaml:"action" json:"action"`
	Contract    string         `yaml:"contract,omitempty" json:"contract,omitempty"`
	Label       string         `yaml:"label,omitempty" json:"label,omitempty"`
	Args        MigrationArgs  `yaml:"args,omitempty" json:"args,omitempty"`
	Kind        string         `yaml:"kind,omitempty" json:"kind,omitempty"`
	Initializer string         `yaml:"initializer,omitempty" json:"initializer,omitempty"`
	Force       bool           `yaml:"force,omitempty" json:"force,omitempty"`
	Proxy       string         `yaml:"proxy,omitempty" json:"proxy,omitempty"`
	To          string         `yaml:"to,omitempty" json:"to,omitempty"`
	Call        *MigrationCall `yaml:"call,omitempty" json:"call,omitempty"`
	Deps        []string       `yaml:"deps,omitempty" json:"deps,omitempty"`
}

// MigrationArgs is a literal argument list. Integer scalars keep their source
// text so values beyond 64 bits reach the encoder exactly.
type MigrationArgs []any

// UnmarshalYAML implements yaml.Unmarshaler
func (a *MigrationArgs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: args must be a list", node.Line)
	}
	values, err := yamlLiteral(node)
	if err != nil {
		return err
	}
	*a = values.([]any)
	return nil
}

func yamlLiteral(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!int" {
			return node.Value, nil
		}
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil

	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := yamlLiteral(child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case yaml.MappingNode:
		out := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := yamlLiteral(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[node.Content[i].Value] = v
		}
		return out, nil

	case yaml.AliasNode:
		return yamlLiteral(node.Alias)
	}
	return nil, fmt.Errorf("line %d: unsupported argument", node.Line)
}

// Describe returns a one-line summary of the step
func (s *MigrationStep) Describe() string {
	if s.Action == ActionUpgrade {
		return fmt.Sprintf("upgrade %s to %s", s.Proxy, s.To)
	}
	if s.Label != "" {
		return fmt.Sprintf("deploy %s:%s", s.Contract, s.Label)
	}
	return "deploy " + s.Contract
}

// MigrationPlan is the linearized order of steps
type MigrationPlan struct {
	Name  string
	Steps []*MigrationStep
}

// Validate checks the migrations file for errors
func (f *MigrationsFile) Validate() error {
	if len(f.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	for name, step := range f.Steps {
		if step == nil {
			return fmt.Errorf("step '%s' is empty", name)
		}
		step.Name = name

		switch step.Action {
		case ActionDeploy:
			if step.Contract == "" {
				return fmt.Errorf("step '%s' must specify a contract", name)
			}
			if _, err := models.ParseProxyKind(step.Kind); err != nil {
				return fmt.Errorf("step '%s': %w", name, err)
			}
		case ActionUpgrade:
			if step.Proxy == "" {
				return fmt.Errorf("step '%s' must specify the proxy to upgrade", name)
			}
			if step.To == "" {
				return fmt.Errorf("step '%s' must specify the replacement contract in 'to'", name)
			}
		default:
			return fmt.Errorf("step '%s' has unknown action %q (expected deploy or upgrade)", name, step.Action)
		}

		for _, dep := range step.Deps {
			if dep == name {
				return fmt.Errorf("step '%s' cannot depend on itself", name)
			}
			if _, exists := f.Steps[dep]; !exists {
				return fmt.Errorf("step '%s' depends on non-existent step '%s'", name, dep)
			}
		}
	}

	return nil
}

// MigrationGraph is a directed acyclic graph of migration steps
type MigrationGraph struct {
	nodes map[string]*MigrationStep
	edges map[string][]string // step -> steps depending on it
}

// NewMigrationGraph creates a dependency graph from a migrations file
func NewMigrationGraph(file *MigrationsFile) *MigrationGraph {
	graph := &MigrationGraph{
		nodes: file.Steps,
		edges: make(map[string][]string),
	}

	for name, step := range file.Steps {
		step.Name = name
		for _, dep := range step.Deps {
			if _, exists := file.Steps[dep]; !exists {
				continue
			}
			graph.edges[dep] = append(graph.edges[dep], name)
		}
	}

	return graph
}

// Plan orders the steps so every step runs after its dependencies,
// breaking ties by name. It fails on cycles.
func (g *MigrationGraph) Plan() (*MigrationPlan, error) {
	inDegree := make(map[string]int)
	for name := range g.nodes {
		inDegree[name] = 0
	}

	for name, step := range g.nodes {
		for _, dep := range step.Deps {
			if _, exists := g.nodes[dep]; !exists {
				return nil, fmt.Errorf("step '%s' depends on non-existent step '%s'", name, dep)
			}
			inDegree[name]++
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	plan := &MigrationPlan{}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		plan.Steps = append(plan.Steps, g.nodes[current])

		dependents := g.edges[current]
		sort.Strings(dependents)
		for _, dependent := range dependents {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
				sort.Strings(queue)
			}
		}
	}

	if len(plan.Steps) != len(g.nodes) {
		var cycle []string
		for name, degree := range inDegree {
			if degree > 0 {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		return nil, fmt.Errorf("circular dependency detected involving steps: %v", cycle)
	}

	return plan, nil
}
