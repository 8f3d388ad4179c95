package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// MigrationRenderer handles rendering of migration runs
type MigrationRenderer struct {
	out  io.Writer
	json bool
}

// NewMigrationRenderer creates a new migration renderer
func NewMigrationRenderer(out io.Writer, json bool) *MigrationRenderer {
	return &MigrationRenderer{out: out, json: json}
}

// GetWriter returns the io.Writer used by this renderer
func (r *MigrationRenderer) GetWriter() io.Writer {
	return r.out
}

// RenderPlan displays the ordered steps
func (r *MigrationRenderer) RenderPlan(plan *usecase.MigrationPlan) {
	color.New(color.Bold).Fprintf(r.out, "📋 Migration plan %s: %d step(s)\n", plan.Name, len(plan.Steps))
	fmt.Fprintf(r.out, "%s\n", strings.Repeat("─", 50))

	for i, step := range plan.Steps {
		fmt.Fprintf(r.out, "%d. ", i+1)
		color.New(color.FgCyan).Fprintf(r.out, "%s", step.Name)
		fmt.Fprintf(r.out, " → ")
		color.New(color.FgGreen).Fprintf(r.out, "%s", step.Describe())
		if len(step.Deps) > 0 {
			color.New(color.FgHiBlack).Fprintf(r.out, " (depends on: %s)", strings.Join(step.Deps, ", "))
		}
		fmt.Fprintln(r.out)
	}

	fmt.Fprintln(r.out)
}

// RenderStepHeader prints the [n/total] banner of a starting step
func (r *MigrationRenderer) RenderStepHeader(current, total int, message string) {
	color.New(color.Bold).Fprintf(r.out, "[%d/%d] %s\n", current, total, message)
}

// RenderStepSkipped prints a step completed by an earlier run
func (r *MigrationRenderer) RenderStepSkipped(current, total int, message string) {
	color.New(color.Faint).Fprintf(r.out, "[%d/%d] ⊘ %s\n", current, total, message)
}

// RenderStepResult renders a single step result
func (r *MigrationRenderer) RenderStepResult(stepResult *usecase.MigrationStepResult) {
	switch {
	case stepResult.Error != nil:
		color.New(color.FgRed).Fprintf(r.out, "❌ Failed: %v\n", stepResult.Error)
	case stepResult.Deploy != nil:
		fmt.Fprintf(r.out, "%s %s\n", headlineStyle.Sprint("Deployed"), stepResult.Address)
	case stepResult.Upgrade != nil:
		fmt.Fprintf(r.out, "%s %s\n", headlineStyle.Sprint("Upgraded"), stepResult.Address)
	}
}

type migrationOutput struct {
	Plan       string            `json:"plan"`
	Success    bool              `json:"success"`
	Skipped    []string          `json:"skipped"`
	Executed   map[string]string `json:"executed"`
	FailedStep string            `json:"failedStep,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// RenderResult renders the final summary, or the whole result as JSON
func (r *MigrationRenderer) RenderResult(result *usecase.RunMigrationsResult) error {
	if r.json {
		out := migrationOutput{
			Plan:    result.Plan.Name,
			Success: result.Success,
			Skipped: lo.Map(result.SkippedSteps, func(s *usecase.MigrationStep, _ int) string { return s.Name }),
			Executed: lo.SliceToMap(
				lo.Filter(result.ExecutedSteps, func(s *usecase.MigrationStepResult, _ int) bool { return s.Error == nil }),
				func(s *usecase.MigrationStepResult) (string, string) { return s.Step.Name, s.Address },
			),
		}
		if result.FailedStep != nil {
			out.FailedStep = result.FailedStep.Step.Name
			out.Error = result.FailedStep.Error.Error()
		}
		return writeJSON(r.out, out)
	}

	fmt.Fprintf(r.out, "\n%s\n", strings.Repeat("═", 70))

	if result.Success {
		color.New(color.FgGreen, color.Bold).Fprintf(r.out, "🎉 Migration plan %s completed\n", result.Plan.Name)
	} else {
		color.New(color.FgRed, color.Bold).Fprintf(r.out, "❌ Migration plan %s failed\n", result.Plan.Name)
	}

	fmt.Fprintf(r.out, "\n📊 Summary:\n")
	fmt.Fprintf(r.out, "  • Steps executed: %d/%d\n", len(result.ExecutedSteps), len(result.Plan.Steps))
	if len(result.SkippedSteps) > 0 {
		fmt.Fprintf(r.out, "  • Steps skipped: %d\n", len(result.SkippedSteps))
	}
	if result.FailedStep != nil {
		fmt.Fprintf(r.out, "  • Failed at: %s\n", result.FailedStep.Step.Name)
		fmt.Fprintf(r.out, "\nFix the failure and run migrate again to continue from %s.\n", result.FailedStep.Step.Name)
	}

	return nil
}
