package progress

import (
	"context"

	"github.com/trebuchet-org/treb-upgrades/internal/cli/render"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// MigrationProgress renders migration steps as they run
type MigrationProgress struct {
	renderer *render.MigrationRenderer
	spinner  *SpinnerSink

	planRendered bool
}

// NewMigrationProgress creates a new migration progress reporter
func NewMigrationProgress(renderer *render.MigrationRenderer) *MigrationProgress {
	return &MigrationProgress{
		renderer: renderer,
		spinner:  NewSpinnerSink(),
	}
}

// OnProgress handles progress events for migration runs
func (p *MigrationProgress) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	switch event.Stage {
	case "plan_created":
		if plan, ok := event.Metadata.(*usecase.MigrationPlan); ok && !p.planRendered {
			p.renderer.RenderPlan(plan)
			p.planRendered = true
		}

	case "step_skipped":
		p.renderer.RenderStepSkipped(event.Current, event.Total, event.Message)

	case "step_starting":
		p.spinner.Stop()
		p.renderer.RenderStepHeader(event.Current, event.Total, event.Message)

	case "step_completed":
		p.spinner.Stop()
		if stepResult, ok := event.Metadata.(*usecase.MigrationStepResult); ok {
			p.renderer.RenderStepResult(stepResult)
		}

	case "migrations_completed":
		p.spinner.Stop()

	case "complete":
		// Step results carry the address, rendered on step_completed
		p.spinner.Stop()

	default:
		p.spinner.OnProgress(ctx, event)
	}
}

// Info forwards info messages to the spinner
func (p *MigrationProgress) Info(message string) {
	p.spinner.Info(message)
}

// Error forwards error messages to the spinner
func (p *MigrationProgress) Error(message string) {
	p.spinner.Error(message)
}

// Ensure MigrationProgress implements ProgressSink
var _ usecase.ProgressSink = (*MigrationProgress)(nil)
