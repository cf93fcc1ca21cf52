package app

import (
	"context"

	"tether/internal/pipeline"
)

// Check installs and resolves the configured units without registering or
// starting anything. The report's stage is RESOLVED, or FAILED when the
// resolver reported a systemic error; unit statuses stop at resolved.
func (a *Application) Check(ctx context.Context) (*pipeline.Report, error) {
	return a.services.Pipeline.Check(ctx)
}
