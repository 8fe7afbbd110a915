// Package export turns a finished workflow state into a downloadable deck
// artifact. Export is not a pipeline stage: it runs after the engine reports
// success and its failure is surfaced as a job failure of its own kind.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/slidesmith/slidesmith/pkg/models"
)

// ErrNotExportable indicates the final state is missing the keys the sink
// needs to render a deck.
var ErrNotExportable = errors.New("state is not exportable")

// ExportError wraps any failure while rendering or persisting an artifact.
type ExportError struct {
	JobID string
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export failed for job %s: %v", e.JobID, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// IsExportError reports whether err originated in a result sink.
func IsExportError(err error) bool {
	var exportErr *ExportError

	return errors.As(err, &exportErr)
}

// Sink renders the final workflow state of a job into an artifact.
type Sink interface {
	Export(ctx context.Context, jobID string, state *models.WorkflowState) (*models.Artifact, error)
}
