package scheduler

import (
	"errors"

	"github.com/rohmanhakim/wayback-robots/internal/storage"
)

var ErrCancelled = errors.New("run cancelled")

// Execution summarises one run for one host.
type Execution struct {
	Host        string
	Snapshots   int
	Processed   int
	Failed      int
	UniquePaths int
	// OutputPath is where the path list goes, also set on dry runs.
	OutputPath string
	// Written is false when nothing was written: no snapshots, a dry run or a cancelled run.
	Written     bool
	WriteResult storage.WriteResult
	// Paths in lexical order.
	Paths []string
}

// metricsWriter dumps collected metrics after a run.
type metricsWriter interface {
	WriteMetrics(path string) error
}
