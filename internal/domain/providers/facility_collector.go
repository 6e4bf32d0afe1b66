package providers

import (
	"context"
	"io"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
)

// Collection is the output of one collector run. Problems describe upstream
// rows that were skipped.
type Collection struct {
	Facilities []*entities.Facility
	Problems   []entities.ReloadProblem
}

// FacilityCollector produces normalized facility records from one upstream
// source. A run that yields no facilities is reported as an error.
type FacilityCollector interface {
	Name() string
	Collect(ctx context.Context) (*Collection, error)
}

// ReferenceSource opens named reference files (CSV and XML feeds, the COVID-19
// vaccine locator map, drive-time bands).
type ReferenceSource interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Describe() string
}
