package sources

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// FileSource reads reference files from a local directory
type FileSource struct {
	dir string
}

// NewFileSource creates a source rooted at dir
func NewFileSource(dir string) providers.ReferenceSource {
	return &FileSource{dir: dir}
}

// Open opens a file by base name. Names may not escape the directory.
func (s *FileSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if name != filepath.Base(name) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid reference file name %q", name))
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("reference file %s not found in %s", name, s.dir))
	}
	if err != nil {
		return nil, apperrors.NewExternalError("failed to open reference file "+name, err)
	}
	return f, nil
}

// Describe names the source in logs
func (s *FileSource) Describe() string {
	return "file://" + s.dir
}
