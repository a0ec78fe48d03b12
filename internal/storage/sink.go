package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rohmanhakim/wayback-robots/internal/metadata"
	"github.com/rohmanhakim/wayback-robots/internal/pathset"
	"github.com/rohmanhakim/wayback-robots/pkg/failure"
	"github.com/rohmanhakim/wayback-robots/pkg/fileutil"
	"github.com/rohmanhakim/wayback-robots/pkg/hashutil"
)

/*
Responsibilities
- Persist the collected path list of one host
- Ensure a deterministic filename and content

Output Characteristics
- <outputDir>/<host>-robots.txt
- One path per line, ascending order, no trailing newline
- Overwrite-safe reruns: identical input produces identical bytes
*/

const fileSuffix = "-robots.txt"

type Sink interface {
	Write(
		outputDir string,
		host string,
		paths pathset.Set[string],
		hashAlgo hashutil.HashAlgo,
	) (WriteResult, failure.ClassifiedError)
}

type LocalSink struct {
	metadataSink metadata.MetadataSink
}

func NewLocalSink(
	metadataSink metadata.MetadataSink,
) LocalSink {
	return LocalSink{
		metadataSink: metadataSink,
	}
}

// OutputPath returns where the path list of host is written.
func OutputPath(outputDir string, host string) string {
	return filepath.Join(outputDir, host+fileSuffix)
}

func (s *LocalSink) Write(
	outputDir string,
	host string,
	paths pathset.Set[string],
	hashAlgo hashutil.HashAlgo,
) (WriteResult, failure.ClassifiedError) {
	writeResult, storageError := write(outputDir, host, paths, hashAlgo)
	if storageError != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"storage",
			"LocalSink.Write",
			mapStorageErrorToMetadataCause(storageError),
			storageError.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrHost, host),
				metadata.NewAttr(metadata.AttrWritePath, storageError.Path),
			},
		)
		return WriteResult{}, storageError
	}
	s.metadataSink.RecordArtifact(
		metadata.ArtifactPathList,
		writeResult.Path(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, writeResult.Path()),
			metadata.NewAttr(metadata.AttrHost, host),
			metadata.NewAttr(metadata.AttrContentHash, writeResult.ContentHash()),
			metadata.NewAttr(metadata.AttrCount, fmt.Sprintf("%d", writeResult.PathCount())),
		},
	)
	return writeResult, nil
}

func write(
	outputDir string,
	host string,
	paths pathset.Set[string],
	hashAlgo hashutil.HashAlgo,
) (WriteResult, *StorageError) {
	content := []byte(strings.Join(pathset.Sorted(paths), "\n"))

	contentHash, err := hashutil.HashBytes(content, hashAlgo)
	if err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}

	if err := fileutil.EnsureDir(outputDir); err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
			Path:      outputDir,
		}
	}

	fullPath := OutputPath(outputDir, host)
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.Is(err, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: retryable,
			Cause:     cause,
			Path:      fullPath,
		}
	}

	return NewWriteResult(fullPath, contentHash, len(paths), len(content)), nil
}
