package storage

// Persistence

type WriteResult struct {
	path        string
	contentHash string
	pathCount   int
	sizeByte    int
}

func NewWriteResult(
	path string,
	contentHash string,
	pathCount int,
	sizeByte int,
) WriteResult {
	return WriteResult{
		path:        path,
		contentHash: contentHash,
		pathCount:   pathCount,
		sizeByte:    sizeByte,
	}
}

func (w *WriteResult) Path() string {
	return w.path
}

func (w *WriteResult) ContentHash() string {
	return w.contentHash
}

// PathCount is the number of lines written.
func (w *WriteResult) PathCount() int {
	return w.pathCount
}

func (w *WriteResult) SizeByte() int {
	return w.sizeByte
}
