package robots

import (
	"encoding/json"
	"time"

	"github.com/rohmanhakim/wayback-robots/internal/archive"
)

const cacheKeyPrefix = "wayback-robots:snapshot:"

// CacheKey names the cache slot of a snapshot's extraction result.
func CacheKey(snapshot archive.Snapshot) string {
	return cacheKeyPrefix + snapshot.String()
}

// cachedExtraction is the serialized cache value. Mode and trim are stored
// so that a run with different extraction settings does not reuse it.
type cachedExtraction struct {
	Paths     []string     `json:"paths"`
	Scanned   bool         `json:"scanned"`
	Digest    string       `json:"digest"`
	FetchedAt time.Time    `json:"fetchedAt"`
	Status    int          `json:"status"`
	Mode      DocumentMode `json:"mode"`
	Trim      bool         `json:"trim"`
}

func serializeExtraction(entry cachedExtraction) (string, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func deserializeExtraction(data string) (cachedExtraction, error) {
	var entry cachedExtraction
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return cachedExtraction{}, err
	}
	return entry, nil
}
