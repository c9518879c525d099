// Package cache remembers completed reviews so that an unchanged pull
// request is not reviewed twice.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/JNZader/prreviewer/internal/model"
)

// Cache defines the interface for caching review results.
type Cache interface {
	// Get retrieves a cached review result.
	Get(key string) (*model.ReviewResult, bool)

	// Set stores a review result.
	Set(key string, result *model.ReviewResult)

	// Clear removes all cached entries.
	Clear()

	// Stats reports hit, miss and eviction counters.
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// HitRate returns hits / (hits + misses), or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// ComputeKey identifies a pull request at a specific head commit.
func ComputeKey(repo string, number int, headSHA string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d@%s", repo, number, headSHA)))
	return hex.EncodeToString(h[:])
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(string) (*model.ReviewResult, bool) { return nil, false }
func (Noop) Set(string, *model.ReviewResult)        {}
func (Noop) Clear()                                 {}
func (Noop) Stats() Stats                           { return Stats{} }
