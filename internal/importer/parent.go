package importer

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// PatientLookup reports which of the given patient numbers exist.
type PatientLookup interface {
	ExistingPtNumbers(ctx context.Context, ptNumbers []int64) ([]int64, error)
}

// ParentChecker resolves patient numbers against committed patients. Hits
// are cached for ttl; misses are always looked up again since the patient
// may be imported in the meantime.
type ParentChecker struct {
	lookup PatientLookup
	hits   *cache.Cache
}

func NewParentChecker(lookup PatientLookup, ttl time.Duration) *ParentChecker {
	pc := &ParentChecker{lookup: lookup}
	if ttl > 0 {
		pc.hits = cache.New(ttl, 2*ttl)
	}
	return pc
}

// Missing returns the subset of ptNumbers with no committed patient.
func (c *ParentChecker) Missing(ctx context.Context, ptNumbers []int64) (map[int64]bool, error) {
	unknown := make([]int64, 0, len(ptNumbers))
	queued := make(map[int64]bool, len(ptNumbers))
	for _, pt := range ptNumbers {
		if queued[pt] {
			continue
		}
		if c.hits != nil {
			if _, ok := c.hits.Get(cacheKey(pt)); ok {
				continue
			}
		}
		queued[pt] = true
		unknown = append(unknown, pt)
	}

	missing := make(map[int64]bool)
	if len(unknown) == 0 {
		return missing, nil
	}

	found, err := c.lookup.ExistingPtNumbers(ctx, unknown)
	if err != nil {
		return nil, err
	}
	exists := make(map[int64]bool, len(found))
	for _, pt := range found {
		exists[pt] = true
		if c.hits != nil {
			c.hits.SetDefault(cacheKey(pt), struct{}{})
		}
	}
	for _, pt := range unknown {
		if !exists[pt] {
			missing[pt] = true
		}
	}
	return missing, nil
}

// Reset forgets every cached hit. Call it after patients are removed.
func (c *ParentChecker) Reset() {
	if c.hits != nil {
		c.hits.Flush()
	}
}

func cacheKey(pt int64) string {
	return strconv.FormatInt(pt, 10)
}
