package crawler

import (
	"sync"

	"screenscrapehub/pkg/types"
)

// resultSet collects per-link results by discovery index. Writes may arrive
// concurrently and in any order; seal freezes the set exactly once.
type resultSet struct {
	mu      sync.Mutex
	urls    []string
	results []types.ArticleResult
	filled  []bool
	sealed  bool
}

func newResultSet(links []types.LinkCandidate) *resultSet {
	urls := make([]string, len(links))
	for i, link := range links {
		urls[i] = link.AbsoluteURL
	}
	return &resultSet{
		urls:    urls,
		results: make([]types.ArticleResult, len(links)),
		filled:  make([]bool, len(links)),
	}
}

// set stores the result for index i. The first write wins; writes after
// sealing are dropped. It reports whether the write was kept.
func (r *resultSet) set(i int, res types.ArticleResult) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed || i < 0 || i >= len(r.results) || r.filled[i] {
		return false
	}
	r.results[i] = res
	r.filled[i] = true
	return true
}

// seal turns every unfilled slot into a timeout error and returns the
// ordered results. Later calls return the same slice.
func (r *resultSet) seal() (types.ScrapeResponse, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return r.results, 0
	}
	r.sealed = true
	missing := 0
	for i, ok := range r.filled {
		if ok {
			continue
		}
		r.results[i] = types.ErrorResult(r.urls[i], &types.FetchFailure{
			URL:  r.urls[i],
			Kind: types.ErrorKindTimeout,
			Err:  errBatchDeadline,
		})
		r.filled[i] = true
		missing++
	}
	return r.results, missing
}
