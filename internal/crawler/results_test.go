package crawler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenscrapehub/pkg/types"
)

func TestResultSetKeepsDiscoveryOrder(t *testing.T) {
	links := []types.LinkCandidate{{AbsoluteURL: "a"}, {AbsoluteURL: "b"}, {AbsoluteURL: "c"}, {AbsoluteURL: "d"}}
	set := newResultSet(links)

	var wg sync.WaitGroup
	for i := len(links) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set.set(i, types.ContentResult(links[i].AbsoluteURL, "text "+links[i].AbsoluteURL))
		}(i)
	}
	wg.Wait()

	results, missing := set.seal()
	require.Len(t, results, 4)
	assert.Zero(t, missing)
	for i, res := range results {
		assert.Equal(t, links[i].AbsoluteURL, res.URL)
		require.NotNil(t, res.Content)
		assert.Equal(t, "text "+links[i].AbsoluteURL, *res.Content)
	}
}

func TestResultSetSealFillsTimeouts(t *testing.T) {
	set := newResultSet([]types.LinkCandidate{{AbsoluteURL: "a"}, {AbsoluteURL: "b"}})
	assert.True(t, set.set(0, types.ContentResult("a", "")))
	assert.False(t, set.set(0, types.ContentResult("a", "second write")), "first write wins")
	assert.False(t, set.set(7, types.ContentResult("x", "")), "out of range")

	results, missing := set.seal()
	assert.Equal(t, 1, missing)
	require.NotNil(t, results[0].Content)
	assert.Equal(t, "", *results[0].Content)
	assert.True(t, results[1].Failed())
	assert.Contains(t, results[1].Error, "timeout")

	assert.False(t, set.set(1, types.ContentResult("b", "late")), "writes after seal are dropped")
	again, missing := set.seal()
	assert.Zero(t, missing)
	assert.True(t, again[1].Failed())
}
