package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/NREL/elm-sub000/internal/aggregate"
	"github.com/NREL/elm-sub000/internal/contracts"
	"github.com/NREL/elm-sub000/internal/search"
	selecter "github.com/NREL/elm-sub000/internal/select"
)

// runSearch issues every query in queries against engine concurrently,
// interleaves the per-query hits, normalizes and deduplicates URLs across
// all of them, and caps the result to maxResults with per-domain
// diversity.
func runSearch(ctx context.Context, engine contracts.SearchEngine, queries []string, limit, maxResults int) ([]search.Result, error) {
	groups := make([][]search.Result, len(queries))
	errs := make([]error, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			results, err := engine.Search(ctx, q, limit)
			groups[i] = results
			errs[i] = err
		}(i, q)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("search query %q: %w", queries[i], err)
		}
	}

	merged := aggregate.MergeAndNormalize([][]search.Result{interleave(groups)})
	return selecter.Select(merged, selecter.Options{MaxTotal: maxResults}), nil
}

// interleave takes hits round-robin from each query's result group in
// turn, instead of exhausting one query's list before moving to the
// next, so the later per-domain cap sees a fair sample from every query
// rather than just the first query's top hits.
func interleave(groups [][]search.Result) []search.Result {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	out := make([]search.Result, 0, total)
	for i := 0; ; i++ {
		added := false
		for _, g := range groups {
			if i < len(g) {
				out = append(out, g[i])
				added = true
			}
		}
		if !added {
			return out
		}
	}
}
