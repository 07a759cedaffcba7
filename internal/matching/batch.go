package matching

import (
	"context"
	"sync"

	"supplyaudit/internal"
)

// MatchBatch runs items through the matcher in fixed-size concurrent
// batches to bound simultaneous lookup and embedding load. Results come
// back in input order; batches are sequential so a caller can flush
// between them.
func (m *Matcher) MatchBatch(ctx context.Context, items []internal.RawLineItem, batchSize int) []internal.MatchResult {
	if batchSize <= 0 {
		batchSize = 1
	}

	out := make([]internal.MatchResult, len(items))
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i] = m.Match(ctx, items[i])
			}(i)
		}
		wg.Wait()
	}
	return out
}
