package engine

import (
	"context"
	"runtime"
	"sync"

	"optscore/internal/models"
)

// AnalyzeBatch analyzes several symbols on a bounded pool of workers.
// Results keep the order of symbols. workers <= 0 uses runtime.NumCPU().
// Symbols not yet started when ctx is cancelled report DATA_UNAVAILABLE.
func (e *Engine) AnalyzeBatch(ctx context.Context, symbols []string, strategyName string, workers int) []*models.AnalysisResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(symbols) {
		workers = len(symbols)
	}

	results := make([]*models.AnalysisResult, len(symbols))
	tasks := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				results[i] = e.AnalyzeOptionsChain(ctx, symbols[i], strategyName)
			}
		}()
	}

feed:
	for i := range symbols {
		select {
		case <-ctx.Done():
			break feed
		case tasks <- i:
		}
	}
	close(tasks)
	wg.Wait()

	for i, r := range results {
		if r == nil {
			// Never dispatched; run it so the failure is reported uniformly.
			results[i] = e.AnalyzeOptionsChain(ctx, symbols[i], strategyName)
		}
	}
	return results
}
