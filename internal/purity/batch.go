package purity

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Result pairs one peak of a batch with its verdict or its error.
type Result struct {
	Index   int
	PeakID  string
	Verdict Verdict
	Err     error
}

// AnalyzeBatch classifies peaks on a pool of workers. A failing peak only
// fails its own Result. Results are returned in input order.
//
// When ctx is cancelled no further peaks are started; peaks that were never
// started carry ctx.Err() and AnalyzeBatch returns it as well.
func AnalyzeBatch(ctx context.Context, peaks []PeakSource, p Params, workers int) ([]Result, error) {
	a, err := NewAnalyzer(p)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(peaks) {
		workers = len(peaks)
	}

	results := make([]Result, len(peaks))
	started := make([]bool, len(peaks))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = analyzeOne(a, i, peaks[i])
			}
		}()
	}

dispatch:
	for i := range peaks {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
			started[i] = true
		}
	}
	close(jobs)
	wg.Wait()

	var cancelled error
	for i, ok := range started {
		if !ok {
			cancelled = ctx.Err()
			results[i] = Result{Index: i, PeakID: peakID(peaks[i]), Err: cancelled}
		}
	}
	return results, cancelled
}

func analyzeOne(a *Analyzer, i int, src PeakSource) (res Result) {
	res = Result{Index: i}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("peak %d: analysis panicked: %v", i, r)
		}
	}()
	if src != nil {
		res.PeakID = peakID(src)
	}
	res.Verdict, res.Err = a.Analyze(src)
	return res
}
