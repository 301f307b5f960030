package narrative

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/duetlabs/duet/internal/period"
)

// Analyze runs every period through the analyzer with at most the configured
// number in flight, and returns reports sorted by period key. Periods carry
// no cross-period dependency, so completion order does not matter.
func (a *Analyzer) Analyze(ctx context.Context, periods []period.Period, loc *time.Location) ([]PeriodReport, error) {
	reports := make([]PeriodReport, len(periods))
	sem := semaphore.NewWeighted(int64(a.limit))

	g, gCtx := errgroup.WithContext(ctx)
	for i, p := range periods {
		g.Go(func() error {
			if err := sem.Acquire(gCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			report, err := a.analyzeOne(gCtx, p, loc)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Period < reports[j].Period })
	return reports, nil
}

// Stream runs the analysis like Analyze but emits each report as it
// finishes, tagged with completion progress. The channel is closed when all
// periods are done or the context is cancelled; errors on individual periods
// are logged and surface as empty reports so the stream always completes.
func (a *Analyzer) Stream(ctx context.Context, periods []period.Period, loc *time.Location) <-chan Progress {
	out := make(chan Progress)

	go func() {
		defer close(out)

		sem := semaphore.NewWeighted(int64(a.limit))
		var wg sync.WaitGroup
		var mu sync.Mutex
		done := 0

		for _, p := range periods {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					return
				}
				defer sem.Release(1)

				report, err := a.analyzeOne(ctx, p, loc)
				if err != nil {
					a.log.WarnContext(ctx, "Period analysis failed during stream", "period", p.Key(), "error", err)
					report = PeriodReport{Period: p.Key(), Findings: []Finding{}}
				}

				mu.Lock()
				done++
				current := done
				mu.Unlock()

				select {
				case out <- Progress{Current: current, Total: len(periods), Period: report}:
				case <-ctx.Done():
				}
			}()
		}
		wg.Wait()
	}()

	return out
}

// runBounded runs fn for each index in [0, n) with at most limit in flight,
// returning once every call finished or the context was cancelled.
func runBounded(ctx context.Context, limit, n int, fn func(ctx context.Context, i int)) {
	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			fn(ctx, i)
		}()
	}
	wg.Wait()
}
