// Package executor runs scan units under a multi-level concurrency bound:
// parallel across regions, parallel across services within a region, and
// (via ForEach) bounded-parallel across checks within a scanner. The bounds
// exist to respect upstream API rate limits.
package executor

import (
	"context"
	"sync"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// Unit is one (region, service) piece of the scan plan.
type Unit struct {
	Region  string
	Service string

	// Run performs the unit's discovery and evaluation. It may return
	// findings alongside an error; partial results are always preserved.
	Run func(ctx context.Context) ([]models.Finding, error)
}

// UnitResult is the outcome of one unit.
type UnitResult struct {
	Region   string
	Service  string
	Findings []models.Finding
	Err      error

	// Dispatched is false when cancellation stopped the unit before it
	// started; such units contribute neither findings nor scanner errors,
	// only a coverage gap.
	Dispatched bool
}

// Limits bounds the fan-out at each level.
type Limits struct {
	Regions  int
	Services int
}

// Run executes every unit and collects all results. Guarantees:
//
//   - a failure in one unit never cancels sibling units; errors are
//     collected, not propagated as aborts
//   - cancellation stops new dispatch promptly; already-running units
//     finish (they observe ctx at their own I/O points) and their partial
//     findings are kept
//   - Run always returns once every dispatched unit has returned; the
//     caller is never left blocked
//
// Results are in no particular order.
func Run(ctx context.Context, units []Unit, limits Limits) []UnitResult {
	byRegion := make(map[string][]Unit)
	var regionOrder []string
	for _, u := range units {
		if _, ok := byRegion[u.Region]; !ok {
			regionOrder = append(regionOrder, u.Region)
		}
		byRegion[u.Region] = append(byRegion[u.Region], u)
	}

	regionSem := NewSemaphore(limits.Regions)
	serviceSem := NewSemaphore(max(limits.Services, 1) * max(limits.Regions, 1))

	var (
		mu      sync.Mutex
		results []UnitResult
		wg      sync.WaitGroup
	)

	record := func(r UnitResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	for _, region := range regionOrder {
		regionUnits := byRegion[region]

		// Dispatch check happens before each region; a cancelled scan
		// records the whole region as undispatched.
		if err := regionSem.Acquire(ctx); err != nil {
			for _, u := range regionUnits {
				record(UnitResult{Region: u.Region, Service: u.Service, Err: err})
			}
			continue
		}

		wg.Add(1)
		go func(region string, regionUnits []Unit) {
			defer wg.Done()
			defer regionSem.Release()
			runRegion(ctx, regionUnits, serviceSem, limits.Services, record)
		}(region, regionUnits)
	}

	wg.Wait()
	return results
}

// runRegion fans out one region's service units under the per-region bound.
func runRegion(ctx context.Context, units []Unit, global *Semaphore, perRegion int, record func(UnitResult)) {
	local := NewSemaphore(perRegion)

	var wg sync.WaitGroup
	for _, u := range units {
		if ctx.Err() != nil {
			record(UnitResult{Region: u.Region, Service: u.Service, Err: ctx.Err()})
			continue
		}
		if err := local.Acquire(ctx); err != nil {
			record(UnitResult{Region: u.Region, Service: u.Service, Err: err})
			continue
		}
		if err := global.Acquire(ctx); err != nil {
			local.Release()
			record(UnitResult{Region: u.Region, Service: u.Service, Err: err})
			continue
		}

		wg.Add(1)
		go func(u Unit) {
			defer wg.Done()
			defer global.Release()
			defer local.Release()

			findings, err := u.Run(ctx)
			record(UnitResult{
				Region:     u.Region,
				Service:    u.Service,
				Findings:   findings,
				Err:        err,
				Dispatched: true,
			})
		}(u)
	}
	wg.Wait()
}

// ForEach applies fn to every item with at most limit running concurrently.
// Cancellation stops new dispatch; items not reached are simply skipped.
// Scanners use it for bounded check-level parallelism.
func ForEach[T any](ctx context.Context, limit int, items []T, fn func(T)) {
	sem := NewSemaphore(limit)
	var wg sync.WaitGroup
	for _, item := range items {
		if sem.Acquire(ctx) != nil {
			break
		}
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer sem.Release()
			fn(item)
		}(item)
	}
	wg.Wait()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
