package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

func okUnit(region, service string, findings int) Unit {
	return Unit{
		Region:  region,
		Service: service,
		Run: func(ctx context.Context) ([]models.Finding, error) {
			out := make([]models.Finding, findings)
			for i := range out {
				out[i] = models.Finding{Region: region, CheckID: service, Status: models.StatusPass}
			}
			return out, nil
		},
	}
}

func TestRun_AllUnitsComplete(t *testing.T) {
	units := []Unit{
		okUnit("us-east-1", "s3", 2),
		okUnit("us-east-1", "ec2", 1),
		okUnit("eu-west-1", "ec2", 3),
	}

	results := Run(context.Background(), units, Limits{Regions: 2, Services: 2})

	if len(results) != 3 {
		t.Fatalf("got %d results; want 3", len(results))
	}
	total := 0
	for _, r := range results {
		if !r.Dispatched {
			t.Errorf("unit %s/%s not dispatched", r.Region, r.Service)
		}
		if r.Err != nil {
			t.Errorf("unit %s/%s: unexpected error %v", r.Region, r.Service, r.Err)
		}
		total += len(r.Findings)
	}
	if total != 6 {
		t.Errorf("total findings = %d; want 6", total)
	}
}

func TestRun_FailureDoesNotCancelSiblings(t *testing.T) {
	boom := errors.New("discovery exploded")
	units := []Unit{
		{
			Region:  "us-east-1",
			Service: "rds",
			Run: func(ctx context.Context) ([]models.Finding, error) {
				// Partial findings survive alongside the error.
				return []models.Finding{{CheckID: "partial"}}, boom
			},
		},
		okUnit("us-east-1", "s3", 1),
		okUnit("eu-west-1", "s3", 1),
	}

	results := Run(context.Background(), units, Limits{Regions: 2, Services: 2})

	var failed, succeeded int
	for _, r := range results {
		if r.Err != nil {
			failed++
			if !errors.Is(r.Err, boom) {
				t.Errorf("wrong error: %v", r.Err)
			}
			if len(r.Findings) != 1 {
				t.Errorf("partial findings dropped: got %d", len(r.Findings))
			}
			continue
		}
		succeeded++
	}
	if failed != 1 || succeeded != 2 {
		t.Errorf("failed=%d succeeded=%d; want 1 and 2", failed, succeeded)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	units := []Unit{
		okUnit("us-east-1", "s3", 1),
		okUnit("eu-west-1", "s3", 1),
	}
	results := Run(ctx, units, Limits{Regions: 2, Services: 2})

	if len(results) != 2 {
		t.Fatalf("got %d results; want 2 (every planned unit is accounted for)", len(results))
	}
	for _, r := range results {
		if r.Dispatched {
			t.Errorf("unit %s/%s must not be dispatched after cancellation", r.Region, r.Service)
		}
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("unit %s/%s: err = %v; want context.Canceled", r.Region, r.Service, r.Err)
		}
		if len(r.Findings) != 0 {
			t.Errorf("undispatched unit produced findings")
		}
	}
}

func TestRun_DeadlineMidScan(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var started int32
	slow := func(region string) Unit {
		return Unit{
			Region:  region,
			Service: "slow",
			Run: func(ctx context.Context) ([]models.Finding, error) {
				atomic.AddInt32(&started, 1)
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}
	}

	// Region limit 1 forces the second region to queue behind the first;
	// the deadline fires while it waits.
	results := Run(ctx, []Unit{slow("us-east-1"), slow("eu-west-1")}, Limits{Regions: 1, Services: 1})

	if len(results) != 2 {
		t.Fatalf("got %d results; want 2", len(results))
	}
	for _, r := range results {
		if r.Err == nil {
			t.Errorf("unit %s/%s should have failed on deadline", r.Region, r.Service)
		}
	}
	if atomic.LoadInt32(&started) == 0 {
		t.Error("first unit should have started before the deadline")
	}
}

func TestForEach_BoundsConcurrency(t *testing.T) {
	const limit = 2

	var current, peak int32
	items := make([]int, 20)
	ForEach(context.Background(), limit, items, func(int) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
	})

	if peak > limit {
		t.Errorf("observed %d concurrent calls; limit is %d", peak, limit)
	}
}

func TestForEach_AppliesToEveryItem(t *testing.T) {
	var sum int64
	ForEach(context.Background(), 4, []int64{1, 2, 3, 4, 5}, func(v int64) {
		atomic.AddInt64(&sum, v)
	})
	if sum != 15 {
		t.Errorf("sum = %d; want 15", sum)
	}
}

func TestForEach_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	ForEach(ctx, 2, []int{1, 2, 3}, func(int) {
		atomic.AddInt32(&calls, 1)
	})
	if calls != 0 {
		t.Errorf("no items should run after cancellation; got %d", calls)
	}
}

func TestSemaphore_AcquireRelease(t *testing.T) {
	s := NewSemaphore(1)
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Acquire(ctx); err == nil {
		t.Fatal("second acquire should block until deadline")
	}

	s.Release()
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}
