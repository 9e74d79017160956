package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

func bucket(name string) *models.Resource {
	return &models.Resource{
		Kind:   models.KindS3Bucket,
		ID:     "arn:aws:s3:::" + name,
		Name:   name,
		Region: "global",
	}
}

func TestGetOrFetch_CachesSecondCall(t *testing.T) {
	c := New(time.Hour, 0)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (*models.Resource, error) {
		atomic.AddInt32(&calls, 1)
		return bucket("b1"), nil
	}

	first, err := c.GetOrFetch(ctx, models.KindS3Bucket, "s3:b1", fetch)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := c.GetOrFetch(ctx, models.KindS3Bucket, "s3:b1", fetch)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if calls != 1 {
		t.Errorf("fetch called %d times; want 1", calls)
	}
	if first != second {
		t.Error("both callers must receive the same cached snapshot")
	}

	stats := c.Snapshot()
	if stats.Fetches != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v; want 1 fetch, 1 hit, 1 miss", stats)
	}
}

func TestGetOrFetchList_KeysAreIndependent(t *testing.T) {
	c := New(time.Hour, 0)
	ctx := context.Background()

	var calls int32
	fetchFor := func(region string) ListFetchFunc {
		return func(ctx context.Context) ([]*models.Resource, error) {
			atomic.AddInt32(&calls, 1)
			return []*models.Resource{bucket(region)}, nil
		}
	}

	if _, err := c.GetOrFetchList(ctx, models.KindEC2Instance, "ec2:us-east-1", fetchFor("us-east-1")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrFetchList(ctx, models.KindEC2Instance, "ec2:eu-west-1", fetchFor("eu-west-1")); err != nil {
		t.Fatal(err)
	}

	if calls != 2 {
		t.Errorf("distinct keys must fetch independently; got %d calls", calls)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d; want 2", c.Len())
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New(time.Hour, 0)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (*models.Resource, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("throttled")
		}
		return bucket("b1"), nil
	}

	if _, err := c.GetOrFetch(ctx, models.KindS3Bucket, "s3:b1", fetch); err == nil {
		t.Fatal("first call must surface the fetch error")
	}
	r, err := c.GetOrFetch(ctx, models.KindS3Bucket, "s3:b1", fetch)
	if err != nil {
		t.Fatalf("retry after error: %v", err)
	}
	if r.Name != "b1" {
		t.Errorf("retry returned wrong resource: %+v", r)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times; want 2 (error must not be cached)", calls)
	}
}

func TestTTLExpiry_Refetches(t *testing.T) {
	c := New(10*time.Millisecond, 0)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (*models.Resource, error) {
		atomic.AddInt32(&calls, 1)
		return bucket("b1"), nil
	}

	if _, err := c.GetOrFetch(ctx, models.KindS3Bucket, "s3:b1", fetch); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := c.GetOrFetch(ctx, models.KindS3Bucket, "s3:b1", fetch); err != nil {
		t.Fatal(err)
	}

	if calls != 2 {
		t.Errorf("expired entry must refetch; got %d calls", calls)
	}
}

func TestSingleFlight_CoalescesConcurrentFetches(t *testing.T) {
	c := New(time.Hour, 0)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (*models.Resource, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return bucket("shared"), nil
	}

	const workers = 16
	results := make([]*models.Resource, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.GetOrFetch(ctx, models.KindS3Bucket, "s3:shared", fetch)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("concurrent callers must coalesce into one fetch; got %d", calls)
	}
	for i, r := range results {
		if r != results[0] {
			t.Fatalf("worker %d received a different snapshot", i)
		}
	}
}

func TestEviction_BoundsSize(t *testing.T) {
	c := New(time.Hour, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("s3:b%d", i)
		name := fmt.Sprintf("b%d", i)
		if _, err := c.GetOrFetch(ctx, models.KindS3Bucket, key, func(ctx context.Context) (*models.Resource, error) {
			return bucket(name), nil
		}); err != nil {
			t.Fatal(err)
		}
		// Distinct access times so eviction order is deterministic.
		time.Sleep(2 * time.Millisecond)
	}

	if c.Len() != 2 {
		t.Errorf("Len() = %d; want 2 after eviction", c.Len())
	}
	if stats := c.Snapshot(); stats.Evictions != 1 {
		t.Errorf("Evictions = %d; want 1", stats.Evictions)
	}
}

func TestNew_DefaultTTL(t *testing.T) {
	c := New(0, 0)
	ctx := context.Background()

	// A zero TTL falls back to the default rather than expiring instantly.
	var calls int32
	fetch := func(ctx context.Context) (*models.Resource, error) {
		atomic.AddInt32(&calls, 1)
		return bucket("b1"), nil
	}
	c.GetOrFetch(ctx, models.KindS3Bucket, "s3:b1", fetch)
	c.GetOrFetch(ctx, models.KindS3Bucket, "s3:b1", fetch)
	if calls != 1 {
		t.Errorf("zero-TTL cache must still cache; got %d calls", calls)
	}
}
