package awsconn

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"golang.org/x/time/rate"

	"github.com/cloudrecon-labs/posturescan/internal/config"
)

type clientKey struct {
	service string
	region  string
}

// Factory lazily constructs and memoizes one API client per
// (service, region) pair for a single resolved credential set. A scan that
// targets 3 of 23 services never pays the construction cost of the other
// 20. Safe for concurrent use; at most one client object exists per key.
//
// The factory also carries the scan-wide rate gate: scanners call Wait
// before each discovery call so the combined fan-out stays under the
// account's API rate limits.
type Factory struct {
	creds   *Credentials
	limiter *rate.Limiter

	mu      sync.Mutex
	clients map[clientKey]any
}

// NewFactory builds a Factory bound to creds. rl.PerSecond == 0 disables
// the rate gate.
func NewFactory(creds *Credentials, rl config.RateLimitConfig) *Factory {
	var limiter *rate.Limiter
	if rl.PerSecond > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = int(rl.PerSecond * 2)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = rate.NewLimiter(rate.Limit(rl.PerSecond), burst)
	}
	return &Factory{
		creds:   creds,
		limiter: limiter,
		clients: make(map[clientKey]any),
	}
}

// AccountID returns the account the factory's credentials resolve to.
func (f *Factory) AccountID() string { return f.creds.AccountID }

// Partition returns the ARN partition for the resolved account.
func (f *Factory) Partition() string { return f.creds.Partition }

// ConfigForRegion returns a copy of the base config with Region set.
// The shared retryer and credential provider carry over.
func (f *Factory) ConfigForRegion(region string) aws.Config {
	cfg := f.creds.Config
	cfg.Region = region
	return cfg
}

// Client returns the memoized client for (service, region), building it
// with build on first use. Construction happens under the factory lock, so
// concurrent first use still produces exactly one client object per key.
func (f *Factory) Client(service, region string, build func(aws.Config) any) any {
	key := clientKey{service: service, region: region}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[key]; ok {
		return c
	}
	c := build(f.ConfigForRegion(region))
	f.clients[key] = c
	return c
}

// Wait blocks until the rate gate admits one request or ctx is cancelled.
func (f *Factory) Wait(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	return f.limiter.Wait(ctx)
}

// ClientCount reports how many clients have been constructed so far.
func (f *Factory) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}
