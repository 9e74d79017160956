package awsconn

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/cloudrecon-labs/posturescan/internal/config"
)

func testCreds() *Credentials {
	return &Credentials{
		Config:    aws.Config{Region: "us-east-1"},
		AccountID: "123456789012",
		Partition: "aws",
	}
}

func TestFactory_Identity(t *testing.T) {
	f := NewFactory(testCreds(), config.RateLimitConfig{})
	if f.AccountID() != "123456789012" {
		t.Errorf("AccountID = %q", f.AccountID())
	}
	if f.Partition() != "aws" {
		t.Errorf("Partition = %q", f.Partition())
	}
}

func TestFactory_ConfigForRegion(t *testing.T) {
	f := NewFactory(testCreds(), config.RateLimitConfig{})
	cfg := f.ConfigForRegion("eu-west-1")
	if cfg.Region != "eu-west-1" {
		t.Errorf("Region = %q; want eu-west-1", cfg.Region)
	}
	// The base config must not be mutated.
	if f.ConfigForRegion("ap-south-1").Region != "ap-south-1" {
		t.Error("regional configs interfere with each other")
	}
}

func TestFactory_ClientMemoization(t *testing.T) {
	f := NewFactory(testCreds(), config.RateLimitConfig{})

	type fakeClient struct{ region string }
	var builds int32
	build := func(cfg aws.Config) any {
		atomic.AddInt32(&builds, 1)
		return &fakeClient{region: cfg.Region}
	}

	a := f.Client("s3", "us-east-1", build)
	b := f.Client("s3", "us-east-1", build)
	if a != b {
		t.Error("same (service, region) must return the same client")
	}
	if builds != 1 {
		t.Errorf("build called %d times; want 1", builds)
	}

	c := f.Client("s3", "eu-west-1", build).(*fakeClient)
	if c.region != "eu-west-1" {
		t.Errorf("client built for region %q; want eu-west-1", c.region)
	}
	f.Client("ec2", "us-east-1", build)

	if builds != 3 {
		t.Errorf("build called %d times; want 3", builds)
	}
	if f.ClientCount() != 3 {
		t.Errorf("ClientCount = %d; want 3", f.ClientCount())
	}
}

func TestFactory_ConcurrentFirstUse(t *testing.T) {
	f := NewFactory(testCreds(), config.RateLimitConfig{})

	var builds int32
	build := func(cfg aws.Config) any {
		atomic.AddInt32(&builds, 1)
		return struct{}{}
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Client("rds", "us-east-1", build)
		}()
	}
	wg.Wait()

	if builds != 1 {
		t.Errorf("concurrent first use built %d clients; want 1", builds)
	}
}

func TestFactory_WaitDisabled(t *testing.T) {
	f := NewFactory(testCreds(), config.RateLimitConfig{})
	// PerSecond 0 disables the gate entirely.
	for i := 0; i < 100; i++ {
		if err := f.Wait(context.Background()); err != nil {
			t.Fatalf("Wait with disabled gate: %v", err)
		}
	}
}

func TestFactory_WaitRespectsCancellation(t *testing.T) {
	// Rate 1/s with burst 1: the second Wait must block, then fail when the
	// context is cancelled.
	f := NewFactory(testCreds(), config.RateLimitConfig{PerSecond: 1, Burst: 1})

	if err := f.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.Wait(ctx); err == nil {
		t.Fatal("second Wait should fail once the context deadline passes")
	}
}

func TestFactory_DefaultBurst(t *testing.T) {
	// Burst unset defaults to twice the rate; two immediate calls succeed.
	f := NewFactory(testCreds(), config.RateLimitConfig{PerSecond: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	for i := 0; i < 2; i++ {
		if err := f.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
}
