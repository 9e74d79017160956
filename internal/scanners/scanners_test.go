package scanners

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/cache"
	"github.com/cloudrecon-labs/posturescan/internal/config"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

const testAccountID = "123456789012"

// newTestContext builds a scan context with a fresh cache, no rate gate,
// and no policy. Scanner tests inject fake API clients through the
// NewXxxScannerWithClient constructors; the factory never builds a real one.
func newTestContext(level models.ScanLevel) *Context {
	creds := &awsconn.Credentials{
		Config:    aws.Config{Region: "us-east-1"},
		AccountID: testAccountID,
		Partition: "aws",
	}
	return &Context{
		Request:          models.ScanRequest{Regions: []string{"us-east-1"}, Level: level},
		Cache:            cache.New(time.Hour, 0),
		Clients:          awsconn.NewFactory(creds, config.RateLimitConfig{}),
		CheckConcurrency: 4,
		Logger:           zerolog.Nop(),
	}
}

// statusByCheck indexes findings for one resource by check ID.
func statusByCheck(findings []models.Finding, resourceID string) map[string]models.FindingStatus {
	out := make(map[string]models.FindingStatus)
	for _, f := range findings {
		if resourceID == "" || f.ResourceID == resourceID {
			out[f.CheckID] = f.Status
		}
	}
	return out
}
