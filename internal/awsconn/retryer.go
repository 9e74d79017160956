package awsconn

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"

	"github.com/cloudrecon-labs/posturescan/internal/config"
)

// newRetryer builds the SDK retryer applied to every client the factory
// constructs: standard-mode retries with exponential backoff and jitter,
// capped by the configured attempt budget. Throttling responses that
// survive the full budget surface to scanners, which record them as
// unit-level scan errors.
func newRetryer(rc config.RetryConfig) func() aws.Retryer {
	return func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = rc.MaxAttempts
			o.MaxBackoff = rc.MaxDelay
			o.Backoff = retry.NewExponentialJitterBackoff(rc.MaxDelay)
		})
	}
}
