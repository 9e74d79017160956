// Package awsconn owns AWS connectivity for the scan engine: credential
// resolution, lazy per-(service, region) client construction, and the
// shared retry and rate-limit policy applied to every outbound call.
package awsconn

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/config"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// Credentials is a resolved, validated credential set: the base SDK config
// plus the account identity it maps to. Region is set per call site via
// Factory.ConfigForRegion.
type Credentials struct {
	Config    aws.Config
	AccountID string
	Partition string
}

// STSClient is the narrow STS interface used for credential validation.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Resolver turns an opaque credential reference into validated Credentials.
// The zero value is not usable; construct with NewResolver.
type Resolver struct {
	stsFactory func(aws.Config) STSClient
}

// NewResolver returns a Resolver backed by the real AWS SDK.
func NewResolver() *Resolver {
	return &Resolver{stsFactory: func(cfg aws.Config) STSClient { return sts.NewFromConfig(cfg) }}
}

// NewResolverWithSTSFactory returns a Resolver that uses f to build its STS
// client. Pass a fake factory in tests.
func NewResolverWithSTSFactory(f func(aws.Config) STSClient) *Resolver {
	return &Resolver{stsFactory: f}
}

// Resolve loads and validates the credentials named by ref.
//
// Reference formats:
//   - "" or "env": the default SDK credential chain
//   - "profile:<name>": a shared-config profile
//   - "static:<access-key>:<secret-key>[:<session-token>]": explicit keys
//
// Any load or validation failure is returned as *models.CredentialError,
// which is fatal for the whole scan: no retry, no partial result.
func (r *Resolver) Resolve(ctx context.Context, ref string, retryCfg config.RetryConfig) (*Credentials, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryer(newRetryer(retryCfg)),
	}

	switch {
	case ref == "" || ref == "env":
		// Default chain: environment, shared config, IMDS.
	case strings.HasPrefix(ref, "profile:"):
		opts = append(opts, awsconfig.WithSharedConfigProfile(strings.TrimPrefix(ref, "profile:")))
	case strings.HasPrefix(ref, "static:"):
		parts := strings.SplitN(strings.TrimPrefix(ref, "static:"), ":", 3)
		if len(parts) < 2 {
			return nil, &models.CredentialError{Ref: ref, Err: fmt.Errorf("static reference needs access and secret key")}
		}
		token := ""
		if len(parts) == 3 {
			token = parts[2]
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(parts[0], parts[1], token)))
	default:
		return nil, &models.CredentialError{Ref: ref, Err: fmt.Errorf("unrecognised credential reference")}
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &models.CredentialError{Ref: ref, Err: err}
	}
	if cfg.Region == "" {
		// STS needs some region to sign against; validation is region-agnostic.
		cfg.Region = "us-east-1"
	}

	out, err := r.stsFactory(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, &models.CredentialError{Ref: ref, Err: err}
	}
	if out.Account == nil || *out.Account == "" {
		return nil, &models.CredentialError{Ref: ref, Err: fmt.Errorf("caller identity returned no account ID")}
	}

	partition := arn.DefaultPartition
	if out.Arn != nil {
		if parts, perr := arn.Parse(*out.Arn); perr == nil {
			partition = parts.Partition
		}
	}

	return &Credentials{
		Config:    cfg,
		AccountID: aws.ToString(out.Account),
		Partition: partition,
	}, nil
}
