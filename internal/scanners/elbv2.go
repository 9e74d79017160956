package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbsvc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// elbAPIClient is the narrow ELBv2 interface used by the load balancer
// scanner.
type elbAPIClient interface {
	elbsvc.DescribeLoadBalancersAPIClient
	DescribeListeners(ctx context.Context, params *elbsvc.DescribeListenersInput, optFns ...func(*elbsvc.Options)) (*elbsvc.DescribeListenersOutput, error)
	DescribeLoadBalancerAttributes(ctx context.Context, params *elbsvc.DescribeLoadBalancerAttributesInput, optFns ...func(*elbsvc.Options)) (*elbsvc.DescribeLoadBalancerAttributesOutput, error)
}

// ELBScanner audits load balancer posture: listener encryption, access
// logging, and deletion protection.
type ELBScanner struct {
	newClient func(aws.Config) elbAPIClient
}

func init() {
	Register("elbv2", func() Scanner {
		return &ELBScanner{newClient: func(cfg aws.Config) elbAPIClient { return elbsvc.NewFromConfig(cfg) }}
	})
}

// NewELBScannerWithClient returns an ELBScanner using f to build its client.
func NewELBScannerWithClient(f func(aws.Config) elbAPIClient) *ELBScanner {
	return &ELBScanner{newClient: f}
}

func (s *ELBScanner) Service() string            { return "elbv2" }
func (s *ELBScanner) MinLevel() models.ScanLevel { return models.LevelStandard }
func (s *ELBScanner) Global() bool               { return false }

var elbBattery = []checks.Check{
	{
		ID:       "elb_encrypted_listeners_only",
		Title:    "Load balancer accepts only encrypted listeners",
		Kind:     models.KindLoadBalancer,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if r.IntAttr("listener_count") == 0 {
				return checks.NotApplicable("load balancer has no listeners")
			}
			if n := r.IntAttr("plaintext_listeners"); n > 0 {
				return checks.Fail("load balancer has unencrypted listeners", map[string]any{
					"plaintext_listeners": n,
				})
			}
			return checks.Pass("all listeners encrypted", nil)
		},
	},
	{
		ID:       "elb_access_logs_enabled",
		Title:    "Load balancer has access logging enabled",
		Kind:     models.KindLoadBalancer,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("access_logs") {
				return checks.Fail("access logging is disabled", nil)
			}
			return checks.Pass("access logs enabled", nil)
		},
	},
	{
		ID:       "elb_deletion_protection",
		Title:    "Load balancer has deletion protection enabled",
		Kind:     models.KindLoadBalancer,
		Severity: models.SeverityLow,
		MinLevel: models.LevelAdvanced,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("deletion_protection") {
				return checks.Fail("deletion protection is disabled", nil)
			}
			return checks.Pass("deletion protection enabled", nil)
		},
	},
}

// Scan implements Scanner.
func (s *ELBScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("elbv2", region, func(cfg aws.Config) any { return s.newClient(cfg) }).(elbAPIClient)

	resources, err := sc.Cache.GetOrFetchList(ctx, models.KindLoadBalancer, "elbv2:"+region, func(ctx context.Context) ([]*models.Resource, error) {
		return s.discover(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, elbBattery, region, err)
	}
	return evaluate(ctx, sc, elbBattery, resources), nil
}

func (s *ELBScanner) discover(ctx context.Context, sc *Context, client elbAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := elbsvc.NewDescribeLoadBalancersPaginator(client, &elbsvc.DescribeLoadBalancersInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "elbv2", region, "DescribeLoadBalancers")
		}
		for _, lb := range page.LoadBalancers {
			lbARN := aws.ToString(lb.LoadBalancerArn)
			attrs, skip := s.inspect(ctx, sc, client, region, lbARN)
			if skip {
				continue
			}
			resources = append(resources, &models.Resource{
				Kind:         models.KindLoadBalancer,
				ID:           lbARN,
				Name:         aws.ToString(lb.LoadBalancerName),
				Region:       region,
				Attrs:        attrs,
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}

func (s *ELBScanner) inspect(ctx context.Context, sc *Context, client elbAPIClient, region, lbARN string) (map[string]any, bool) {
	attrs := map[string]any{}

	err := sc.Do(ctx, "elbv2", region, "DescribeListeners", func() error {
		out, callErr := client.DescribeListeners(ctx, &elbsvc.DescribeListenersInput{LoadBalancerArn: aws.String(lbARN)})
		if callErr != nil {
			return callErr
		}
		plaintext := 0
		for _, l := range out.Listeners {
			switch l.Protocol {
			case elbtypes.ProtocolEnumHttps, elbtypes.ProtocolEnumTls:
			default:
				plaintext++
			}
		}
		attrs["listener_count"] = len(out.Listeners)
		attrs["plaintext_listeners"] = plaintext
		return nil
	})
	if gone(err) {
		return nil, true
	}

	_ = sc.Do(ctx, "elbv2", region, "DescribeLoadBalancerAttributes", func() error {
		out, callErr := client.DescribeLoadBalancerAttributes(ctx, &elbsvc.DescribeLoadBalancerAttributesInput{LoadBalancerArn: aws.String(lbARN)})
		if callErr != nil {
			return callErr
		}
		for _, a := range out.Attributes {
			switch aws.ToString(a.Key) {
			case "access_logs.s3.enabled":
				attrs["access_logs"] = aws.ToString(a.Value) == "true"
			case "deletion_protection.enabled":
				attrs["deletion_protection"] = aws.ToString(a.Value) == "true"
			}
		}
		return nil
	})

	return attrs, false
}
