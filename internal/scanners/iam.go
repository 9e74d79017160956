package scanners

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/cloudrecon-labs/posturescan/internal/arn"
	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/checks"
	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// maxAccessKeyAgeDays is the rotation window after which an active access
// key is considered stale.
const maxAccessKeyAgeDays = 90

// iamAPIClient is the narrow IAM interface used by the IAM scanner. It
// embeds ListUsersAPIClient so the SDK paginator can be used directly.
type iamAPIClient interface {
	iamsvc.ListUsersAPIClient
	ListMFADevices(ctx context.Context, params *iamsvc.ListMFADevicesInput, optFns ...func(*iamsvc.Options)) (*iamsvc.ListMFADevicesOutput, error)
	GetLoginProfile(ctx context.Context, params *iamsvc.GetLoginProfileInput, optFns ...func(*iamsvc.Options)) (*iamsvc.GetLoginProfileOutput, error)
	ListAccessKeys(ctx context.Context, params *iamsvc.ListAccessKeysInput, optFns ...func(*iamsvc.Options)) (*iamsvc.ListAccessKeysOutput, error)
	GetAccountSummary(ctx context.Context, params *iamsvc.GetAccountSummaryInput, optFns ...func(*iamsvc.Options)) (*iamsvc.GetAccountSummaryOutput, error)
	GetAccountPasswordPolicy(ctx context.Context, params *iamsvc.GetAccountPasswordPolicyInput, optFns ...func(*iamsvc.Options)) (*iamsvc.GetAccountPasswordPolicyOutput, error)
}

// IAMScanner audits identity posture: root account hygiene, per-user MFA
// and access-key rotation, and the account password policy. IAM is global.
type IAMScanner struct {
	newClient func(aws.Config) iamAPIClient
}

func init() {
	Register("iam", func() Scanner {
		return &IAMScanner{newClient: func(cfg aws.Config) iamAPIClient { return iamsvc.NewFromConfig(cfg) }}
	})
}

// NewIAMScannerWithClient returns an IAMScanner using f to build its client.
func NewIAMScannerWithClient(f func(aws.Config) iamAPIClient) *IAMScanner {
	return &IAMScanner{newClient: f}
}

func (s *IAMScanner) Service() string            { return "iam" }
func (s *IAMScanner) MinLevel() models.ScanLevel { return models.LevelBasic }
func (s *IAMScanner) Global() bool               { return true }

var iamBattery = []checks.Check{
	{
		ID:       "iam_root_mfa_enabled",
		Title:    "Root account has MFA enabled",
		Kind:     models.KindRootAccount,
		Severity: models.SeverityCritical,
		MinLevel: models.LevelBasic,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("mfa_enabled") {
				return checks.Fail("root account has no MFA device", nil)
			}
			return checks.Pass("root MFA enabled", nil)
		},
	},
	{
		ID:       "iam_root_no_access_keys",
		Title:    "Root account has no access keys",
		Kind:     models.KindRootAccount,
		Severity: models.SeverityCritical,
		MinLevel: models.LevelBasic,
		Evaluate: func(r *models.Resource) checks.Result {
			if n := r.IntAttr("access_keys"); n > 0 {
				return checks.Fail("root account has active access keys", map[string]any{
					"access_keys": n,
				})
			}
			return checks.Pass("no root access keys", nil)
		},
	},
	{
		ID:       "iam_user_mfa_enabled",
		Title:    "IAM user with console access has MFA",
		Kind:     models.KindIAMUser,
		Severity: models.SeverityHigh,
		MinLevel: models.LevelBasic,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("console_access") {
				return checks.NotApplicable("user has no console access")
			}
			if !r.BoolAttr("mfa_enabled") {
				return checks.Fail("console user has no MFA device", nil)
			}
			return checks.Pass("MFA enabled", nil)
		},
	},
	{
		ID:       "iam_user_access_key_rotation",
		Title:    "IAM user access keys are rotated",
		Kind:     models.KindIAMUser,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			age := r.IntAttr("oldest_key_age_days")
			if age == 0 && !r.BoolAttr("has_access_keys") {
				return checks.NotApplicable("user has no access keys")
			}
			if age > maxAccessKeyAgeDays {
				return checks.Fail("access key exceeds rotation window", map[string]any{
					"oldest_key_age_days": age,
					"max_age_days":        maxAccessKeyAgeDays,
				})
			}
			return checks.Pass("access keys within rotation window", map[string]any{
				"oldest_key_age_days": age,
			})
		},
	},
	{
		ID:       "iam_password_policy_strength",
		Title:    "Account password policy meets minimum strength",
		Kind:     models.KindIAMPasswordPolicy,
		Severity: models.SeverityMedium,
		MinLevel: models.LevelStandard,
		Evaluate: func(r *models.Resource) checks.Result {
			if !r.BoolAttr("exists") {
				return checks.Fail("no account password policy configured", nil)
			}
			minLen := r.IntAttr("min_length")
			if minLen < 14 || !r.BoolAttr("require_symbols") || !r.BoolAttr("require_numbers") {
				return checks.Fail("password policy below recommended strength", map[string]any{
					"min_length":      minLen,
					"require_symbols": r.BoolAttr("require_symbols"),
					"require_numbers": r.BoolAttr("require_numbers"),
				})
			}
			return checks.Pass("password policy meets minimum strength", map[string]any{
				"min_length": minLen,
			})
		},
	},
}

// Scan implements Scanner.
func (s *IAMScanner) Scan(ctx context.Context, sc *Context, region string) ([]models.Finding, error) {
	client := sc.Clients.Client("iam", apiRegion(region), func(cfg aws.Config) any { return s.newClient(cfg) }).(iamAPIClient)

	var all []*models.Resource

	users, err := sc.Cache.GetOrFetchList(ctx, models.KindIAMUser, "iam:users", func(ctx context.Context) ([]*models.Resource, error) {
		return s.discoverUsers(ctx, sc, client, region)
	})
	if err != nil {
		return handleDiscoveryError(sc, iamBattery, region, err)
	}
	all = append(all, users...)

	root, err := sc.Cache.GetOrFetch(ctx, models.KindRootAccount, "iam:root", func(ctx context.Context) (*models.Resource, error) {
		return s.discoverRoot(ctx, sc, client, region)
	})
	if err == nil {
		all = append(all, root)
	}

	pwPolicy, err := sc.Cache.GetOrFetch(ctx, models.KindIAMPasswordPolicy, "iam:password-policy", func(ctx context.Context) (*models.Resource, error) {
		return s.discoverPasswordPolicy(ctx, sc, client, region)
	})
	if err == nil {
		all = append(all, pwPolicy)
	}

	return evaluate(ctx, sc, iamBattery, all), nil
}

// discoverUsers pages through every IAM user and snapshots MFA, console
// access, and access-key age. Per-user read failures degrade to
// conservative attribute values.
func (s *IAMScanner) discoverUsers(ctx context.Context, sc *Context, client iamAPIClient, region string) ([]*models.Resource, error) {
	var resources []*models.Resource

	paginator := iamsvc.NewListUsersPaginator(client, &iamsvc.ListUsersInput{})
	for paginator.HasMorePages() {
		if err := sc.Clients.Wait(ctx); err != nil {
			return resources, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return resources, awsconn.Classify(err, "iam", region, "ListUsers")
		}

		for _, u := range page.Users {
			name := aws.ToString(u.UserName)
			attrs := map[string]any{}

			_ = sc.Do(ctx, "iam", region, "ListMFADevices", func() error {
				out, callErr := client.ListMFADevices(ctx, &iamsvc.ListMFADevicesInput{UserName: aws.String(name)})
				if callErr != nil {
					return callErr
				}
				attrs["mfa_enabled"] = len(out.MFADevices) > 0
				return nil
			})

			_ = sc.Do(ctx, "iam", region, "GetLoginProfile", func() error {
				_, callErr := client.GetLoginProfile(ctx, &iamsvc.GetLoginProfileInput{UserName: aws.String(name)})
				// NoSuchEntity means no console password.
				attrs["console_access"] = callErr == nil
				return nil
			})

			_ = sc.Do(ctx, "iam", region, "ListAccessKeys", func() error {
				out, callErr := client.ListAccessKeys(ctx, &iamsvc.ListAccessKeysInput{UserName: aws.String(name)})
				if callErr != nil {
					return callErr
				}
				attrs["has_access_keys"] = len(out.AccessKeyMetadata) > 0
				oldest := 0
				for _, k := range out.AccessKeyMetadata {
					if k.CreateDate == nil {
						continue
					}
					age := int(time.Since(*k.CreateDate).Hours() / 24)
					if age > oldest {
						oldest = age
					}
				}
				attrs["oldest_key_age_days"] = oldest
				return nil
			})

			resources = append(resources, &models.Resource{
				Kind:         models.KindIAMUser,
				ID:           arn.IAMUser(sc.Partition(), sc.AccountID(), name),
				Name:         name,
				Region:       GlobalRegion,
				Attrs:        attrs,
				DiscoveredAt: time.Now().UTC(),
			})
		}
	}
	return resources, nil
}

// discoverRoot reads the account summary for root MFA and access-key state.
func (s *IAMScanner) discoverRoot(ctx context.Context, sc *Context, client iamAPIClient, region string) (*models.Resource, error) {
	var summary map[string]int32
	err := sc.Do(ctx, "iam", region, "GetAccountSummary", func() error {
		out, callErr := client.GetAccountSummary(ctx, &iamsvc.GetAccountSummaryInput{})
		if callErr != nil {
			return callErr
		}
		summary = out.SummaryMap
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.Resource{
		Kind:   models.KindRootAccount,
		ID:     arn.IAMRoot(sc.Partition(), sc.AccountID()),
		Name:   "root",
		Region: GlobalRegion,
		Attrs: map[string]any{
			"mfa_enabled": summary["AccountMFAEnabled"] == 1,
			"access_keys": int(summary["AccountAccessKeysPresent"]),
		},
		DiscoveredAt: time.Now().UTC(),
	}, nil
}

// discoverPasswordPolicy snapshots the account password policy. A missing
// policy is a real state the strength check must see, so it is modelled as
// exists=false rather than an error.
func (s *IAMScanner) discoverPasswordPolicy(ctx context.Context, sc *Context, client iamAPIClient, region string) (*models.Resource, error) {
	attrs := map[string]any{"exists": false}

	err := sc.Do(ctx, "iam", region, "GetAccountPasswordPolicy", func() error {
		out, callErr := client.GetAccountPasswordPolicy(ctx, &iamsvc.GetAccountPasswordPolicyInput{})
		if callErr != nil {
			return callErr
		}
		if p := out.PasswordPolicy; p != nil {
			attrs["exists"] = true
			attrs["min_length"] = int(aws.ToInt32(p.MinimumPasswordLength))
			attrs["require_symbols"] = p.RequireSymbols
			attrs["require_numbers"] = p.RequireNumbers
		}
		return nil
	})
	// NoSuchEntity means no policy is configured; exists stays false.
	if err != nil && !gone(err) {
		return nil, err
	}

	return &models.Resource{
		Kind:         models.KindIAMPasswordPolicy,
		ID:           arn.IAMPasswordPolicy(sc.Partition(), sc.AccountID()),
		Name:         "account-password-policy",
		Region:       GlobalRegion,
		Attrs:        attrs,
		DiscoveredAt: time.Now().UTC(),
	}, nil
}
