package awsconn

import (
	"errors"

	"github.com/aws/smithy-go"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// API error codes grouped by how the engine must react to them.
var (
	throttlingCodes = map[string]struct{}{
		"Throttling":                             {},
		"ThrottlingException":                    {},
		"ThrottledException":                     {},
		"RequestThrottled":                       {},
		"RequestThrottledException":              {},
		"TooManyRequestsException":               {},
		"RequestLimitExceeded":                   {},
		"ProvisionedThroughputExceededException": {},
		"SlowDown":                               {},
	}

	accessDeniedCodes = map[string]struct{}{
		"AccessDenied":          {},
		"AccessDeniedException": {},
		"UnauthorizedOperation": {},
		"UnauthorizedAccess":    {},
		"NotAuthorized":         {},
		"AuthorizationError":    {},
		"Forbidden":             {},
	}

	notFoundCodes = map[string]struct{}{
		"NoSuchEntity":                {},
		"NoSuchBucket":                {},
		"NoSuchDistribution":          {},
		"NotFoundException":           {},
		"ResourceNotFoundException":   {},
		"ResourceNotFound":            {},
		"DBInstanceNotFound":          {},
		"CacheClusterNotFound":        {},
		"ClusterNotFoundException":    {},
		"RepositoryNotFoundException": {},
		"NoSuchHostedZone":            {},
		"WAFNonexistentItemException": {},
	}
)

// Classify maps an SDK error onto the engine's error taxonomy. Throttling
// that survived the retry budget becomes *models.ThrottlingError, denied
// reads become *models.PermissionDeniedError, and vanished resources become
// *models.ResourceGoneError. Anything else is returned unchanged.
func Classify(err error, service, region, operation string) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	code := apiErr.ErrorCode()
	if _, ok := throttlingCodes[code]; ok {
		return &models.ThrottlingError{Service: service, Region: region, Err: err}
	}
	if _, ok := accessDeniedCodes[code]; ok {
		return &models.PermissionDeniedError{Operation: operation, Err: err}
	}
	if _, ok := notFoundCodes[code]; ok {
		return &models.ResourceGoneError{ResourceID: operation, Err: err}
	}
	return err
}

// IsThrottling reports whether err is a throttling error after classification.
func IsThrottling(err error) bool {
	var te *models.ThrottlingError
	return errors.As(err, &te)
}

// IsPermissionDenied reports whether err is a permission failure.
func IsPermissionDenied(err error) bool {
	var pe *models.PermissionDeniedError
	return errors.As(err, &pe)
}

// IsResourceGone reports whether err means the resource vanished between
// discovery and evaluation.
func IsResourceGone(err error) bool {
	var ge *models.ResourceGoneError
	return errors.As(err, &ge)
}
