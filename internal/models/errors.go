package models

import "fmt"

// CredentialError reports that the scan's credential reference could not be
// resolved or validated. It is fatal for the whole scan: no partial result
// is produced and the error propagates immediately to the caller.
type CredentialError struct {
	Ref string
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential resolution failed for %q: %v", e.Ref, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// ThrottlingError reports that an API call was throttled and the retry
// budget is exhausted. The owning scanner records it as a unit-level scan
// error; it never aborts the rest of the scan.
type ThrottlingError struct {
	Service string
	Region  string
	Err     error
}

func (e *ThrottlingError) Error() string {
	return fmt.Sprintf("throttling exceeded for %s in %s: %v", e.Service, e.Region, e.Err)
}

func (e *ThrottlingError) Unwrap() error { return e.Err }

// PermissionDeniedError reports that the scanning principal lacks permission
// for an operation. Scanners convert it into a low-confidence error-status
// finding rather than aborting: a denied read is itself a security signal.
type PermissionDeniedError struct {
	Operation string
	Err       error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied for %s: %v", e.Operation, e.Err)
}

func (e *PermissionDeniedError) Unwrap() error { return e.Err }

// ResourceGoneError reports that a resource disappeared between discovery
// and evaluation. Scanners skip it silently: no finding, no scan error.
type ResourceGoneError struct {
	ResourceID string
	Err        error
}

func (e *ResourceGoneError) Error() string {
	return fmt.Sprintf("resource %s no longer exists: %v", e.ResourceID, e.Err)
}

func (e *ResourceGoneError) Unwrap() error { return e.Err }
