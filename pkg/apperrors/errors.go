// Package apperrors defines the typed error taxonomy used across
// my-unicorn (spec.md §7), grounded on the teacher's typed, introspectable
// errors such as manager.ErrVersionNotFound and manager.ErrAssetNotFound.
package apperrors

import "fmt"

// ValidationError signals bad input: an unknown app, a malformed URL, an
// unparseable catalog entry. Never retried; surfaced to the CLI.
type ValidationError struct {
	Target string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid target %q: %s", e.Target, e.Reason)
}

// NetworkError wraps a transient transport failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error during %s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// RateLimitError is returned when the forge responds with a rate-limit
// marker. ResetAt is advisory (best-effort) for the summary's reset-time
// advice.
type RateLimitError struct {
	Owner, Repo string
	ResetAt     string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited fetching %s/%s, resets at %s", e.Owner, e.Repo, e.ResetAt)
}

// ForgeError is any non-2xx, non-rate-limit forge response.
type ForgeError struct {
	Owner, Repo string
	StatusCode  int
	Message     string
}

func (e *ForgeError) Error() string {
	return fmt.Sprintf("forge error for %s/%s: HTTP %d: %s", e.Owner, e.Repo, e.StatusCode, e.Message)
}

// CacheIOError is never propagated past its call site: the release
// resolver drops it, without logging, and carries on.
type CacheIOError struct {
	Op  string
	Err error
}

func (e *CacheIOError) Error() string { return fmt.Sprintf("cache %s failed: %v", e.Op, e.Err) }
func (e *CacheIOError) Unwrap() error { return e.Err }

// VerificationError is raised only when every attempted verification
// method failed.
type VerificationError struct {
	App     string
	Details string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed for %s: %s", e.App, e.Details)
}

// InstallError wraps a failure in a post-download pipeline blocking step
// (move, chmod, rename).
type InstallError struct {
	App  string
	Step string
	Err  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install step %q failed for %s: %v", e.Step, e.App, e.Err)
}
func (e *InstallError) Unwrap() error { return e.Err }

// StateWriteError is an atomic-write failure on the per-app state file.
type StateWriteError struct {
	App string
	Err error
}

func (e *StateWriteError) Error() string {
	return fmt.Sprintf("failed to write state for %s: %v", e.App, e.Err)
}
func (e *StateWriteError) Unwrap() error { return e.Err }
