// Package retry retries model calls with exponential backoff. Errors are
// retried only when the policy classifies them as retryable, which by default
// means a *types.Error with Retryable set.
package retry
