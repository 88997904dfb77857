// Package resilience provides the retry and backoff engine used to pace
// supervised process restarts.
//
//	cfg := resilience.DefaultRetryConfig()
//	err := resilience.RetryFunc(ctx, cfg, func() error {
//	    return startChild()
//	})
package resilience
