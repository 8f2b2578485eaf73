// Package resilience wraps calls to remote collaborators (the artifact web
// service, object stores) with retry, a circuit breaker, a client-side rate
// limit and per-call timeouts.
//
// The patterns compose through an Executor:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 20, Burst: 5})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
//	id, err := resilience.Do(ctx, exec, func(ctx context.Context) (string, error) {
//	    return client.resolve(ctx, req)
//	})
//
// Errors wrapped with Permanent are returned at once and never retried; a
// 4xx reply from a service is the usual example.
package resilience
