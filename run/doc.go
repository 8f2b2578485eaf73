// Package run dispatches simtool executions through the result cache.
//
// A Dispatcher drives one run through its states:
//
//	Init -> WorkspaceReady -> [TrustedCacheCheck] -> CacheHit | CacheMiss
//	CacheMiss -> Executing -> OutputsCollected -> [Published] -> Done
//	CacheHit -> OutputsCollected -> Done
//
// Untrusted runs consult the injected artifact.Store: a hit materializes the
// cached entry into the workspace and skips execution; a miss executes the
// tool and publishes the workspace files plus the tool's saved output files.
// Trusted runs skip the store and ask the backend's privileged cache
// channel instead.
//
// Output reconciliation is advisory. Missing and extra outputs are logged
// as warnings and never fail the run.
package run
