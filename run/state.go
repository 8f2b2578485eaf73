package run

// State is a step of the run lifecycle.
type State string

const (
	StateInit              State = "init"
	StateWorkspaceReady    State = "workspace_ready"
	StateTrustedCacheCheck State = "trusted_cache_check"
	StateCacheHit          State = "cache_hit"
	StateCacheMiss         State = "cache_miss"
	StateExecuting         State = "executing"
	StateOutputsCollected  State = "outputs_collected"
	StatePublished         State = "published"
	StateDone              State = "done"
)
