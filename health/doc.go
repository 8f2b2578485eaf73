// Package health reports whether the stores a simtool run depends on are
// usable.
//
// A Checker reports one component: the local cache root, the remote artifact
// service, or the object store bucket. An Aggregator runs its checkers under
// a shared timeout and folds them into a Report, which the CLI prints as JSON.
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewDirChecker("cache-root", root))
//	agg.Register(health.NewHTTPChecker("remote", baseURL+"/squidid", client))
//	report := agg.Run(ctx)
//	_ = report.WriteJSON(os.Stdout)
//
// Status ordering is Healthy < Degraded < Unhealthy; a report takes the worst
// status of its checks.
package health
