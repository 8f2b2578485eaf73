// Package config loads simrun configuration and wires the runtime.
//
// Configuration comes from an optional YAML file, then SIMRUN_* environment
// variables override it. Credential fields may hold ${VAR} references or
// secretref:<provider>:<ref> values, resolved by ResolveSecrets before the
// runtime is built.
//
// Build turns a validated Config into a Runtime: the observer, the artifact
// store with its transport stack, the execution backends, the run
// dispatcher and the health checks.
package config
