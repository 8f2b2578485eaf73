// Package backend executes simtool notebooks.
//
// A Backend runs one notebook in a prepared workspace and reports the exit
// code and the produced notebook. Variants:
//
//   - Process runs the notebook engine directly.
//   - LocalQueue submits the engine to the local submission queue.
//   - RemoteQueue submits a tool wrapper to a remote venue.
//   - Trusted delegates to privileged helpers that own the global cache.
//     It also implements CacheChecker.
//
// Queued variants go through a Submitter, which models the external job
// submission system as "run this command, wait, return the exit code".
//
// A non-zero exit code is not an error. Errors mean the backend could not
// run the tool at all.
package backend
