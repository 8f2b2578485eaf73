// Package artifact stores and materializes the results of simtool runs.
//
// A Store maps a cache key to an immutable entry: a set of files published
// from a run workspace. Three implementations share the contract:
//
//   - LocalStore keeps entries under a shared filesystem root and
//     materializes them as symlink trees.
//   - RemoteStore talks to the artifact web service, which identifies
//     entries by a signature id.
//   - ObjectStore keeps entries in an S3-compatible bucket.
//
// Read paths never fail a run. Stat and Read report Hit, Miss or
// Unavailable, and callers treat Unavailable as a miss. Write failures are
// returned, because an entry that silently failed to publish would look
// cached on the next run.
//
// Entries are write-once. A second Write for the same Ref fails with
// ErrPublishConflict (local and object stores) rather than overwriting.
package artifact
