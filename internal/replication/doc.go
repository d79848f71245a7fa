// Package replication mirrors ledger writes to secondary SQL databases.
//
// Every committed write on the primary store is rendered once per target in
// that target's SQL dialect and appended to a durable SQLite queue. A single
// worker replays due tasks against short-lived connections and retries
// failures with exponential backoff capped at one hour.
//
// Delivery is at least once per target. Ordering is best effort: tasks run in
// creation order within a pass, but a create that is still backing off can be
// overtaken by a later update of the same row. Treat the replicas as advisory
// copies, not as a consistent standby.
package replication
