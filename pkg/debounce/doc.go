// Package debounce implements the per-resource cooldown ledger that rate
// limits remediation. MemoryStore keeps the ledger in process; BoltStore
// persists it so cooldowns survive a controller restart.
package debounce
