// Package scheduler drains pending tasks in priority order.
//
// A run works on a snapshot of the pending tasks taken when it starts; the
// snapshot is authoritative for that run. Outcomes are written back through
// the registry, which persists after every task (per-step durability).
package scheduler
