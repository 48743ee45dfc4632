// Package storage persists the task collection.
//
// It currently supports:
//   - "file": a single JSON document rewritten atomically (tmp + rename)
//   - "sqlite": one table holding the collection in insertion order
//
// Every backend also provides an exclusive advisory lock so that a
// load-mutate-save cycle is never interleaved with another invocation.
package storage
