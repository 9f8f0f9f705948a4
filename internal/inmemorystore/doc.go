// Package inmemorystore provides a thread-safe, in-memory implementation
// of the jobstore.Store interface. It is suitable for single-process runs,
// testing, or any scenario where job history does not need to be persisted.
package inmemorystore
