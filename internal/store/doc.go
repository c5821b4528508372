// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the file ingestion pipeline and the task engine, so the core logic stays
// independent of specific database technologies or persistence details.
package store
