// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package.
// It handles the details of query execution, error mapping and the embedded
// goose migrations that define the files and tasks tables.
package postgres
