// Package domain contains the core business entities of the file vault:
// uploaded file records, background task records and their lifecycle rules.
// It is independent of any specific storage, transport or delivery mechanism.
package domain
