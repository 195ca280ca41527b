// Package stores provides the local persistence layer for envforge.
// It includes the JSON-file record stores for projects and feature
// environments, in-memory variants for tests, and a SQLite-backed
// append-only audit log of orchestration operations.
package stores
