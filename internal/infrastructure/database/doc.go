// Package database manages the SQLite connection for Keylock Core.
//
// It provides connection lifecycle management (WAL mode, busy timeout,
// restrictive file permissions), health checks, and an embedded-migration
// runner. The migrations package registers its embedded SQL files via
// MigrationsFS at init time so the binary is self-contained.
//
// SQLite is the system of record for nodes, rooms, keys, key users,
// room permissions, and the access ledger. The connection pool is pinned
// to a single connection to match SQLite's single-writer model.
package database
