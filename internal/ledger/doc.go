// Package ledger is the append-only record of access attempts.
//
// Every scan that reaches the resolver lands here, granted or denied,
// including scans of tags the system has never seen. Entries are never
// updated or deleted, and recording failures never block the door: the
// gateway treats the ledger as best-effort relative to publishing the
// decision.
package ledger
