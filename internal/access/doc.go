// Package access resolves scans into grant or deny decisions.
//
// Policy is the permission table alone: a key user may enter a room if
// and only if a permission row links them. The resolver layers the
// entity checks (key registered, key active, key assigned, user active,
// node known, node assigned) in front of that lookup, producing a
// distinct status code for each failure so the ledger explains every
// denial.
package access
