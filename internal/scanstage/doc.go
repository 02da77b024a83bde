// Package scanstage holds the most recent card scan per node in memory.
//
// The admin UI polls this cache during key enrollment: the operator taps
// a card at a door, the gateway stages it here, and the UI picks up the
// card id without any direct path from hardware to browser. Access-check
// scans are staged too, but only briefly, as a live diagnostic.
package scanstage
