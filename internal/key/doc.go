// Package key manages RFID keys and the people who hold them.
//
// A key records a physical tag identifier; key users are the humans
// permissions attach to. Both carry independent active flags, and the
// resolver requires every link in the chain (key active, key assigned,
// user active) before consulting room permissions.
package key
