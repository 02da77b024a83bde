// Package room manages the rooms that door nodes guard.
//
// Rooms are the unit of access control: permissions link key users to rooms,
// and a node admits a card holder when its assigned room appears in the
// holder's permission set. Deleting a room detaches its nodes rather than
// removing them, so hardware survives reorganisation.
package room
