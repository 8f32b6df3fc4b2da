package mux

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Reserved virtual peer identities.
const (
	BroadcastID int32 = 0 // unset target, or every peer hosted by the receiver
	DominantID  int32 = 1 // the dominant node's hosting peer and physical identity
)

// CommandChannel is the transport channel control packets travel on.
const CommandChannel = 1

// RandomID returns a positive identity above the reserved range, taken from
// the random bits of a version 4 UUID.
func RandomID() int32 {
	for {
		u := uuid.New()
		id := int32(binary.BigEndian.Uint32(u[:4]) & 0x7fffffff)
		if id > DominantID {
			return id
		}
	}
}
