// Package yuuid provides the 16-byte identity type used to distinguish
// Branches on the network (spec §3 "UUID").
package yuuid

import (
	"bytes"

	"github.com/google/uuid"
)

// UUID identifies a Branch. Equality defines peer identity; byte order
// defines the discovery tie-break (spec §4.I).
type UUID [16]byte

// New returns a randomly chosen UUID, nonzero and globally unique with
// overwhelming probability.
func New() UUID {
	var u UUID
	g := uuid.New()
	copy(u[:], g[:])
	return u
}

// Nil is the zero UUID. A real Branch never has this identity.
var Nil UUID

// IsNil reports whether u is the zero UUID.
func (u UUID) IsNil() bool {
	return u == Nil
}

// Compare returns -1, 0, or 1 as u is less than, equal to, or greater than
// other, using plain byte-order comparison. The connection manager uses
// this to decide which side of a discovered pair initiates the connect
// (spec §4.I: "Discovery triggers an outgoing TCP connect for UUIDs
// strictly greater than ours").
func (u UUID) Compare(other UUID) int {
	return bytes.Compare(u[:], other[:])
}

// String returns the canonical hyphenated hex representation.
func (u UUID) String() string {
	return uuid.UUID(u).String()
}

// Bytes returns the 16 raw bytes.
func (u UUID) Bytes() []byte {
	return u[:]
}

// FromBytes parses a 16-byte slice into a UUID.
func FromBytes(b []byte) (UUID, error) {
	var u UUID
	parsed, err := uuid.FromBytes(b)
	if err != nil {
		return u, err
	}
	copy(u[:], parsed[:])
	return u, nil
}

// Parse parses the canonical string representation into a UUID.
func Parse(s string) (UUID, error) {
	var u UUID
	parsed, err := uuid.Parse(s)
	if err != nil {
		return u, err
	}
	copy(u[:], parsed[:])
	return u, nil
}
