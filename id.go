package chronos

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
)

// ProjectID scopes entities, spacetimes and facts. Projects are named by their
// callers (e.g. "default-project"); the store never generates them.
type ProjectID string

// EntityID identifies a single entity of a project. Spacetimes are entities
// too, so they share this identifier space.
//
// Identifiers are random (version 4) UUIDs generated by the store. They are
// stable and never reused. The zero EntityID means "no entity" and is used for
// absent parent references.
type EntityID uuid.UUID

// NewEntityID returns a fresh, random EntityID.
func NewEntityID() EntityID {
	return EntityID(uuid.New())
}

// ParseEntityID decodes the canonical text form returned by EntityID.String.
func ParseEntityID(s string) (EntityID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EntityID{}, fmt.Errorf("parse entity id: %w", err)
	}
	return EntityID(u), nil
}

// MustParseEntityID is like ParseEntityID but panics if s cannot be parsed.
func MustParseEntityID(s string) EntityID {
	id, err := ParseEntityID(s)
	if err != nil {
		panic(fmt.Sprintf("chronos: %v", err))
	}
	return id
}

func (id EntityID) String() string { return uuid.UUID(id).String() }
func (id EntityID) IsZero() bool   { return id == EntityID{} }

func (id EntityID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *EntityID) UnmarshalText(text []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(text)
}

// Tick is a moment in game time. Ticks are totally ordered; the store assigns
// no unit to them.
type Tick int64

// Forever is the latest representable Tick. It is the horizon of a spacetime
// whose own history is entirely visible.
const Forever Tick = math.MaxInt64

// FactID is a consistent hash (i.e., content address) over the key of a fact:
// its entity, spacetime, attribute and ValidFrom tick.
//
// Two facts with the same FactID assign the same attribute of the same entity
// in the same spacetime at the same moment, which the fact log forbids. Using
// the hash as the identity makes that invariant a primary-key constraint in
// every engine.
type FactID [sha1.Size]byte

// ComputeFactID returns the content address of the given fact key.
func ComputeFactID(entity, spacetime EntityID, attribute string, validFrom Tick) FactID {
	h := sha1.New()
	h.Write(entity[:])
	h.Write(spacetime[:])
	// Length-prefix the attribute so that no two (attribute, tick) pairs share
	// the same byte stream.
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(attribute)))
	h.Write(buf[:n])
	h.Write([]byte(attribute))
	_ = binary.Write(h, binary.BigEndian, int64(validFrom))
	return FactID(h.Sum(nil))
}

func (id FactID) MarshalText() ([]byte, error) {
	text := make([]byte, hex.EncodedLen(len(id)))
	hex.Encode(text, id[:])
	return text, nil
}

func (id *FactID) UnmarshalText(text []byte) error {
	if len(text) > hex.EncodedLen(len(id)) {
		return fmt.Errorf("fact id too long: %d bytes", len(text))
	}
	n, err := hex.Decode(id[:], text)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	if n != len(id) { // always n <= len(id) (see hex.Decode)
		return fmt.Errorf("not enough bytes: %w", io.ErrUnexpectedEOF)
	}
	return nil
}

func (id FactID) String() string { return "fact(" + hex.EncodeToString(id[:]) + ")" }
func (id FactID) IsZero() bool   { return id == FactID{} }
