// Package authz resolves bitmask permissions stored in the <type>_permissions
// tables. A grant row names either a user or a role, an optional resource id
// (NULL applies to every instance of the type) and a set of operations.
package authz

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operations is a set of CRUD flags. Only the low four bits are meaningful;
// the value is persisted as BIT(16).
type Operations uint16

const (
	Create Operations = 1 << iota
	Read
	Update
	Delete

	// All is every defined operation.
	All = Create | Read | Update | Delete

	// Owner is what an instance grant to a resource's creator confers.
	// Create and delete are only ever checked type-wide.
	Owner = Read | Update
)

// NewOperations packs four flags into an Operations value.
func NewOperations(create, read, update, delete bool) Operations {
	var ops Operations
	if create {
		ops |= Create
	}
	if read {
		ops |= Read
	}
	if update {
		ops |= Update
	}
	if delete {
		ops |= Delete
	}
	return ops
}

func (o Operations) CanCreate() bool { return o&Create != 0 }
func (o Operations) CanRead() bool   { return o&Read != 0 }
func (o Operations) CanUpdate() bool { return o&Update != 0 }
func (o Operations) CanDelete() bool { return o&Delete != 0 }

// Intersects reports whether o and other share at least one operation.
func (o Operations) Intersects(other Operations) bool { return o&other != 0 }

// Contains reports whether every operation in other is also in o.
func (o Operations) Contains(other Operations) bool { return o&other == other }

// Union returns the operations present in either set.
func (o Operations) Union(other Operations) Operations { return o | other }

// Valid reports whether o is non-empty and uses only defined bits.
func (o Operations) Valid() bool { return o != 0 && o&^All == 0 }

// String renders the set as CRUD letters, "-" for missing operations.
func (o Operations) String() string {
	var b strings.Builder
	for _, op := range []struct {
		bit    Operations
		letter byte
	}{{Create, 'C'}, {Read, 'R'}, {Update, 'U'}, {Delete, 'D'}} {
		if o&op.bit != 0 {
			b.WriteByte(op.letter)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// param is the value bound to the $2::int::bit(16) placeholder.
func (o Operations) param() int32 { return int32(o) }

// UnmarshalJSON accepts the integer form and rejects undefined bits.
func (o *Operations) UnmarshalJSON(data []byte) error {
	var raw int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("authz: operations must be an integer: %w", err)
	}
	if raw < 0 || raw > int(All) {
		return fmt.Errorf("authz: operations %d outside 0..%d", raw, All)
	}
	*o = Operations(raw)
	return nil
}
