package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a JSON-RPC 2.0 request identifier. Per the spec it is either a
// JSON string or a JSON integer; equality is by variant and value, so a
// string id "1" never equals an integer id 1.
type ID struct {
	str    string
	num    int64
	isStr  bool
	isNull bool
}

// NewStringID builds a string-valued id.
func NewStringID(s string) ID {
	return ID{str: s, isStr: true}
}

// NewIntID builds an integer-valued id.
func NewIntID(n int64) ID {
	return ID{num: n}
}

// NullID represents the absence of an id (used only for error frames whose
// id could not be recovered during a parse failure).
func NullID() ID {
	return ID{isNull: true}
}

// IsNull reports whether this is the null id.
func (id ID) IsNull() bool {
	return id.isNull
}

// String renders the id for logging. It does not imply the id is string-typed.
func (id ID) String() string {
	switch {
	case id.isNull:
		return "null"
	case id.isStr:
		return id.str
	default:
		return strconv.FormatInt(id.num, 10)
	}
}

// Equal compares two ids by variant and value: a string id and a numeric id
// with the same printed form are never equal.
func (id ID) Equal(other ID) bool {
	if id.isNull || other.isNull {
		return id.isNull == other.isNull
	}
	if id.isStr != other.isStr {
		return false
	}
	if id.isStr {
		return id.str == other.str
	}
	return id.num == other.num
}

// MarshalJSON emits the id as the JSON primitive of its own kind.
func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case id.isNull:
		return []byte("null"), nil
	case id.isStr:
		return json.Marshal(id.str)
	default:
		return json.Marshal(id.num)
	}
}

// UnmarshalJSON accepts a JSON string, a JSON number, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = NullID()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = NewStringID(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = NewIntID(n)
		return nil
	}
	return fmt.Errorf("wire: id must be a string, integer, or null, got %s", string(data))
}

// idCounter assigns monotonically increasing integer-valued string ids to
// outbound requests on a single connection, reset to zero on every new
// connection.
type idCounter struct {
	next int64
}

// Next returns the next id as an integer-valued string id, starting at 1.
func (c *idCounter) Next() ID {
	c.next++
	return NewStringID(strconv.FormatInt(c.next, 10))
}

// Reset returns the counter to zero, as happens on every fresh connect.
func (c *idCounter) Reset() {
	c.next = 0
}
