package session

import "strings"

// Bytes is an immutable byte sequence used for keys and values.
// Ordering is byte-lexicographic. Converting from a []byte copies the data,
// so a Bytes value can be shared freely.
type Bytes string

// BytesOf copies b into a new Bytes value.
func BytesOf(b []byte) Bytes {
	return Bytes(b)
}

// Raw returns a fresh copy of the underlying bytes.
func (b Bytes) Raw() []byte {
	return []byte(b)
}

// Compare returns -1, 0 or +1 like bytes.Compare.
func (b Bytes) Compare(other Bytes) int {
	return strings.Compare(string(b), string(other))
}

func (b Bytes) Len() int {
	return len(b)
}

func (b Bytes) String() string {
	return string(b)
}
