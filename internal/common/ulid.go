package common

import "github.com/oklog/ulid/v2"

// NewULID returns a lexicographically sortable unique id.
func NewULID() string {
	return ulid.Make().String()
}
