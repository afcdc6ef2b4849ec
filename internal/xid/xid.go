package xid

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// New returns a sortable identifier, optionally namespaced by prefix.
func New(prefix string) string {
	id := strings.ToLower(ulid.Make().String())
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
