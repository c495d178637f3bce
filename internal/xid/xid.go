package xid

import "github.com/google/uuid"

// New returns a prefixed random identifier, e.g. "brk-3f0c...".
func New(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
