package models

import "maps"

// Document is an opaque record held in a tenant storage container.
// The container imposes no schema on Fields.
type Document struct {
	ID     string
	Fields map[string]any
}

// Clone returns a shallow copy with its own Fields map.
func (d Document) Clone() Document {
	return Document{ID: d.ID, Fields: maps.Clone(d.Fields)}
}
