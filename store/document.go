package store

import (
	"context"
)

// Record field names.
const (
	FieldUID       = "uid"
	FieldKlass     = "klass"
	FieldPath      = "path"
	FieldRealm     = "realm"
	FieldAppID     = "app_id"
	FieldOID       = "oid"
	FieldDocument  = "document"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Document is a stored record.
type Document map[string]any

// UID returns the document's uid field, or "" if it has none.
func (d Document) UID() string {
	s, _ := d[FieldUID].(string)
	return s
}

// Patch maps dotted paths to the leaf values they should be set to.
type Patch map[string]any

// Collection is the storage handle the CRUD operations run against.
// Implementations enforce uniqueness of the uid field.
type Collection interface {
	// Insert stores a new document. It returns ErrAlreadyExists when a
	// document with the same uid exists.
	Insert(ctx context.Context, doc Document) error

	// Find returns the documents matching c, in storage order.
	Find(ctx context.Context, c Criteria) ([]Document, error)

	// UpdateMany applies p to every document matching c and returns how many
	// were modified. It never inserts.
	UpdateMany(ctx context.Context, c Criteria, p Patch) (int, error)

	// RemoveMany deletes every document matching c and returns how many were
	// removed.
	RemoveMany(ctx context.Context, c Criteria) (int, error)
}
