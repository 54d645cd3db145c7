package crud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jacentio/grove/fault"
	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/uid"
)

// Func is the shape every operation takes once bound to a collection.
// Unused arguments are ignored: create has no filter, read and delete no
// payload.
type Func func(ctx context.Context, id uid.UID, payload, filter map[string]any) (any, error)

// Option configures Ops.
type Option func(*Ops)

// WithClock sets the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(o *Ops) {
		if now != nil {
			o.now = now
		}
	}
}

// Ops runs the CRUD operations against one collection.
type Ops struct {
	coll store.Collection
	now  func() time.Time
}

// New creates Ops bound to coll.
func New(coll store.Collection, opts ...Option) *Ops {
	o := &Ops{
		coll: coll,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Create inserts a new document at id. The uid must be concrete.
func (o *Ops) Create(ctx context.Context, id uid.UID, payload map[string]any) (string, error) {
	doc, err := store.NewRecord(id, payload, o.now())
	if err != nil {
		return "", err
	}

	if err := o.coll.Insert(ctx, doc); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", fault.Duplicate(id.String(), err)
		}
		return "", fault.Store(err)
	}
	return "Created(1)", nil
}

// Read returns every document matching id and filter. The result is never nil.
func (o *Ops) Read(ctx context.Context, id uid.UID, filter map[string]any) ([]store.Document, error) {
	c, err := store.NewCriteria(id, filter)
	if err != nil {
		return nil, err
	}

	docs, err := o.coll.Find(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", id, err)
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return docs, nil
}

// Update merges payload into every document matching id and filter.
func (o *Ops) Update(ctx context.Context, id uid.UID, payload, filter map[string]any) (string, error) {
	p, err := store.NewPatch(payload, o.now())
	if err != nil {
		return "", err
	}
	c, err := store.NewCriteria(id, filter)
	if err != nil {
		return "", err
	}

	n, err := o.coll.UpdateMany(ctx, c, p)
	if err != nil {
		return "", fault.Store(err)
	}
	if n == 0 {
		return "", fault.NoSuchDocument(id.String())
	}
	return fmt.Sprintf("Updated(%d)", n), nil
}

// Delete removes every document matching id and filter.
func (o *Ops) Delete(ctx context.Context, id uid.UID, filter map[string]any) (string, error) {
	c, err := store.NewCriteria(id, filter)
	if err != nil {
		return "", err
	}

	n, err := o.coll.RemoveMany(ctx, c)
	if err != nil {
		return "", fault.Store(err)
	}
	if n == 0 {
		return "", fault.NoSuchDocument(id.String())
	}
	return fmt.Sprintf("Removed(%d)", n), nil
}

// Funcs returns the operations keyed by action.
func (o *Ops) Funcs() map[Action]Func {
	return map[Action]Func{
		Create: func(ctx context.Context, id uid.UID, payload, _ map[string]any) (any, error) {
			return o.Create(ctx, id, payload)
		},
		Read: func(ctx context.Context, id uid.UID, _, filter map[string]any) (any, error) {
			return o.Read(ctx, id, filter)
		},
		Update: func(ctx context.Context, id uid.UID, payload, filter map[string]any) (any, error) {
			return o.Update(ctx, id, payload, filter)
		},
		Delete: func(ctx context.Context, id uid.UID, _, filter map[string]any) (any, error) {
			return o.Delete(ctx, id, filter)
		},
	}
}

// Bind returns the operations bound to coll.
func Bind(coll store.Collection, opts ...Option) map[Action]Func {
	return New(coll, opts...).Funcs()
}
