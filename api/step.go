package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/jacentio/grove/crud"
	"github.com/jacentio/grove/fault"
	"github.com/jacentio/grove/uid"
)

// Next continues the chain with the following step.
type Next func(ctx context.Context) error

// Step is one link of an action chain. A step decides whether and when to
// call next; returning an error ends the chain.
type Step func(ctx context.Context, c *Context, next Next) error

// Context carries one request through a chain.
type Context struct {
	Action crud.Action

	// Fragment is the addressing fragment of the request, appended to the
	// instance's uid prefix.
	Fragment string

	// UID is set by the uid binding step.
	UID uid.UID

	// Payload and Filter are decoded from the body when the operation
	// needs them. A step may set them beforehand to bypass the body.
	Payload map[string]any
	Filter  map[string]any

	// Body is the raw request body. ContentType is its media type.
	Body        []byte
	ContentType string

	// Meta is echoed in the response envelope.
	Meta map[string]any

	// Result is what the operation produced.
	Result any

	// Request is the originating HTTP request, if any.
	Request *http.Request

	// Envelope and StatusCode are set by the envelope step.
	Envelope   *Envelope
	StatusCode int

	body    io.Reader
	hasBody bool
	decoded bool
}

// NewContext returns a context for calling an instance directly, without HTTP.
func NewContext(action crud.Action, fragment string, body []byte) *Context {
	c := &Context{
		Action:   action,
		Fragment: fragment,
		Body:     body,
		hasBody:  len(body) > 0,
	}
	if c.hasBody {
		c.ContentType = "application/json"
	}
	return c
}

// HasBody reports whether the request came with a body.
func (c *Context) HasBody() bool { return c.hasBody }

// DecodeBody reads the body once and decodes it as a JSON object.
// An absent or null body decodes as an empty object.
func (c *Context) DecodeBody() (map[string]any, error) {
	if !c.decoded && c.body != nil {
		data, err := io.ReadAll(c.body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, fault.Validationf("Request entity too large (limit %d bytes)", tooLarge.Limit)
			}
			return nil, fmt.Errorf("read body: %w", err)
		}
		c.Body = data
	}
	c.decoded = true

	obj := map[string]any{}
	if len(bytes.TrimSpace(c.Body)) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(c.Body, &obj); err != nil {
		return nil, fault.Validationf("Invalid JSON body: %v", err)
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

// Source is a middleware source: steps for every action (Use) or for
// selected actions (Override).
type Source interface {
	apply(chains map[crud.Action][]Step)
	validate() error
}

type shared []Step

// Use returns a source that places steps ahead of every action chain.
func Use(steps ...Step) Source {
	return shared(steps)
}

func (s shared) validate() error {
	for i, step := range s {
		if step == nil {
			return fmt.Errorf("middleware step %d is nil", i)
		}
	}
	return nil
}

func (s shared) apply(chains map[crud.Action][]Step) {
	for _, a := range crud.Actions {
		chains[a] = prepend(chains[a], s)
	}
}

type override map[string][]Step

// Override returns a source that places steps ahead of the named action
// chains only. Keys must be action names.
func Override(steps map[string][]Step) Source {
	return override(steps)
}

func (o override) validate() error {
	keys := make([]string, 0, len(o))
	for key := range o {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		steps := o[key]
		if _, err := crud.ParseAction(key); err != nil {
			return fmt.Errorf("unknown handler %q", key)
		}
		for i, step := range steps {
			if step == nil {
				return fmt.Errorf("%s step %d is nil", key, i)
			}
		}
	}
	return nil
}

func (o override) apply(chains map[crud.Action][]Step) {
	for key, steps := range o {
		a := crud.Action(key)
		chains[a] = prepend(chains[a], steps)
	}
}

func prepend(chain, steps []Step) []Step {
	out := make([]Step, 0, len(steps)+len(chain))
	out = append(out, steps...)
	return append(out, chain...)
}

// run executes steps in order against c.
func run(ctx context.Context, steps []Step, c *Context) error {
	var call func(i int) Next
	call = func(i int) Next {
		return func(ctx context.Context) error {
			if i == len(steps) {
				return nil
			}
			return steps[i](ctx, c, call(i+1))
		}
	}
	return call(0)(ctx)
}
