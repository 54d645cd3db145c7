package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/jacentio/grove/crud"
	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/uid"
)

// DefaultBodyLimit is the request body limit used when Config.BodyLimit is zero.
const DefaultBodyLimit = 1 << 10

// Config configures an API instance.
type Config struct {
	// Name labels the instance in response meta and logs.
	// Default: "grove"
	Name string

	// UIDPrefix is prepended to every addressed fragment. It must be a valid
	// UID and must not end with a wildcard. Required.
	UIDPrefix string

	// Collection stores the documents. Required.
	Collection store.Collection

	// Middleware sources, applied in order. Each is placed ahead of what
	// earlier sources contributed.
	Middleware []Source

	// Logger receives unexpected errors. Default: slog.Default()
	Logger *slog.Logger

	// BodyLimit caps request bodies served over HTTP, in bytes.
	// Default: DefaultBodyLimit
	BodyLimit int64

	// OnError is called for every unexpected error. Default: log it.
	OnError func(ctx context.Context, c *Context, err error)

	// Clock stamps created_at and updated_at. Default: time.Now
	Clock func() time.Time
}

// API is an assembled instance. It is safe for concurrent use.
type API struct {
	name      string
	prefix    string
	chains    map[crud.Action][]Step
	logger    *slog.Logger
	onError   func(ctx context.Context, c *Context, err error)
	bodyLimit int64
	mux       *http.ServeMux
}

// New validates cfg and assembles the action chains. All configuration
// problems are reported together.
func New(cfg Config) (*API, error) {
	var result *multierror.Error

	switch {
	case cfg.UIDPrefix == "":
		result = multierror.Append(result, errors.New("uid prefix required"))
	case strings.HasSuffix(cfg.UIDPrefix, uid.Wildcard):
		result = multierror.Append(result, fmt.Errorf("uid prefix %q cannot end with %s", cfg.UIDPrefix, uid.Wildcard))
	default:
		if _, err := uid.Parse(cfg.UIDPrefix); err != nil {
			result = multierror.Append(result, fmt.Errorf("uid prefix %q: %w", cfg.UIDPrefix, err))
		}
	}
	if cfg.Collection == nil {
		result = multierror.Append(result, errors.New("collection required"))
	}
	for i, src := range cfg.Middleware {
		if src == nil {
			result = multierror.Append(result, fmt.Errorf("middleware source %d is nil", i))
			continue
		}
		if err := src.validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("middleware source %d: %w", i, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	a := &API{
		name:      cfg.Name,
		prefix:    cfg.UIDPrefix,
		logger:    cfg.Logger,
		onError:   cfg.OnError,
		bodyLimit: cfg.BodyLimit,
	}
	if a.name == "" {
		a.name = "grove"
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.onError == nil {
		a.onError = a.logError
	}
	if a.bodyLimit <= 0 {
		a.bodyLimit = DefaultBodyLimit
	}

	// Resolve
	chains := make(map[crud.Action][]Step, len(crud.Actions))
	for action, fn := range crud.Bind(cfg.Collection, crud.WithClock(cfg.Clock)) {
		chains[action] = []Step{operation(action, fn)}
	}

	// Overlay
	for _, src := range cfg.Middleware {
		src.apply(chains)
	}

	// Boundary
	Use(a.envelope, bindUID(a.prefix)).apply(chains)

	a.chains = chains
	a.mux = a.routes()
	return a, nil
}

// Name returns the instance label.
func (a *API) Name() string { return a.name }

// Prefix returns the uid prefix.
func (a *API) Prefix() string { return a.prefix }

// Stack returns a copy of the assembled chains.
func (a *API) Stack() map[crud.Action][]Step {
	out := make(map[crud.Action][]Step, len(a.chains))
	for action, steps := range a.chains {
		out[action] = append([]Step(nil), steps...)
	}
	return out
}

// Serve runs the chain for c.Action. The outcome is left in c.Envelope and
// c.StatusCode; the returned error only reports an unknown action.
func (a *API) Serve(ctx context.Context, c *Context) error {
	steps, ok := a.chains[c.Action]
	if !ok {
		return fmt.Errorf("unknown action %q", c.Action)
	}
	if c.Meta == nil {
		c.Meta = make(map[string]any)
	}
	if c.body == nil && len(c.Body) > 0 {
		c.hasBody = true
	}
	return run(ctx, steps, c)
}

func (a *API) logError(_ context.Context, c *Context, err error) {
	attrs := []any{"api", a.name, "action", c.Action}
	if !c.UID.IsZero() {
		attrs = append(attrs, "uid", c.UID.String())
	}
	a.logger.Error("request failed", append(attrs, "error", err)...)
}

// operation returns the terminal step of an action chain.
func operation(action crud.Action, fn crud.Func) Step {
	return func(ctx context.Context, c *Context, next Next) error {
		var err error
		switch action {
		case crud.Create, crud.Update:
			if c.Payload == nil {
				c.Payload, err = c.DecodeBody()
			}
		default:
			if c.Filter == nil {
				c.Filter, err = c.DecodeBody()
			}
		}
		if err != nil {
			return err
		}

		res, err := fn(ctx, c.UID, c.Payload, c.Filter)
		if err != nil {
			return err
		}
		c.Result = res
		return next(ctx)
	}
}

// bindUID derives the request UID from prefix and the addressed fragment.
func bindUID(prefix string) Step {
	return func(ctx context.Context, c *Context, next Next) error {
		id, err := uid.Parse(uid.Join(prefix, c.Fragment))
		if err != nil {
			return err
		}
		c.UID = id
		c.Meta["uid"] = id.String()
		return next(ctx)
	}
}
