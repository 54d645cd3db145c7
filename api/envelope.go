package api

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jacentio/grove/fault"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Envelope is the response body of every request.
type Envelope struct {
	Status string         `json:"status"`
	Data   any            `json:"data"`
	Meta   map[string]any `json:"meta"`
}

// envelope runs the rest of the chain and wraps its outcome. Client errors
// become "fail", everything else "error" and is handed to OnError.
func (a *API) envelope(ctx context.Context, c *Context, next Next) (err error) {
	c.Meta["request_id"] = uuid.NewString()
	c.Meta["api"] = a.name

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		a.wrap(ctx, c, err)
		err = nil
	}()

	if c.HasBody() && !isJSON(c.ContentType) {
		return fault.Validationf("Only application/json accepted")
	}
	return next(ctx)
}

func (a *API) wrap(ctx context.Context, c *Context, err error) {
	if err == nil {
		c.StatusCode = http.StatusOK
		c.Envelope = &Envelope{Status: StatusSuccess, Data: c.Result, Meta: c.Meta}
		return
	}

	kind := fault.KindOf(err)
	if kind == fault.Unexpected {
		a.onError(ctx, c, err)
	}
	c.StatusCode = kind.HTTPStatus()
	c.Envelope = &Envelope{Status: kind.Status(), Data: fault.Payload(err), Meta: c.Meta}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
