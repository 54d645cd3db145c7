package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jacentio/grove/crud"
)

func (a *API) routes() *http.ServeMux {
	mux := http.NewServeMux()
	// GET also serves HEAD.
	mux.HandleFunc("GET /{uid...}", a.handle(crud.Read))
	mux.HandleFunc("POST /{uid...}", a.handle(crud.Create))
	mux.HandleFunc("PUT /{uid...}", a.handle(crud.Update))
	mux.HandleFunc("DELETE /{uid...}", a.handle(crud.Delete))
	return mux
}

// ServeHTTP serves the instance. The first path segment is the addressed
// fragment: GET and HEAD read, POST creates, PUT updates, DELETE deletes.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) handle(action crud.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := &Context{
			Action:      action,
			Fragment:    r.PathValue("uid"),
			ContentType: r.Header.Get("Content-Type"),
			Request:     r,
			Meta:        make(map[string]any),
			hasBody:     r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody,
		}
		if c.hasBody {
			c.body = http.MaxBytesReader(w, r.Body, a.bodyLimit)
		}

		// The action is always known here.
		_ = a.Serve(r.Context(), c)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(c.StatusCode)
		if r.Method == http.MethodHead {
			return
		}
		if err := json.NewEncoder(w).Encode(c.Envelope); err != nil {
			a.logger.Warn("failed to write response", "api", a.name, "error", err)
		}
	}
}

// Mount serves h under path on mux. Requests reach h with path stripped,
// so several instances can share one server.
func Mount(mux *http.ServeMux, path string, h http.Handler) {
	path = "/" + strings.Trim(path, "/")
	if path == "/" {
		mux.Handle("/", h)
		return
	}
	mux.Handle(path+"/", http.StripPrefix(path, h))
}
