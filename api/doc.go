// Package api assembles the per-action handler chains of a grove API
// instance and serves them over HTTP.
//
// An instance is built once from a Config and never changes afterwards.
// Each of the four actions owns one chain of steps. Requests run through
// the chain in order; a step may act before and after calling next, or stop
// the chain by returning an error. Every chain starts with the same two
// steps: the envelope, which turns the outcome into a status/data/meta
// response, and the uid binding, which derives the request's UID from the
// configured prefix and the addressed fragment. Middleware supplied through
// Use and Override runs after those two and before the CRUD operation.
//
// Several instances may share one collection, each scoped by its own prefix:
//
//	users, _ := api.New(api.Config{UIDPrefix: "user:acme.users", Collection: coll})
//	mux := http.NewServeMux()
//	api.Mount(mux, "/users", users)
package api
