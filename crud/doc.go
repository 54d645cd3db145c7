// Package crud implements the create, read, update and delete operations
// over a store.Collection.
//
// Every operation is addressed by a uid.UID. Reads, updates and deletes
// accept wildcard UIDs and an optional equality filter, so one call may
// touch many documents:
//
//	ops := crud.New(coll)
//	res, err := ops.Update(ctx, uid.MustParse("product:acme.shop.food*"),
//		map[string]any{"packaging": "tetra-pack"}, nil)
//	// res == "Updated(2)"
//
// Errors are classified with the fault package: malformed input and
// store-reported write failures are validation errors, a duplicate uid is a
// conflict, and an update or delete that matches nothing is not-found.
package crud
