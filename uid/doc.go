// Package uid parses and matches structured resource identifiers.
//
// A UID has the form
//
//	class:path($oid)?
//
// where path is a dot-separated namespace whose first two segments are the
// realm and the application id, and oid is an optional numeric object id:
//
//	product:acmecorp.acmeapp.food$111
//
// Any position may hold a "*" wildcard. Wildcard UIDs address several
// documents at once; [CompileMatch] turns them into an anchored pattern
// evaluated against the stored uid string:
//
//	p := uid.CompileMatch("product:acmecorp.acmeapp.food*")
//	p.MatchString("product:acmecorp.acmeapp.food$111") // true
//
// # Errors
//
// [Parse] reports malformed identifiers as fault.Validation errors with a
// structured detail naming the offending part (uid, path or oid).
package uid
