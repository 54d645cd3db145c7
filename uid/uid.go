package uid

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jacentio/grove/fault"
)

// Wildcard matches any run of characters at its position.
const Wildcard = "*"

var pathRegexp = regexp.MustCompile(`^[a-z_*][a-z0-9_*]*(\.[a-z_*][a-z0-9_*]*)*$`)

// UID is a parsed identifier. The zero value is not a valid UID.
type UID struct {
	raw    string
	klass  string
	path   string
	realm  string
	appID  string
	oid    int64
	hasOID bool
}

// Parse parses s as class:path($oid)?.
//
// The oid is set only when the text after "$" is a plain decimal number;
// any other text (typically "*") leaves it absent so the UID can address
// several objects. Decimal text with a leading zero ("$007") or beyond
// int64 is rejected, so String always equals klass:path$oid rebuilt from
// the parsed parts.
func Parse(s string) (UID, error) {
	colon := strings.IndexByte(s, ':')
	if colon <= 0 {
		return UID{}, fault.Invalid("uid", s)
	}

	id := UID{raw: s, klass: s[:colon]}
	if strings.ContainsAny(id.klass, ".$") {
		return UID{}, fault.Invalid("uid", s)
	}

	rest := s[colon+1:]
	oidText, hasDollar := "", false
	if i := strings.IndexByte(rest, '$'); i >= 0 {
		rest, oidText, hasDollar = rest[:i], rest[i+1:], true
	}
	if hasDollar && oidText == "" {
		return UID{}, fault.Invalid("uid", s)
	}
	if !pathRegexp.MatchString(rest) {
		return UID{}, fault.Invalid("path", rest)
	}
	id.path = rest

	segments := strings.Split(rest, ".")
	id.realm = segments[0]
	if len(segments) > 1 {
		id.appID = segments[1]
	}

	if isDigits(oidText) {
		if len(oidText) > 1 && oidText[0] == '0' {
			return UID{}, fault.Invalid("oid", oidText)
		}
		n, err := strconv.ParseInt(oidText, 10, 64)
		if err != nil {
			return UID{}, fault.Invalid("oid", oidText)
		}
		id.oid, id.hasOID = n, true
	}

	return id, nil
}

// MustParse is like Parse but panics on error. It is meant for constants in
// tests and setup code.
func MustParse(s string) UID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Join combines a configured prefix with the addressing fragment of a request.
// Fragments starting with "$" or "*" are appended as-is, anything else is
// treated as a further path segment.
func Join(prefix, fragment string) string {
	switch {
	case fragment == "":
		return prefix
	case fragment[0] == '$' || fragment[0] == '*':
		return prefix + fragment
	default:
		return prefix + "." + fragment
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String returns the identifier exactly as it was parsed.
func (u UID) String() string { return u.raw }

// Klass returns the resource class.
func (u UID) Klass() string { return u.klass }

// Path returns the dot-separated namespace.
func (u UID) Path() string { return u.path }

// Realm returns the first path segment.
func (u UID) Realm() string { return u.realm }

// AppID returns the second path segment, or "" if the path has only one.
func (u UID) AppID() string { return u.appID }

// OID returns the object id and whether one is present.
func (u UID) OID() (int64, bool) { return u.oid, u.hasOID }

// IsZero reports whether u is the zero UID.
func (u UID) IsZero() bool { return u.raw == "" }

// HasWildcard reports whether any position of the identifier is a wildcard.
func (u UID) HasWildcard() bool { return strings.Contains(u.raw, Wildcard) }

// Pattern returns the match pattern for the identifier.
func (u UID) Pattern() *Pattern { return CompileMatch(u.raw) }
