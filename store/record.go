package store

import (
	"strings"
	"time"

	"github.com/jacentio/grove/fault"
	"github.com/jacentio/grove/uid"
)

// NewRecord builds the record stored on create. The uid must address exactly
// one object: no wildcards, and oid, realm and app id all present.
func NewRecord(id uid.UID, payload map[string]any, now time.Time) (Document, error) {
	if id.HasWildcard() {
		return nil, fault.Validationf("No wildcards in uid when creating ('%s')", id)
	}
	oid, ok := id.OID()
	if !ok {
		return nil, fault.Invalid("uid.oid", id.String())
	}
	if id.Realm() == "" {
		return nil, fault.Invalid("uid.realm", id.String())
	}
	if id.AppID() == "" {
		return nil, fault.Invalid("uid.app_id", id.String())
	}

	if payload == nil {
		payload = map[string]any{}
	}
	// Stored documents must stay addressable by dotted paths.
	if _, err := Flatten(payload, ""); err != nil {
		return nil, err
	}

	return Document{
		FieldUID:       id.String(),
		FieldKlass:     id.Klass(),
		FieldPath:      id.Path(),
		FieldRealm:     id.Realm(),
		FieldAppID:     id.AppID(),
		FieldOID:       oid,
		FieldDocument:  payload,
		FieldCreatedAt: timestamp(now),
	}, nil
}

// NewPatch flattens an update payload into a merge-patch rooted at
// "document." and stamps updated_at. Only the listed leaves change when the
// patch is applied; siblings are left alone.
func NewPatch(payload map[string]any, now time.Time) (Patch, error) {
	flat, err := Flatten(payload, FieldDocument+".")
	if err != nil {
		return nil, err
	}
	p := Patch(flat)
	p[FieldUpdatedAt] = timestamp(now)
	return p, nil
}

// Flatten walks obj and returns one entry per leaf, keyed by the dotted path
// from the root with prefix prepended. Non-empty maps are walked into and
// never stored themselves; everything else, including slices and empty maps,
// is a leaf.
func Flatten(obj map[string]any, prefix string) (map[string]any, error) {
	out := make(map[string]any)
	if err := flatten(out, prefix, obj, false); err != nil {
		return nil, err
	}
	return out, nil
}

// flattenFilter is Flatten for query filters, where a key may already be a
// dotted path such as "document.name". Two spellings of the same path are
// rejected.
func flattenFilter(obj map[string]any) (map[string]any, error) {
	out := make(map[string]any)
	if err := flatten(out, "", obj, true); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(out map[string]any, prefix string, obj map[string]any, dotted bool) error {
	for k, v := range obj {
		if !validKey(k, dotted) {
			return fault.Invalid("key", prefix+k)
		}
		key := prefix + k
		if m, ok := v.(map[string]any); ok && len(m) > 0 {
			if err := flatten(out, key+".", m, dotted); err != nil {
				return err
			}
			continue
		}
		if _, dup := out[key]; dup {
			return fault.Invalid("key", key)
		}
		out[key] = v
	}
	return nil
}

func validKey(k string, dotted bool) bool {
	if !dotted {
		return k != "" && !strings.Contains(k, ".")
	}
	for _, seg := range strings.Split(k, ".") {
		if seg == "" {
			return false
		}
	}
	return true
}

// TimeLayout formats created_at and updated_at: UTC with milliseconds,
// e.g. 2024-03-01T11:00:00.000Z.
const TimeLayout = "2006-01-02T15:04:05.000Z"

func timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
