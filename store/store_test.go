package store_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jacentio/grove/fault"
	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/uid"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

// --- NewRecord Tests ---

func TestNewRecord(t *testing.T) {
	doc, err := store.NewRecord(uid.MustParse("product:acme.shop.food$12"), map[string]any{"name": "apple"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := store.Document{
		"uid":        "product:acme.shop.food$12",
		"klass":      "product",
		"path":       "acme.shop.food",
		"realm":      "acme",
		"app_id":     "shop",
		"oid":        int64(12),
		"document":   map[string]any{"name": "apple"},
		"created_at": "2024-03-01T11:00:00.000Z",
	}
	if !reflect.DeepEqual(doc, want) {
		t.Errorf("expected %v, got %v", want, doc)
	}
}

func TestNewRecord_NilPayload(t *testing.T) {
	doc, err := store.NewRecord(uid.MustParse("product:acme.shop$1"), nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m, ok := doc[store.FieldDocument].(map[string]any); !ok || len(m) != 0 {
		t.Errorf("expected empty document, got %#v", doc[store.FieldDocument])
	}
}

func TestNewRecord_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		uid     string
		payload map[string]any
		field   string
	}{
		{"wildcard", "product:acme.shop$*", nil, ""},
		{"wildcard in path", "product:acme.*$1", nil, ""},
		{"missing oid", "product:acme.shop", nil, "uid.oid"},
		{"missing app id", "product:acme$1", nil, "uid.app_id"},
		{"dotted key", "product:acme.shop$1", map[string]any{"a.b": 1}, "key"},
		{"empty key", "product:acme.shop$1", map[string]any{"": 1}, "key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.NewRecord(uid.MustParse(tt.uid), tt.payload, now)
			if err == nil {
				t.Fatal("expected error")
			}
			if fault.KindOf(err) != fault.Validation {
				t.Errorf("expected validation error, got %v", fault.KindOf(err))
			}
			if tt.field == "" {
				return
			}
			detail, ok := fault.Payload(err).(map[string]any)
			if !ok {
				t.Fatalf("expected structured detail, got %#v", fault.Payload(err))
			}
			if _, ok := detail[tt.field]; !ok {
				t.Errorf("expected detail for %q, got %v", tt.field, detail)
			}
		})
	}
}

func TestNewRecord_WildcardMessage(t *testing.T) {
	_, err := store.NewRecord(uid.MustParse("product:acme.shop$*"), nil, now)
	want := "No wildcards in uid when creating ('product:acme.shop$*')"
	if fault.Payload(err) != want {
		t.Errorf("expected %q, got %#v", want, fault.Payload(err))
	}
}

func TestNewRecord_TimestampMillis(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.FixedZone("CET", 3600))
	doc, err := store.NewRecord(uid.MustParse("product:acme.shop$1"), nil, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := doc[store.FieldCreatedAt]; got != "2024-03-01T11:00:00.123Z" {
		t.Errorf("expected millisecond UTC timestamp, got %v", got)
	}
}

// --- NewPatch / Flatten Tests ---

func TestNewPatch(t *testing.T) {
	p, err := store.NewPatch(map[string]any{
		"a": 1,
		"b": map[string]any{"c": "x", "d": map[string]any{"e": true}},
		"f": []any{1, 2},
		"g": map[string]any{},
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := store.Patch{
		"document.a":     1,
		"document.b.c":   "x",
		"document.b.d.e": true,
		"document.f":     []any{1, 2},
		"document.g":     map[string]any{},
		"updated_at":     "2024-03-01T11:00:00.000Z",
	}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("expected %v, got %v", want, p)
	}
}

func TestNewPatch_Empty(t *testing.T) {
	p, err := store.NewPatch(nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p) != 1 || p[store.FieldUpdatedAt] == nil {
		t.Errorf("expected only updated_at, got %v", p)
	}
}

func TestFlatten_RejectsNestedDottedKey(t *testing.T) {
	_, err := store.Flatten(map[string]any{"a": map[string]any{"b.c": 1}}, "")
	if fault.KindOf(err) != fault.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
	detail := fault.Payload(err).(map[string]any)
	if detail["key"] != "Invalid ('a.b.c')" {
		t.Errorf("unexpected detail %v", detail)
	}
}

// --- NewCriteria Tests ---

func TestNewCriteria(t *testing.T) {
	c, err := store.NewCriteria(uid.MustParse("product:acme.shop$*"), map[string]any{
		"document": map[string]any{"name": "apple"},
		"uid":      "user:other.app$1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.UID.String() != "product:acme.shop$*" {
		t.Errorf("unexpected pattern %q", c.UID.String())
	}
	if !reflect.DeepEqual(c.Equals, map[string]any{"document.name": "apple"}) {
		t.Errorf("unexpected equals %v", c.Equals)
	}
}

func TestNewCriteria_NoFilter(t *testing.T) {
	c, err := store.NewCriteria(uid.MustParse("product:acme.shop$1"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Equals != nil {
		t.Errorf("expected no equality constraints, got %v", c.Equals)
	}
}

func TestNewCriteria_DottedFilterKeys(t *testing.T) {
	tests := []struct {
		name    string
		filter  map[string]any
		want    map[string]any
		wantErr bool
	}{
		{
			name:   "dotted key",
			filter: map[string]any{"document.name": "apple"},
			want:   map[string]any{"document.name": "apple"},
		},
		{
			name:   "dotted key with nested value",
			filter: map[string]any{"document.meta": map[string]any{"size": "s"}},
			want:   map[string]any{"document.meta.size": "s"},
		},
		{
			name:    "empty segment",
			filter:  map[string]any{"document..name": "apple"},
			wantErr: true,
		},
		{
			name: "same path spelled twice",
			filter: map[string]any{
				"document.name": "apple",
				"document":      map[string]any{"name": "pear"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := store.NewCriteria(uid.MustParse("product:acme.shop*"), tt.filter)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got equals %v", c.Equals)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(c.Equals, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, c.Equals)
			}
		})
	}
}

func TestMemory_FindDottedFilter(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for i, name := range []string{"apple", "pear"} {
		doc, err := store.NewRecord(uid.MustParse(fmt.Sprintf("product:acme.shop$%d", i+1)), map[string]any{"name": name}, now)
		if err != nil {
			t.Fatalf("NewRecord: %v", err)
		}
		if err := m.Insert(ctx, doc); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	c, err := store.NewCriteria(uid.MustParse("product:acme.shop*"), map[string]any{"document.name": "pear"})
	if err != nil {
		t.Fatalf("NewCriteria: %v", err)
	}
	docs, err := m.Find(ctx, c)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(docs) != 1 || docs[0].UID() != "product:acme.shop$2" {
		t.Errorf("expected product:acme.shop$2, got %v", docs)
	}
}

func TestCriteria_Matches(t *testing.T) {
	doc, _ := store.NewRecord(uid.MustParse("product:acme.shop$12"), map[string]any{
		"qty":  3,
		"tags": []any{"a", "b"},
	}, now)

	tests := []struct {
		name   string
		uid    string
		filter map[string]any
		want   bool
	}{
		{"exact", "product:acme.shop$12", nil, true},
		{"superstring", "product:acme.shop$1", nil, false},
		{"wildcard", "product:acme.*", nil, true},
		{"numeric filter", "product:*", map[string]any{"document": map[string]any{"qty": 3.0}}, true},
		{"array filter", "product:*", map[string]any{"document": map[string]any{"tags": []any{"a", "b"}}}, true},
		{"mismatch", "product:*", map[string]any{"document": map[string]any{"qty": 4}}, false},
		{"missing path", "product:*", map[string]any{"document": map[string]any{"nope": 1}}, false},
		{"oid filter", "product:*", map[string]any{"oid": 12}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := store.NewCriteria(uid.MustParse(tt.uid), tt.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := c.Matches(doc); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCriteria_ZeroMatchesNothing(t *testing.T) {
	doc := store.Document{"uid": "x:y"}
	if (store.Criteria{}).Matches(doc) {
		t.Error("expected zero criteria to match nothing")
	}
}

// --- Memory Tests ---

func mustInsert(t *testing.T, coll store.Collection, id string, payload map[string]any) {
	t.Helper()
	doc, err := store.NewRecord(uid.MustParse(id), payload, now)
	if err != nil {
		t.Fatalf("NewRecord(%s): %v", id, err)
	}
	if err := coll.Insert(context.Background(), doc); err != nil {
		t.Fatalf("Insert(%s): %v", id, err)
	}
}

func criteria(t *testing.T, id string, filter map[string]any) store.Criteria {
	t.Helper()
	c, err := store.NewCriteria(uid.MustParse(id), filter)
	if err != nil {
		t.Fatalf("NewCriteria(%s): %v", id, err)
	}
	return c
}

func TestMemory_InsertDuplicate(t *testing.T) {
	m := store.NewMemory()
	mustInsert(t, m, "user:acme.app$1", nil)

	doc, _ := store.NewRecord(uid.MustParse("user:acme.app$1"), nil, now)
	if err := m.Insert(context.Background(), doc); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 document, got %d", m.Len())
	}
}

func TestMemory_InsertMissingUID(t *testing.T) {
	m := store.NewMemory()
	if err := m.Insert(context.Background(), store.Document{}); !errors.Is(err, store.ErrMissingUID) {
		t.Errorf("expected ErrMissingUID, got %v", err)
	}
}

func TestMemory_FindInsertionOrder(t *testing.T) {
	m := store.NewMemory()
	for _, id := range []string{"user:acme.app$3", "user:acme.app$1", "user:acme.app$2"} {
		mustInsert(t, m, id, nil)
	}

	docs, err := m.Find(context.Background(), criteria(t, "user:acme.app$*", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, d := range docs {
		got = append(got, d.UID())
	}
	want := []string{"user:acme.app$3", "user:acme.app$1", "user:acme.app$2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMemory_FindNoMatchIsEmpty(t *testing.T) {
	m := store.NewMemory()
	docs, err := m.Find(context.Background(), criteria(t, "user:acme.app$*", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", docs)
	}
}

func TestMemory_FindReturnsCopies(t *testing.T) {
	m := store.NewMemory()
	mustInsert(t, m, "user:acme.app$1", map[string]any{"a": 1})

	docs, _ := m.Find(context.Background(), criteria(t, "user:acme.app$1", nil))
	docs[0]["document"].(map[string]any)["a"] = 99

	again, _ := m.Find(context.Background(), criteria(t, "user:acme.app$1", nil))
	if again[0]["document"].(map[string]any)["a"] != 1 {
		t.Error("expected stored document to be unaffected by caller mutation")
	}
}

func TestMemory_UpdateManyMergesLeaves(t *testing.T) {
	m := store.NewMemory()
	mustInsert(t, m, "user:acme.app$1", map[string]any{
		"a": map[string]any{"b": 1, "c": 2},
	})

	p, _ := store.NewPatch(map[string]any{"a": map[string]any{"b": 10}, "d": "new"}, now)
	n, err := m.UpdateMany(context.Background(), criteria(t, "user:acme.app$1", nil), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 updated, got %d", n)
	}

	docs, _ := m.Find(context.Background(), criteria(t, "user:acme.app$1", nil))
	want := map[string]any{"a": map[string]any{"b": 10, "c": 2}, "d": "new"}
	if !reflect.DeepEqual(docs[0]["document"], want) {
		t.Errorf("expected %v, got %v", want, docs[0]["document"])
	}
	if docs[0][store.FieldUpdatedAt] != "2024-03-01T11:00:00.000Z" {
		t.Errorf("expected updated_at, got %v", docs[0][store.FieldUpdatedAt])
	}
}

func TestMemory_UpdateManyIdempotent(t *testing.T) {
	m := store.NewMemory()
	mustInsert(t, m, "user:acme.app$1", map[string]any{"a": 1})
	p, _ := store.NewPatch(map[string]any{"a": 2}, now)
	c := criteria(t, "user:acme.app$1", nil)

	_, _ = m.UpdateMany(context.Background(), c, p)
	first, _ := m.Find(context.Background(), c)
	_, _ = m.UpdateMany(context.Background(), c, p)
	second, _ := m.Find(context.Background(), c)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical state, got %v then %v", first, second)
	}
}

func TestMemory_UpdateManyNoMatch(t *testing.T) {
	m := store.NewMemory()
	p, _ := store.NewPatch(map[string]any{"a": 2}, now)
	n, err := m.UpdateMany(context.Background(), criteria(t, "user:acme.app$1", nil), p)
	if err != nil || n != 0 {
		t.Errorf("expected (0, nil), got (%d, %v)", n, err)
	}
	if m.Len() != 0 {
		t.Error("expected no upsert")
	}
}

func TestMemory_RemoveMany(t *testing.T) {
	m := store.NewMemory()
	mustInsert(t, m, "user:acme.app$1", map[string]any{"keep": false})
	mustInsert(t, m, "user:acme.app$2", map[string]any{"keep": true})
	mustInsert(t, m, "user:acme.web$3", map[string]any{"keep": false})

	n, err := m.RemoveMany(context.Background(), criteria(t, "user:acme.*", map[string]any{
		"document": map[string]any{"keep": false},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 left, got %d", m.Len())
	}
}

func TestMemory_Unbound(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	if _, err := m.Find(ctx, store.Criteria{}); !errors.Is(err, store.ErrUnboundCriteria) {
		t.Errorf("Find: expected ErrUnboundCriteria, got %v", err)
	}
	if _, err := m.UpdateMany(ctx, store.Criteria{}, nil); !errors.Is(err, store.ErrUnboundCriteria) {
		t.Errorf("UpdateMany: expected ErrUnboundCriteria, got %v", err)
	}
	if _, err := m.RemoveMany(ctx, store.Criteria{}); !errors.Is(err, store.ErrUnboundCriteria) {
		t.Errorf("RemoveMany: expected ErrUnboundCriteria, got %v", err)
	}
}

func TestMemory_Reset(t *testing.T) {
	m := store.NewMemory()
	mustInsert(t, m, "user:acme.app$1", nil)
	m.Reset()
	if m.Len() != 0 {
		t.Errorf("expected empty collection, got %d", m.Len())
	}
	mustInsert(t, m, "user:acme.app$1", nil)
}

func TestMemory_ConcurrentInsertUnique(t *testing.T) {
	m := store.NewMemory()
	doc, _ := store.NewRecord(uid.MustParse("user:acme.app$1"), nil, now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Insert(context.Background(), doc); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 1 {
		t.Errorf("expected exactly one successful insert, got %d", ok)
	}
}

func TestTableNameRegexp(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"grove_documents", true},
		{"docs-test.v1", true},
		{"ab", false},
		{"has space", false},
		{"bad$name", false},
	}
	for _, tt := range tests {
		if got := store.TableNameRegexp.MatchString(tt.name); got != tt.valid {
			t.Errorf("TableNameRegexp(%q) = %v, want %v", tt.name, got, tt.valid)
		}
	}
}

func ExampleMemory() {
	ctx := context.Background()
	coll := store.NewMemory()

	id := uid.MustParse("product:acme.shop$1")
	doc, _ := store.NewRecord(id, map[string]any{"name": "apple"}, time.Now())
	_ = coll.Insert(ctx, doc)

	c, _ := store.NewCriteria(uid.MustParse("product:acme.*"), nil)
	docs, _ := coll.Find(ctx, c)
	fmt.Println(len(docs), docs[0].UID())
	// Output: 1 product:acme.shop$1
}
