package shard

import (
	"strings"
	"testing"
)

func TestScopePK_SingleShard(t *testing.T) {
	// With numShards=1, all documents of a scope should go to shard "00"
	tests := []struct {
		scope    string
		uid      string
		expected string
	}{
		{"product:acmecorp", "product:acmecorp.acmeapp.food$111", "product:acmecorp#00"},
		{"product:acmecorp", "product:acmecorp.acmeapp.food$222", "product:acmecorp#00"},
		{"user:acmecorp", "user:acmecorp.users$111", "user:acmecorp#00"},
	}

	for _, tt := range tests {
		result := ScopePK(tt.scope, tt.uid, 1)
		if result != tt.expected {
			t.Errorf("ScopePK(%q, %q, 1) = %q, want %q",
				tt.scope, tt.uid, result, tt.expected)
		}
	}
}

func TestScopePK_ZeroShards(t *testing.T) {
	// Zero or negative shards should be treated as 1
	result := ScopePK("user:acmecorp", "user:acmecorp.users$1", 0)
	if result != "user:acmecorp#00" {
		t.Errorf("expected 'user:acmecorp#00', got %q", result)
	}

	result = ScopePK("user:acmecorp", "user:acmecorp.users$1", -1)
	if result != "user:acmecorp#00" {
		t.Errorf("expected 'user:acmecorp#00', got %q", result)
	}
}

func TestScopePK_MultipleShards(t *testing.T) {
	scope := "product:acmecorp"
	numShards := 256

	shardCounts := make(map[string]int)
	for i := 0; i < 1000; i++ {
		uid := "product:acmecorp.acmeapp." + string(rune('a'+i%26)) + "$" + string(rune('0'+i%10))
		pk := ScopePK(scope, uid, numShards)

		if !strings.HasPrefix(pk, scope+"#") {
			t.Errorf("expected prefix %q#, got %q", scope, pk)
		}
		shardCounts[pk[len(scope)+1:]]++
	}

	if len(shardCounts) < 10 {
		t.Errorf("expected distribution across multiple shards, got only %d unique shards", len(shardCounts))
	}
}

func TestScopePK_Deterministic(t *testing.T) {
	first := ScopePK("product:acmecorp", "product:acmecorp.acmeapp.food$111", 256)
	for i := 0; i < 100; i++ {
		result := ScopePK("product:acmecorp", "product:acmecorp.acmeapp.food$111", 256)
		if result != first {
			t.Errorf("expected deterministic result %q, got %q on iteration %d", first, result, i)
		}
	}
}

func TestScopePK_HexFormat(t *testing.T) {
	result := ScopePK("product:acmecorp", "product:acmecorp.acmeapp.test$1", 256)
	parts := strings.Split(result, "#")
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %q", len(parts), result)
	}

	shard := parts[1]
	if len(shard) != 2 {
		t.Errorf("expected 2-character shard, got %q", shard)
	}
	for _, c := range shard {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Errorf("expected hex character, got %c", c)
		}
	}
}

func TestScopePKs(t *testing.T) {
	keys := ScopePKs("user:acmecorp", 1)
	if len(keys) != 1 || keys[0] != "user:acmecorp#00" {
		t.Errorf("expected [user:acmecorp#00], got %v", keys)
	}

	keys = ScopePKs("user:acmecorp", 16)
	if len(keys) != 16 {
		t.Fatalf("expected 16 keys, got %d", len(keys))
	}
	if keys[0] != "user:acmecorp#00" || keys[15] != "user:acmecorp#0f" {
		t.Errorf("unexpected key range %q..%q", keys[0], keys[15])
	}
}

func TestScopePKs_CoverScopePK(t *testing.T) {
	// Every key ScopePK produces must be one a reader fans out over
	numShards := 16
	all := make(map[string]bool)
	for _, k := range ScopePKs("product:acmecorp", numShards) {
		all[k] = true
	}

	for i := 0; i < 200; i++ {
		uid := "product:acmecorp.acmeapp.food$" + strings.Repeat("1", i%7+1) + string(rune('0'+i%10))
		pk := ScopePK("product:acmecorp", uid, numShards)
		if !all[pk] {
			t.Errorf("ScopePK produced %q which is not in ScopePKs", pk)
		}
	}
}

func BenchmarkScopePK_SingleShard(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ScopePK("product:acmecorp", "product:acmecorp.acmeapp.food$111", 1)
	}
}

func BenchmarkScopePK_256Shards(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ScopePK("product:acmecorp", "product:acmecorp.acmeapp.food$111", 256)
	}
}
