// Package shard provides shard key generation for the DynamoDB scope index.
package shard

import (
	"fmt"
	"hash/fnv"
)

// ScopePK computes the sharded partition key of the scope index for a document.
// With numShards=1, every document of a scope goes to shard "00".
// With numShards>1, documents are distributed across shards based on uid hash.
func ScopePK(scope, uid string, numShards int) string {
	if numShards <= 1 {
		return fmt.Sprintf("%s#00", scope)
	}
	h := fnv.New32a()
	h.Write([]byte(uid))
	shard := h.Sum32() % uint32(numShards)
	return fmt.Sprintf("%s#%02x", scope, shard)
}

// ScopePKs returns every partition key a scope is spread over, in shard order.
// Readers fan out over all of them.
func ScopePKs(scope string, numShards int) []string {
	if numShards <= 1 {
		return []string{fmt.Sprintf("%s#00", scope)}
	}
	keys := make([]string, numShards)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s#%02x", scope, i)
	}
	return keys
}
