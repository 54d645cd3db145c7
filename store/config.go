package store

import "regexp"

// TableNameRegexp is the set of names DynamoDB accepts for a table.
var TableNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,255}$`)

// DynamoConfig holds configuration for the Dynamo collection.
type DynamoConfig struct {
	// Table is the name of the documents table.
	// Default: "grove_documents"
	Table string

	// ScopeIndex is the name of the global secondary index on (scope, uid).
	// Default: "scope-index"
	ScopeIndex string

	// NumShards is the number of partitions each scope is spread over in the
	// scope index. Higher values increase write throughput per scope but
	// require more parallel queries on read.
	// Default: 1 (no sharding, single query)
	// Max: 256
	NumShards int
}

// DefaultDynamoConfig returns sensible defaults for small datasets.
func DefaultDynamoConfig() DynamoConfig {
	return DynamoConfig{
		Table:      "grove_documents",
		ScopeIndex: "scope-index",
		NumShards:  1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *DynamoConfig) validate() {
	if c.Table == "" {
		c.Table = "grove_documents"
	}
	if c.ScopeIndex == "" {
		c.ScopeIndex = "scope-index"
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > 256 {
		c.NumShards = 256
	}
}
