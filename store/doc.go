// Package store shapes documents for storage and provides the collections
// that hold them.
//
// Every stored document is addressed by a UID (see package uid). The package
// covers three concerns:
//
//   - Record building: [NewRecord] turns a create payload into a full record
//     carrying the UID fields; [NewPatch] flattens an update payload into a
//     merge-patch of dotted paths rooted at "document.".
//   - Criteria: [NewCriteria] combines the UID match pattern with an optional
//     filter flattened into dotted-path equality constraints.
//   - Collections: the [Collection] interface is the storage handle consumed
//     by the CRUD operations. [Memory] keeps documents in process; [Dynamo]
//     stores them in a DynamoDB table keyed by uid.
//
// # Record Layout
//
//	{
//	    "uid":        "product:acmecorp.acmeapp.food$111",
//	    "klass":      "product",
//	    "path":       "acmecorp.acmeapp.food",
//	    "realm":      "acmecorp",
//	    "app_id":     "acmeapp",
//	    "oid":        111,
//	    "document":   {...},
//	    "created_at": "2024-01-01T00:00:00.000Z"
//	}
//
// # DynamoDB Table
//
// [Dynamo] uses a table with hash key "uid" and a global secondary index on
// ("scope", "uid"), where scope is "klass:realm" spread over
// [DynamoConfig].NumShards partitions. Patterns whose literal prefix pins the
// class and realm are served by index queries; everything else scans.
//
// # Errors
//
//   - [ErrAlreadyExists] - a document with the uid is already stored
//   - [ErrMissingUID] - insert of a document without a uid
//   - [ErrUnboundCriteria] - criteria built without a uid pattern
package store
