// Package stream turns DynamoDB Streams records of the documents table into
// changes and dispatches them to subscribers.
//
// Subscribers register with a UID pattern, using the same wildcard syntax as
// requests, and receive every change to a document whose uid matches:
//
//	h := stream.NewHandler(logger)
//	h.Subscribe("user:acme.*", func(ctx context.Context, c stream.Change) error {
//		...
//	})
//	lambda.Start(h.HandleEvent)
//
// The stream must be configured with NEW_AND_OLD_IMAGES.
package stream
