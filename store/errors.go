package store

import "errors"

var (
	// ErrAlreadyExists is returned when a document with the same uid is already stored.
	ErrAlreadyExists = errors.New("grove: document already exists")

	// ErrMissingUID is returned when inserting a document without a uid field.
	ErrMissingUID = errors.New("grove: document has no uid")

	// ErrUnboundCriteria is returned when criteria carry no uid pattern.
	ErrUnboundCriteria = errors.New("grove: criteria without uid pattern")
)
