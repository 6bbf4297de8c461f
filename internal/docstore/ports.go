// Package docstore declares the outbound ports for a schema-less document
// store: a set of named collections holding JSON-like records under
// store-assigned IDs.
package docstore

import (
	"context"
	"errors"
)

// Record is a schema-less document body. Values are JSON-compatible:
// string, float64, bool, nil, or nested maps and slices.
type Record map[string]any

// Document is a record together with the ID the store assigned to it.
type Document struct {
	ID   string
	Data Record
}

// Sentinel errors adapters wrap so callers can classify failures.
var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("store unavailable")
)

// Ports for outbound adapters.
type (
	// Adder inserts a record and returns the assigned document ID.
	Adder interface {
		Add(ctx context.Context, collection string, rec Record) (id string, err error)
	}

	// Lister returns every document in a collection, in no particular order.
	Lister interface {
		List(ctx context.Context, collection string) ([]Document, error)
	}

	// Deleter removes a document by ID. Deleting a missing ID returns ErrNotFound.
	Deleter interface {
		Delete(ctx context.Context, collection, id string) error
	}

	DocumentStore interface {
		Adder
		Lister
		Deleter
	}

	// Putter writes a record under a caller-chosen ID, replacing any existing
	// one. Mirrors use it to keep the primary store's IDs.
	Putter interface {
		Put(ctx context.Context, collection, id string, rec Record) error
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
