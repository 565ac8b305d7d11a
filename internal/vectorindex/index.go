// Package vectorindex stores caption embeddings and answers owner-scoped
// nearest-neighbor queries.
//
// Every backend builds the owner constraint into the query it sends to
// the store. Results are never filtered after the fact.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrScopeRequired is returned when a query has no owner scope.
	ErrScopeRequired = errors.New("vectorindex: owner scope is required")
	// ErrInvalidRecord is returned for records missing an id, owner or vector.
	ErrInvalidRecord = errors.New("vectorindex: invalid record")
	// ErrDimensionMismatch is returned when a vector does not match the index size.
	ErrDimensionMismatch = errors.New("vectorindex: dimension mismatch")
)

// Metadata is stored alongside each vector.
type Metadata struct {
	OwnerID  string
	Filename string
	Caption  string
}

// Record is one indexed image. ID is the image ID in the relational store.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is one query hit.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Scope restricts a query to one owner's records.
type Scope struct {
	OwnerID string
}

// Index is a similarity store.
type Index interface {
	// Upsert inserts or replaces the record with r.ID.
	Upsert(ctx context.Context, r Record) error
	// Query returns up to topK records within scope, best first.
	// No matches yields an empty slice and a nil error.
	Query(ctx context.Context, vector []float32, topK int, scope Scope) ([]Match, error)
	// Delete removes the record with id. Missing ids are not an error.
	Delete(ctx context.Context, id string) error
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

func validateRecord(r Record, dim int) error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: id is empty", ErrInvalidRecord)
	case r.Metadata.OwnerID == "":
		return fmt.Errorf("%w: owner is empty", ErrInvalidRecord)
	case len(r.Vector) == 0:
		return fmt.Errorf("%w: vector is empty", ErrInvalidRecord)
	case dim > 0 && len(r.Vector) != dim:
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(r.Vector), dim)
	}
	return nil
}

func validateQuery(vector []float32, topK int, scope Scope, dim int) error {
	switch {
	case scope.OwnerID == "":
		return ErrScopeRequired
	case topK <= 0:
		return fmt.Errorf("vectorindex: topK must be positive, got %d", topK)
	case len(vector) == 0:
		return errors.New("vectorindex: query vector is empty")
	case dim > 0 && len(vector) != dim:
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dim)
	}
	return nil
}
