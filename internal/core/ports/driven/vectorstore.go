package driven

import (
	"context"

	"github.com/notevault/notevault-cli/internal/core/domain"
)

// CollectionSpec declares the schema a collection must have: one named
// vector sized to the embedding model. The schema is immutable once data
// is stored; changing dimensionality or vector-naming mode requires an
// explicit destructive recreate.
type CollectionSpec struct {
	// Name is the collection name.
	Name string

	// VectorName is the named-vector key, derived from the embedding
	// model identifier.
	VectorName string

	// Dimension is the vector size.
	Dimension int

	// Distance is the similarity metric, e.g. "Cosine".
	Distance string
}

// CollectionStatus is the outcome of EnsureCollection.
type CollectionStatus string

const (
	// CollectionReady means the collection exists with a matching schema.
	CollectionReady CollectionStatus = "ready"

	// CollectionCreated means the collection was missing and has been
	// created with the requested schema.
	CollectionCreated CollectionStatus = "created"

	// CollectionIncompatible means the collection exists with a
	// mismatched schema. Nothing was changed; recreating it is an
	// explicit operator action.
	CollectionIncompatible CollectionStatus = "incompatible"
)

// VectorStore persists embedding points in a named-vector collection.
// Backed by Qdrant over its REST API.
type VectorStore interface {
	// EnsureCollection creates the collection if missing and validates
	// the schema if present. It is never destructive: a mismatched
	// schema yields CollectionIncompatible and an error wrapping
	// domain.ErrSchemaIncompatible.
	EnsureCollection(ctx context.Context, spec CollectionSpec) (CollectionStatus, error)

	// RecreateCollection drops and recreates the collection with the
	// given schema. Destructive; only called on explicit operator
	// confirmation.
	RecreateCollection(ctx context.Context, spec CollectionSpec) error

	// Upsert writes points, overwriting any existing points with the
	// same IDs.
	Upsert(ctx context.Context, collection string, points []domain.Point) error

	// ListActivePointIDs returns the IDs of all active points belonging
	// to a document.
	ListActivePointIDs(ctx context.Context, collection, docID string) ([]string, error)

	// TombstonePoints flags points inactive instead of deleting them,
	// preserving point-in-time queries for the retrieval consumer.
	TombstonePoints(ctx context.Context, collection string, ids []string) error

	// DeletePoints physically removes points.
	DeletePoints(ctx context.Context, collection string, ids []string) error

	// FindActiveDocVersion returns the doc_version payload of one active
	// point for the document, or domain.ErrNotFound when none exist.
	FindActiveDocVersion(ctx context.Context, collection, docID string) (string, error)

	// CollectionInfo returns the live schema of the collection, or
	// domain.ErrNotFound when it does not exist.
	CollectionInfo(ctx context.Context, name string) (*CollectionSpec, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
