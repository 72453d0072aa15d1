// Package domain contains the core types for the ingestion pipeline:
// documents, chunks, vector points, fingerprints and run reports.
// It has no dependencies on adapters or external services.
package domain
