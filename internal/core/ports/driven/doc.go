// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the embedding provider, the vector store,
// the fingerprint store and the settings store.
package driven
