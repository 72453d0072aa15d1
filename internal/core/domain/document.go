package domain

import "time"

// Document is one source file prepared for ingestion.
// Source files are read-only inputs; the pipeline never mutates them.
type Document struct {
	// ID is the stable document identifier, a UUIDv5 derived from Key.
	ID string

	// Key is the identity the ID is derived from. When the file lives
	// under the configured vault root this is "rel:<relative-path>" so the
	// identity survives moving the vault; otherwise it is the absolute path.
	Key string

	// Path is the location the file was read from.
	Path string

	// Title is taken from the first markdown heading, a "title:" line,
	// or the filename stem.
	Title string

	// Body is the text after the front matter block.
	Body string

	// ContentSHA is the hex SHA-1 digest of the complete raw file text,
	// front matter included. It is the single source of truth for change
	// detection.
	ContentSHA string

	// Meta holds the structured metadata resolved from front matter.
	Meta Metadata

	// SourceMtime is the file's last-modified timestamp.
	SourceMtime time.Time
}

// Metadata is the structured front-matter content of a document.
// Malformed front matter degrades to the zero value rather than failing
// the document.
type Metadata struct {
	// Type classifies the document: note, meeting, one-on-one, email,
	// calendar or slack.
	Type string

	// Category groups related documents; falls back to the parent
	// directory name when front matter carries none.
	Category string

	// People lists the attendees/participants named in front matter.
	People []string

	// Tags lists front-matter tags.
	Tags []string

	// Date is the document date from front matter, if present.
	Date string
}

// Chunk is a contiguous slice of a document's body text.
// Chunk boundaries are a pure function of (text, chunk size, overlap);
// re-chunking identical text yields identical chunks in identical order.
type Chunk struct {
	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the ordinal position within the document.
	Index int

	// Start and End are the byte offsets of the chunk within the body.
	Start int
	End   int

	// Text is the chunk content.
	Text string
}

// Size returns the chunk length in bytes.
func (c Chunk) Size() int {
	return len(c.Text)
}

// Fingerprint records the last successfully ingested version of a document.
// It is written only after the document's points are fully upserted.
type Fingerprint struct {
	// DocID is the document identifier.
	DocID string

	// DocKey is the identity the DocID was derived from, kept for
	// reconciliation and debugging.
	DocKey string

	// ContentSHA is the content hash at the time of ingestion.
	ContentSHA string

	// ChunkCount is the number of points upserted for this version.
	ChunkCount int

	// IngestedAt is when the ingestion completed.
	IngestedAt time.Time
}
