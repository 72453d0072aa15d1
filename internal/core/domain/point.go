package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// idNamespace is the fixed UUIDv5 namespace for document and point IDs.
// Deriving IDs from a fixed namespace keeps them stable across runs, so
// re-ingestion overwrites points instead of duplicating them.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("notevault/personal-assistant"))

// DocumentID derives the stable document identifier from a document key.
func DocumentID(key string) string {
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// PointID derives the stable point identifier for a chunk of a document.
// The same (document, chunk index) pair always maps to the same ID.
func PointID(docID string, chunkIdx int) string {
	return uuid.NewSHA1(idNamespace, []byte(docID+"|"+strconv.Itoa(chunkIdx))).String()
}

// VectorName converts an embedding model identifier to a valid named-vector
// key by replacing characters Qdrant rejects with underscores.
func VectorName(model string) string {
	r := strings.NewReplacer("-", "_", "@", "_", ".", "_")
	return r.Replace(model)
}

// Point is the unit persisted to the vector store: a stable identifier,
// one named vector and the retrieval payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload PointPayload
}

// PointPayload is the wire payload stored with every point. The field set
// is a fixed contract with the downstream retrieval consumer; the chunk
// text lives under "document".
type PointPayload struct {
	Document    string   `json:"document"`
	Type        string   `json:"type"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Path        string   `json:"path"`
	DocID       string   `json:"doc_id"`
	DocVersion  string   `json:"doc_version"`
	ChunkIdx    int      `json:"chunk_idx"`
	ChunkChars  int      `json:"chunk_chars"`
	People      []string `json:"people"`
	Tags        []string `json:"tags"`
	IsActive    bool     `json:"is_active"`
	IngestedAt  string   `json:"ingested_at"`
	SourceMtime string   `json:"source_mtime"`
	ContentSHA  string   `json:"content_sha"`
}

// NewPoint builds the point for one embedded chunk of a document.
// IngestedAt is passed in so every point of a run shares one timestamp.
func NewPoint(doc *Document, chunk Chunk, vector []float32, ingestedAt time.Time) Point {
	return Point{
		ID:     PointID(doc.ID, chunk.Index),
		Vector: vector,
		Payload: PointPayload{
			Document:    chunk.Text,
			Type:        doc.Meta.Type,
			Category:    doc.Meta.Category,
			Title:       doc.Title,
			Path:        doc.Path,
			DocID:       doc.ID,
			DocVersion:  doc.ContentSHA,
			ChunkIdx:    chunk.Index,
			ChunkChars:  chunk.Size(),
			People:      doc.Meta.People,
			Tags:        doc.Meta.Tags,
			IsActive:    true,
			IngestedAt:  ingestedAt.UTC().Format(time.RFC3339),
			SourceMtime: doc.SourceMtime.UTC().Format(time.RFC3339),
			ContentSHA:  doc.ContentSHA,
		},
	}
}
