// Package qdrant provides a vector store adapter using the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/notevault/notevault-cli/internal/core/domain"
	"github.com/notevault/notevault-cli/internal/core/ports/driven"
	"github.com/notevault/notevault-cli/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.VectorStore = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL  = "http://localhost:6333"
	DefaultTimeout  = 60 * time.Second
	DefaultDistance = "Cosine"

	// scrollPageSize bounds one page of a points scroll.
	scrollPageSize = 256
)

// Config holds configuration for the Qdrant client.
type Config struct {
	// BaseURL is the Qdrant REST endpoint (default: http://localhost:6333).
	BaseURL string

	// APIKey is sent in the api-key header when set.
	APIKey string

	// VectorName is the named-vector key points are written under.
	VectorName string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// Client talks to Qdrant over REST.
type Client struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	vectorName string
}

// NewClient creates a Qdrant client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		vectorName: cfg.VectorName,
	}
}

// envelope is the Qdrant response wrapper.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

// statusError extracts the error message from a non-ok status field.
func (e *envelope) statusError() string {
	var s string
	if err := json.Unmarshal(e.Status, &s); err == nil {
		if s == "ok" {
			return ""
		}
		return s
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(e.Status, &obj); err == nil {
		return obj.Error
	}
	return string(e.Status)
}

// do performs one request and decodes the response envelope.
// Network failures and 5xx responses wrap domain.ErrStoreUnavailable
// since no further store operations can succeed.
func (c *Client) do(ctx context.Context, method, path string, reqBody, result any) error {
	var body io.Reader = http.NoBody
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: qdrant %s %s", domain.ErrNotFound, method, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: qdrant status %d: %s", domain.ErrStoreUnavailable, resp.StatusCode, string(respBody))
	case resp.StatusCode >= 400:
		return fmt.Errorf("qdrant error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if msg := env.statusError(); msg != "" {
		return fmt.Errorf("qdrant error: %s", msg)
	}
	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// collectionInfo mirrors the parts of GET /collections/{name} we inspect.
type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors json.RawMessage `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// vectorParams is one named-vector configuration.
type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// CollectionInfo returns the live schema of a collection.
// Only the first configured named vector is reported; an unnamed-vector
// collection is returned with an empty VectorName.
func (c *Client) CollectionInfo(ctx context.Context, name string) (*driven.CollectionSpec, error) {
	var info collectionInfo
	if err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, &info); err != nil {
		return nil, err
	}

	spec := &driven.CollectionSpec{Name: name}

	// Old-format collections declare a single unnamed vector: the
	// params object carries "size" directly instead of a name mapping.
	var unnamed vectorParams
	if err := json.Unmarshal(info.Config.Params.Vectors, &unnamed); err == nil && unnamed.Size > 0 {
		spec.Dimension = unnamed.Size
		spec.Distance = unnamed.Distance
		return spec, nil
	}

	var named map[string]vectorParams
	if err := json.Unmarshal(info.Config.Params.Vectors, &named); err != nil {
		return nil, fmt.Errorf("parse vectors config: %w", err)
	}
	for vectorName, params := range named {
		spec.VectorName = vectorName
		spec.Dimension = params.Size
		spec.Distance = params.Distance
		break
	}
	return spec, nil
}

// EnsureCollection creates the collection if missing and validates the
// schema if present. A mismatch is reported, never repaired: silent schema
// drift would corrupt previously ingested vectors.
func (c *Client) EnsureCollection(ctx context.Context, spec driven.CollectionSpec) (driven.CollectionStatus, error) {
	existing, err := c.CollectionInfo(ctx, spec.Name)
	switch {
	case err == nil:
		if existing.VectorName == "" {
			return driven.CollectionIncompatible, fmt.Errorf(
				"%w: collection %q uses unnamed vectors but named vector %q is required; recreate it explicitly",
				domain.ErrSchemaIncompatible, spec.Name, spec.VectorName)
		}
		if existing.VectorName != spec.VectorName {
			return driven.CollectionIncompatible, fmt.Errorf(
				"%w: collection %q has vector %q, want %q",
				domain.ErrSchemaIncompatible, spec.Name, existing.VectorName, spec.VectorName)
		}
		if existing.Dimension != spec.Dimension {
			return driven.CollectionIncompatible, fmt.Errorf(
				"%w: collection %q has dimension %d, want %d",
				domain.ErrSchemaIncompatible, spec.Name, existing.Dimension, spec.Dimension)
		}
		if existing.Distance != spec.Distance {
			return driven.CollectionIncompatible, fmt.Errorf(
				"%w: collection %q has distance %s, want %s",
				domain.ErrSchemaIncompatible, spec.Name, existing.Distance, spec.Distance)
		}
		return driven.CollectionReady, nil

	case isNotFound(err):
		if err := c.createCollection(ctx, spec); err != nil {
			return "", err
		}
		logger.Info("Created collection %s (vector %s, dim %d)", spec.Name, spec.VectorName, spec.Dimension)
		return driven.CollectionCreated, nil

	default:
		return "", err
	}
}

// RecreateCollection drops and recreates the collection. Destructive.
func (c *Client) RecreateCollection(ctx context.Context, spec driven.CollectionSpec) error {
	err := c.do(ctx, http.MethodDelete, "/collections/"+spec.Name, nil, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("drop collection: %w", err)
	}
	return c.createCollection(ctx, spec)
}

func (c *Client) createCollection(ctx context.Context, spec driven.CollectionSpec) error {
	distance := spec.Distance
	if distance == "" {
		distance = DefaultDistance
	}
	body := map[string]any{
		"vectors": map[string]any{
			spec.VectorName: vectorParams{Size: spec.Dimension, Distance: distance},
		},
	}
	if err := c.do(ctx, http.MethodPut, "/collections/"+spec.Name, body, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// upsertPoint is the wire format of one point.
type upsertPoint struct {
	ID      string               `json:"id"`
	Vector  map[string][]float32 `json:"vector"`
	Payload domain.PointPayload  `json:"payload"`
}

// Upsert writes points under the configured named vector, overwriting any
// existing points with the same IDs.
func (c *Client) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	wire := make([]upsertPoint, len(points))
	for i, p := range points {
		wire[i] = upsertPoint{
			ID:      p.ID,
			Vector:  map[string][]float32{c.vectorName: p.Vector},
			Payload: p.Payload,
		}
	}

	body := map[string]any{"points": wire}
	if err := c.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

// scrollRequest is the body of POST /points/scroll.
type scrollRequest struct {
	Filter      filter `json:"filter"`
	Limit       int    `json:"limit"`
	WithPayload bool   `json:"with_payload"`
	WithVector  bool   `json:"with_vector"`
	Offset      any    `json:"offset,omitempty"`
}

type filter struct {
	Must []fieldCondition `json:"must"`
}

type fieldCondition struct {
	Key   string `json:"key"`
	Match struct {
		Value any `json:"value"`
	} `json:"match"`
}

func mustMatch(key string, value any) fieldCondition {
	var fc fieldCondition
	fc.Key = key
	fc.Match.Value = value
	return fc
}

type scrolledPoint struct {
	ID      any                 `json:"id"`
	Payload domain.PointPayload `json:"payload"`
}

type scrollResult struct {
	Points         []scrolledPoint `json:"points"`
	NextPageOffset any             `json:"next_page_offset"`
}

// activeDocFilter matches the active points of one document.
func activeDocFilter(docID string) filter {
	return filter{Must: []fieldCondition{
		mustMatch("doc_id", docID),
		mustMatch("is_active", true),
	}}
}

// ListActivePointIDs scrolls all active points of a document.
func (c *Client) ListActivePointIDs(ctx context.Context, collection, docID string) ([]string, error) {
	var ids []string
	var offset any

	for {
		req := scrollRequest{
			Filter: activeDocFilter(docID),
			Limit:  scrollPageSize,
			Offset: offset,
		}
		var res scrollResult
		if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/scroll", req, &res); err != nil {
			return nil, fmt.Errorf("scroll points: %w", err)
		}
		for _, p := range res.Points {
			ids = append(ids, fmt.Sprintf("%v", p.ID))
		}
		if res.NextPageOffset == nil {
			return ids, nil
		}
		offset = res.NextPageOffset
	}
}

// FindActiveDocVersion returns the doc_version of one active point for the
// document, or domain.ErrNotFound when the document has no active points.
func (c *Client) FindActiveDocVersion(ctx context.Context, collection, docID string) (string, error) {
	req := scrollRequest{
		Filter:      activeDocFilter(docID),
		Limit:       1,
		WithPayload: true,
	}
	var res scrollResult
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/scroll", req, &res); err != nil {
		return "", fmt.Errorf("scroll points: %w", err)
	}
	if len(res.Points) == 0 {
		return "", domain.ErrNotFound
	}
	return res.Points[0].Payload.DocVersion, nil
}

// TombstonePoints flags points inactive rather than deleting them so the
// retrieval consumer can still serve point-in-time queries.
func (c *Client) TombstonePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{
		"payload": map[string]any{
			"is_active":   false,
			"archived_at": time.Now().UTC().Format(time.RFC3339),
		},
		"points": ids,
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/payload?wait=true", body, nil); err != nil {
		return fmt.Errorf("tombstone %d points: %w", len(ids), err)
	}
	return nil
}

// DeletePoints physically removes points.
func (c *Client) DeletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", body, nil); err != nil {
		return fmt.Errorf("delete %d points: %w", len(ids), err)
	}
	return nil
}

// Ping verifies the store is reachable before committing to a run.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/collections", nil, nil); err != nil {
		return fmt.Errorf("qdrant ping: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
