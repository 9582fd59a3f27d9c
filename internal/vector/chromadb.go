package vector

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lessonforge/lessonforge/internal/common"
	"github.com/lessonforge/lessonforge/internal/extract"
)

// Store is the vector-search collaborator consumed by the workflow engine.
// Collections are job-scoped: a collection name is derived from the job id
// and never reused across jobs.
type Store interface {
	Available() bool
	EnsureCollection(ctx context.Context, collection string, dim int) error
	UpsertChunks(ctx context.Context, collection string, chunks []extract.Chunk, vectors [][]float32) error
	Query(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error)
}

type SearchResult struct {
	ID      string
	Score   float32
	Content string
}

// Client talks to a ChromaDB server over its HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	available atomic.Bool

	mu            sync.RWMutex
	collectionIDs map[string]string
}

func NewFromEnv(ctx context.Context) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// New constructs a client using the provided configuration. A client is
// returned even when the server is unreachable; availability is re-probed
// lazily on use.
func New(ctx context.Context, cfg Config) (*Client, error) {
	baseURL := fmt.Sprintf("%s://%s:%s/api/v1", cfg.Scheme, cfg.Host, cfg.Port)
	logger := common.Logger()
	logger.Info("vector: initializing chromadb client", "host", cfg.Host, "port", cfg.Port, "timeout", cfg.Timeout)

	client := &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        cfg.APIKey,
		collectionIDs: make(map[string]string),
	}
	if err := client.probe(ctx); err != nil {
		logger.Warn("vector: chromadb not reachable at startup", "error", err)
		return client, nil
	}
	logger.Info("vector: chromadb connection established")
	return client, nil
}

func (c *Client) Available() bool {
	return c != nil && c.available.Load()
}

func (c *Client) probe(ctx context.Context) error {
	const maxAttempts = 3
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = c.health(ctx)
		if err == nil {
			c.available.Store(true)
			return nil
		}
		select {
		case <-ctx.Done():
			c.available.Store(false)
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 250 * time.Millisecond):
		}
	}
	c.available.Store(false)
	return err
}

func (c *Client) EnsureCollection(ctx context.Context, collection string, dim int) error {
	if c == nil {
		return errors.New("chromadb client not configured")
	}
	if dim <= 0 {
		return errors.New("invalid vector dimension")
	}
	if !c.available.Load() {
		if err := c.probe(ctx); err != nil {
			return fmt.Errorf("chromadb unavailable: %w", err)
		}
	}
	_, err := c.collectionID(ctx, collection)
	return err
}

func (c *Client) UpsertChunks(ctx context.Context, collection string, chunks []extract.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	id, err := c.collectionID(ctx, collection)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(chunks))
	embeddings := make([][]float32, 0, len(chunks))
	documents := make([]string, 0, len(chunks))
	metadatas := make([]map[string]interface{}, 0, len(chunks))
	for idx, chunk := range chunks {
		ids = append(ids, fmt.Sprintf("%s:%d", collection, chunk.Seq))
		if idx < len(vectors) {
			embeddings = append(embeddings, vectors[idx])
		} else {
			embeddings = append(embeddings, nil)
		}
		documents = append(documents, chunk.Content)
		metadatas = append(metadatas, map[string]interface{}{"seq": chunk.Seq})
	}
	payload := map[string]interface{}{
		"ids":        ids,
		"documents":  documents,
		"metadatas":  metadatas,
		"embeddings": embeddings,
	}
	endpoint := fmt.Sprintf("%s/collections/%s/upsert", c.baseURL, url.PathEscape(id))
	if err := c.doRequest(ctx, http.MethodPost, endpoint, payload, nil); err != nil {
		if errors.Is(err, errNotFound) {
			fallback := fmt.Sprintf("%s/collections/%s/add", c.baseURL, url.PathEscape(id))
			return c.doRequest(ctx, http.MethodPost, fallback, payload, nil)
		}
		return err
	}
	return nil
}

func (c *Client) Query(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error) {
	id, err := c.collectionID(ctx, collection)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	body := map[string]interface{}{
		"query_embeddings": [][]float32{vector},
		"n_results":        limit,
	}
	endpoint := fmt.Sprintf("%s/collections/%s/query", c.baseURL, url.PathEscape(id))
	var resp struct {
		IDs       [][]string  `json:"ids"`
		Distances [][]float64 `json:"distances"`
		Documents [][]string  `json:"documents"`
	}
	if err := c.doRequest(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}
	results := make([]SearchResult, 0, len(resp.IDs[0]))
	for idx, docID := range resp.IDs[0] {
		result := SearchResult{ID: docID}
		if len(resp.Documents) > 0 && idx < len(resp.Documents[0]) {
			result.Content = resp.Documents[0][idx]
		}
		if len(resp.Distances) > 0 && idx < len(resp.Distances[0]) {
			result.Score = float32(1.0 / (1.0 + resp.Distances[0][idx]))
		}
		results = append(results, result)
	}
	return results, nil
}

var _ Store = (*Client)(nil)

func (c *Client) collectionID(ctx context.Context, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.New("collection name required")
	}
	c.mu.RLock()
	id, ok := c.collectionIDs[trimmed]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}
	id, err := c.findCollection(ctx, trimmed)
	if err != nil {
		return "", err
	}
	if id == "" {
		id, err = c.createCollection(ctx, trimmed)
		if err != nil {
			return "", err
		}
	}
	c.mu.Lock()
	c.collectionIDs[trimmed] = id
	c.mu.Unlock()
	return id, nil
}

func (c *Client) findCollection(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/collections?name=%s", c.baseURL, url.QueryEscape(name))
	var resp struct {
		Collections []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return "", nil
		}
		// Fallback to enumerating collections when the name filter is unsupported.
		endpoint = fmt.Sprintf("%s/collections", c.baseURL)
		if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return "", err
		}
	}
	for _, col := range resp.Collections {
		if strings.EqualFold(col.Name, name) {
			return col.ID, nil
		}
	}
	return "", nil
}

func (c *Client) createCollection(ctx context.Context, name string) (string, error) {
	payload := map[string]interface{}{"name": name}
	endpoint := fmt.Sprintf("%s/collections", c.baseURL)
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, endpoint, payload, &resp); err != nil {
		if errors.Is(err, errConflict) {
			return c.findCollection(ctx, name)
		}
		return "", err
	}
	return resp.ID, nil
}

var (
	errNotFound = errors.New("resource not found")
	errConflict = errors.New("resource conflict")
)

func (c *Client) health(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/heartbeat", c.baseURL)
	return c.doRequest(ctx, http.MethodGet, endpoint, nil, nil)
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	if c == nil {
		return errors.New("chromadb client not configured")
	}
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode == http.StatusConflict {
		return errConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chromadb %s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// JobCollectionName derives the vector collection for a job. The full job id
// is hashed so arbitrarily long ids still map to distinct collections and
// retrieved context cannot leak across jobs.
func JobCollectionName(jobID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(jobID)))
	return "job_" + hex.EncodeToString(sum[:16])
}
