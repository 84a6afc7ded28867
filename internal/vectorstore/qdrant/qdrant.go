package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/vectorstore"
)

// upsertBatch bounds the number of points per upsert request.
const upsertBatch = 256

// Client mirrors a built index into a Qdrant collection over the REST API.
// The collection uses Euclid distance so scores match the local index.
type Client struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

var _ vectorstore.Mirror = (*Client)(nil)

type point struct {
	ID      int            `json:"id"`
	Vector  domain.Vector  `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Publish replaces the collection with the contents of idx. Point ids are
// entry positions, so a hit maps back to the same chunk locally.
func (c *Client) Publish(ctx context.Context, idx *vectorstore.Index) error {
	if idx.Len() == 0 {
		return domain.NewError(domain.KindEmptyIndex, "publish", "index has no entries")
	}
	collURL := fmt.Sprintf("%s/collections/%s", c.url, c.collection)

	if err := c.do(ctx, http.MethodDelete, collURL, nil, nil, http.StatusNotFound); err != nil {
		return err
	}
	create := map[string]any{
		"vectors": map[string]any{
			"size":     idx.Dimension(),
			"distance": "Euclid",
		},
	}
	if err := c.do(ctx, http.MethodPut, collURL, create, nil); err != nil {
		return err
	}

	chunks := idx.Chunks()
	for begin := 0; begin < len(chunks); begin += upsertBatch {
		end := min(begin+upsertBatch, len(chunks))
		points := make([]point, 0, end-begin)
		for i := begin; i < end; i++ {
			ch := chunks[i]
			points = append(points, point{
				ID:     i,
				Vector: idx.Vector(i),
				Payload: map[string]any{
					"document_id": ch.DocumentID,
					"chunk_id":    ch.ChunkID,
					"index":       ch.Index,
					"offset":      ch.Offset,
					"length":      ch.Length,
					"overlap":     ch.Overlap,
					"text":        ch.Text,
				},
			})
		}
		if err := c.do(ctx, http.MethodPut, collURL+"/points?wait=true", map[string]any{"points": points}, nil); err != nil {
			return fmt.Errorf("upsert points %d-%d: %w", begin, end-1, err)
		}
	}
	return nil
}

type searchResponse struct {
	Result []struct {
		ID      int     `json:"id"`
		Score   float64 `json:"score"`
		Payload struct {
			DocumentID string `json:"document_id"`
			ChunkID    string `json:"chunk_id"`
			Index      int    `json:"index"`
			Offset     int    `json:"offset"`
			Length     int    `json:"length"`
			Overlap    int    `json:"overlap"`
			Text       string `json:"text"`
		} `json:"payload"`
	} `json:"result"`
}

// Search queries the mirrored collection. For Euclid collections Qdrant
// reports the distance itself as the score. Hits come back ordered by
// (distance, position) like local index hits, whatever order Qdrant used
// for equal scores.
func (c *Client) Search(ctx context.Context, query domain.Vector, k int) ([]vectorstore.Hit, error) {
	if k <= 0 {
		return nil, domain.NewError(domain.KindInvalidParams, "search", "k must be positive, got %d", k)
	}
	req := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
	}
	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", c.url, c.collection), req, &resp); err != nil {
		return nil, err
	}

	hits := make([]vectorstore.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := r.Payload
		hits = append(hits, vectorstore.Hit{
			Position: r.ID,
			Distance: r.Score,
			Chunk: domain.Chunk{
				DocumentID: p.DocumentID,
				ChunkID:    p.ChunkID,
				Text:       p.Text,
				Index:      p.Index,
				Offset:     p.Offset,
				Length:     p.Length,
				Overlap:    p.Overlap,
			},
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})
	return hits, nil
}

// do sends body as JSON and decodes the response into out when non-nil.
// Statuses listed in allow are treated as success.
func (c *Client) do(ctx context.Context, method, url string, body, out any, allow ...int) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, code := range allow {
		if resp.StatusCode == code {
			return nil
		}
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
