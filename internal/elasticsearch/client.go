package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/govtrack/backend/internal/repository"
)

const (
	opportunitiesIndex = "opportunities"
	sourcesIndex       = "sources"
	trackingIndex      = "tracking"

	defaultPageSize = 200
)

// Client wraps go-elasticsearch with the document-store helpers the
// repositories need: get by id, merge upsert and paged term queries.
type Client struct {
	es       *elasticsearch.Client
	prefix   string
	pageSize int
	log      *slog.Logger
}

// New instantiates the Elasticsearch client. Index names are prefix + collection.
func New(addr, prefix string, pageSize int, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{es: es, prefix: prefix, pageSize: pageSize, log: logger}, nil
}

func (c *Client) index(name string) string {
	return c.prefix + name
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health checks cluster health.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// EnsureIndices creates the collection indices with their mappings when missing.
func (c *Client) EnsureIndices(ctx context.Context) error {
	for name, mapping := range indexMappings {
		idx := c.index(name)

		res, err := c.es.Indices.Exists([]string{idx}, c.es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("check index %s: %w", idx, err)
		}
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			continue
		}

		payload, err := json.Marshal(map[string]any{"mappings": mapping})
		if err != nil {
			return fmt.Errorf("marshal mapping %s: %w", idx, err)
		}

		res, err = c.es.Indices.Create(idx,
			c.es.Indices.Create.WithContext(ctx),
			c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
		)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx, err)
		}
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		if res.IsError() && !strings.Contains(string(body), "resource_already_exists_exception") {
			return fmt.Errorf("create index %s failed: %s", idx, strings.TrimSpace(string(body)))
		}
		c.log.Info("created index", slog.String("index", idx))
	}
	return nil
}

func (c *Client) getDoc(ctx context.Context, index, id string, out any) error {
	req := esapi.GetRequest{
		Index:      c.index(index),
		DocumentID: id,
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", index, id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s/%s: %w", index, id, repository.ErrNotFound)
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("get %s/%s failed: %s", index, id, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode %s/%s: %w", index, id, err)
	}
	if !parsed.Found {
		return fmt.Errorf("%s/%s: %w", index, id, repository.ErrNotFound)
	}
	return json.Unmarshal(parsed.Source, out)
}

// upsertDoc merges doc into the stored document, creating it when absent.
func (c *Client) upsertDoc(ctx context.Context, index, id string, doc any) error {
	payload, err := json.Marshal(map[string]any{
		"doc":           doc,
		"doc_as_upsert": true,
	})
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.UpdateRequest{
		Index:      c.index(index),
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", index, id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("upsert %s/%s failed: %s", index, id, strings.TrimSpace(string(body)))
	}

	return nil
}

// updateFields applies a partial update to an existing document only.
func (c *Client) updateFields(ctx context.Context, index, id string, fields map[string]any) error {
	payload, err := json.Marshal(map[string]any{"doc": fields})
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	req := esapi.UpdateRequest{
		Index:      c.index(index),
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", index, id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s/%s: %w", index, id, repository.ErrNotFound)
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("update %s/%s failed: %s", index, id, strings.TrimSpace(string(body)))
	}
	return nil
}

// searchAll pages through every hit of a bool filter query using search_after.
// sort must end with a unique field so pages never overlap.
func (c *Client) searchAll(ctx context.Context, index string, filters []map[string]any, sort []map[string]any, each func(json.RawMessage) error) error {
	var after []any

	for {
		body := map[string]any{
			"size": c.pageSize,
			"query": map[string]any{
				"bool": map[string]any{"filter": filters},
			},
			"sort": sort,
		}
		if after != nil {
			body["search_after"] = after
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal search body: %w", err)
		}

		res, err := c.es.Search(
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(c.index(index)),
			c.es.Search.WithBody(bytes.NewReader(payload)),
		)
		if err != nil {
			return fmt.Errorf("search %s: %w", index, err)
		}

		var parsed struct {
			Hits struct {
				Hits []struct {
					Source json.RawMessage `json:"_source"`
					Sort   []any           `json:"sort"`
				} `json:"hits"`
			} `json:"hits"`
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return fmt.Errorf("search %s failed: %s", index, strings.TrimSpace(string(data)))
		}
		err = json.NewDecoder(res.Body).Decode(&parsed)
		res.Body.Close()
		if err != nil {
			return fmt.Errorf("decode search response: %w", err)
		}

		for _, hit := range parsed.Hits.Hits {
			if err := each(hit.Source); err != nil {
				return err
			}
		}

		if len(parsed.Hits.Hits) < c.pageSize {
			return nil
		}
		after = parsed.Hits.Hits[len(parsed.Hits.Hits)-1].Sort
	}
}

func term(field string, value any) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}

func ascending(fields ...string) []map[string]any {
	out := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, map[string]any{f: map[string]any{"order": "asc", "missing": "_last"}})
	}
	return out
}

var indexMappings = map[string]map[string]any{
	opportunitiesIndex: {
		"properties": map[string]any{
			"id":             map[string]any{"type": "keyword"},
			"title":          map[string]any{"type": "text"},
			"state":          map[string]any{"type": "keyword"},
			"qualification":  map[string]any{"type": "keyword"},
			"startDate":      map[string]any{"type": "keyword"},
			"endDate":        map[string]any{"type": "keyword"},
			"officialUrl":    map[string]any{"type": "keyword"},
			"sourceId":       map[string]any{"type": "keyword"},
			"verified":       map[string]any{"type": "keyword"},
			"lastVerifiedAt": map[string]any{"type": "date"},
			"createdAt":      map[string]any{"type": "date"},
			"updatedAt":      map[string]any{"type": "date"},
		},
	},
	sourcesIndex: {
		"properties": map[string]any{
			"id":                    map[string]any{"type": "keyword"},
			"name":                  map[string]any{"type": "text"},
			"url":                   map[string]any{"type": "keyword"},
			"checkFrequencyMinutes": map[string]any{"type": "integer"},
			"lastHash":              map[string]any{"type": "keyword"},
			"lastCheckedAt":         map[string]any{"type": "date"},
			"status":                map[string]any{"type": "keyword"},
		},
	},
	trackingIndex: {
		"properties": map[string]any{
			"id":            map[string]any{"type": "keyword"},
			"userId":        map[string]any{"type": "keyword"},
			"opportunityId": map[string]any{"type": "keyword"},
			"status":        map[string]any{"type": "keyword"},
			"updatedAt":     map[string]any{"type": "date"},
		},
	},
}
