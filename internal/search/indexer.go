// Package search mirrors service request snapshots into Elasticsearch so
// back-office screens can run free-text queries over them.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"servicedesk/internal/common/logger"
	"servicedesk/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Mapping is the index definition EnsureIndex creates at startup.
const Mapping = `{
  "mappings": {
    "properties": {
      "code":        {"type": "keyword"},
      "title":       {"type": "text"},
      "description": {"type": "text"},
      "category":    {"type": "keyword"},
      "priority":    {"type": "keyword"},
      "status":      {"type": "keyword"},
      "tenantId":    {"type": "keyword"},
      "propertyId":  {"type": "keyword"},
      "unitId":      {"type": "keyword"},
      "workerId":    {"type": "keyword"},
      "submittedAt": {"type": "date"},
      "completedAt": {"type": "date"},
      "updatedAt":   {"type": "date"},
      "version":     {"type": "long"}
    }
  }
}`

// Document is the indexed snapshot of a request. The activity log is not
// indexed.
type Document struct {
	Code        string     `json:"code"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	TenantID    string     `json:"tenantId"`
	PropertyID  string     `json:"propertyId"`
	UnitID      string     `json:"unitId,omitempty"`
	WorkerID    string     `json:"workerId,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Version     int64      `json:"version"`
}

func documentOf(req models.ServiceRequest, at time.Time) Document {
	return Document{
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    string(req.Priority),
		Status:      string(req.Status),
		TenantID:    req.TenantID,
		PropertyID:  req.Property.PropertyID,
		UnitID:      req.Property.UnitID,
		WorkerID:    req.WorkerID,
		SubmittedAt: req.SubmittedAt,
		CompletedAt: req.CompletedAt,
		UpdatedAt:   at,
		Version:     req.Version,
	}
}

const indexTimeout = 5 * time.Second

// Indexer is a models.EventSink that upserts the request snapshot carried by
// each lifecycle event.
type Indexer struct {
	client  *elasticsearch.Client
	index   string
	timeout time.Duration
	logger  logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client:  client,
		index:   index,
		timeout: indexTimeout,
		logger:  log.WithFields(map[string]interface{}{"component": "search-indexer", "index": index}),
	}
}

// Publish indexes the snapshot with external versioning, so an older
// snapshot arriving late never overwrites a newer one.
func (i *Indexer) Publish(ctx context.Context, event models.LifecycleEvent) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if err := i.Index(ctx, event.Request, event.OccurredAt); err != nil {
		i.logger.Warn("failed to index service request", map[string]interface{}{
			"code":  event.Request.Code,
			"error": err.Error(),
		})
	}
}

func (i *Indexer) Index(ctx context.Context, req models.ServiceRequest, at time.Time) error {
	body, err := json.Marshal(documentOf(req, at))
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	version := int(req.Version)
	res, err := esapi.IndexRequest{
		Index:       i.index,
		DocumentID:  req.Code,
		Body:        bytes.NewReader(body),
		Version:     &version,
		VersionType: "external",
	}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		i.logger.Debug("stale snapshot skipped", map[string]interface{}{"code": req.Code, "version": req.Version})
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("index %s: %s", req.Code, res.Status())
	}
	return nil
}

// Query narrows Search. Text runs a full-text match over title and
// description; the other fields are exact filters.
type Query struct {
	Text       string
	Status     models.Status
	Priority   models.Priority
	TenantID   string
	WorkerID   string
	PropertyID string
	From       int
	Size       int
}

type Result struct {
	Total int        `json:"total"`
	Hits  []Document `json:"hits"`
}

func (i *Indexer) Search(ctx context.Context, q Query) (*Result, error) {
	if q.Size <= 0 {
		q.Size = 20
	}

	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  strings.NewReader(string(body)),
		From:  &q.From,
		Size:  &q.Size,
	}.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", i.index, res.Status())
	}

	var raw struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := &Result{Total: raw.Hits.Total.Value, Hits: make([]Document, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		out.Hits = append(out.Hits, h.Source)
	}
	return out, nil
}

func buildQuery(q Query) map[string]interface{} {
	mustClauses := []interface{}{}
	filterClauses := []interface{}{}

	if strings.TrimSpace(q.Text) != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"title^2", "description"},
				"type":   "best_fields",
			},
		})
	}

	terms := map[string]string{
		"status":     string(q.Status),
		"priority":   string(q.Priority),
		"tenantId":   q.TenantID,
		"workerId":   q.WorkerID,
		"propertyId": q.PropertyID,
	}
	for _, field := range []string{"status", "priority", "tenantId", "workerId", "propertyId"} {
		if v := terms[field]; v != "" {
			filterClauses = append(filterClauses, map[string]interface{}{
				"term": map[string]interface{}{field: v},
			})
		}
	}

	if len(mustClauses) == 0 {
		mustClauses = append(mustClauses, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   mustClauses,
				"filter": filterClauses,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"submittedAt": map[string]interface{}{"order": "desc"}},
		},
	}
}
