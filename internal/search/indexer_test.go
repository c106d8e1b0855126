package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"servicedesk/internal/common/logger"
	"servicedesk/internal/models"
	"servicedesk/internal/servicerequest"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	body   string
}

func newTestIndexer(t *testing.T, status int, response string) (*Indexer, *[]capturedRequest) {
	t.Helper()

	var (
		mu       sync.Mutex
		requests []capturedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, capturedRequest{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return NewIndexer(client, "service_requests", logger.NewTestLogger(t)), &requests
}

func sampleRequest() models.ServiceRequest {
	return models.ServiceRequest{
		Code:        "SR-20250601-ABC123",
		SubmittedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		Category:    "Plumbing",
		Title:       "Leaking sink",
		Description: "Water pooling under the kitchen sink",
		Priority:    models.PriorityHigh,
		Status:      models.StatusInProgress,
		TenantID:    "tenant-1",
		Property:    models.PropertyRef{PropertyID: "prop-1", UnitID: "4B"},
		WorkerID:    "worker001",
		Version:     3,
	}
}

func TestIndexer_PublishIndexesSnapshot(t *testing.T) {
	idx, requests := newTestIndexer(t, http.StatusCreated, `{"result":"created"}`)

	idx.Publish(context.Background(), models.LifecycleEvent{
		Type:       models.EventStatusChanged,
		Request:    sampleRequest(),
		OccurredAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	})

	require.Len(t, *requests, 1)
	got := (*requests)[0]
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/service_requests/_doc/SR-20250601-ABC123", got.path)
	assert.Contains(t, got.query, "version=3")
	assert.Contains(t, got.query, "version_type=external")

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(got.body), &doc))
	assert.Equal(t, "InProgress", doc.Status)
	assert.Equal(t, "worker001", doc.WorkerID)
	assert.Equal(t, "prop-1", doc.PropertyID)
	assert.Equal(t, int64(3), doc.Version)
}

func TestIndexer_ConflictIsNotAnError(t *testing.T) {
	idx, _ := newTestIndexer(t, http.StatusConflict, `{"error":{"type":"version_conflict_engine_exception"}}`)

	err := idx.Index(context.Background(), sampleRequest(), time.Now())
	assert.NoError(t, err)
}

func TestIndexer_ServerErrorIsReported(t *testing.T) {
	idx, _ := newTestIndexer(t, http.StatusInternalServerError, `{"error":"boom"}`)

	err := idx.Index(context.Background(), sampleRequest(), time.Now())
	assert.Error(t, err)

	assert.NotPanics(t, func() {
		idx.Publish(context.Background(), models.LifecycleEvent{Request: sampleRequest()})
	})
}

func TestIndexer_EditReindexesSnapshot(t *testing.T) {
	idx, requests := newTestIndexer(t, http.StatusCreated, `{"result":"created"}`)
	reg := servicerequest.NewRegistry(servicerequest.NewMemoryStore(), idx, logger.NewTestLogger(t))
	ctx := context.Background()

	req, err := reg.Create(ctx, servicerequest.CreateInput{
		TenantID:    "tenant-1",
		Property:    models.PropertyRef{PropertyID: "prop-1", UnitID: "4B"},
		Category:    "Plumbing",
		Priority:    models.PriorityLow,
		Description: "Dripping tap in the bathroom",
	})
	require.NoError(t, err)

	urgent := models.PriorityUrgent
	_, err = reg.Edit(ctx, req.Code, servicerequest.EditInput{Priority: &urgent, ActorID: "manager-1"})
	require.NoError(t, err)

	require.Len(t, *requests, 2)
	got := (*requests)[1]
	assert.Equal(t, "/service_requests/_doc/"+req.Code, got.path)
	assert.Contains(t, got.query, "version=2")

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(got.body), &doc))
	assert.Equal(t, string(models.PriorityUrgent), doc.Priority)
	assert.Equal(t, int64(2), doc.Version)
}

func TestIndexer_PublishGivesUpAfterTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}, DisableRetry: true})
	require.NoError(t, err)
	idx := NewIndexer(client, "service_requests", logger.NewTestLogger(t))
	idx.timeout = 50 * time.Millisecond

	start := time.Now()
	idx.Publish(context.Background(), models.LifecycleEvent{Type: models.EventStatusChanged, Request: sampleRequest()})
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestIndexer_Search(t *testing.T) {
	response := `{
		"hits": {
			"total": {"value": 1, "relation": "eq"},
			"hits": [
				{"_id": "SR-20250601-ABC123", "_source": {"code": "SR-20250601-ABC123", "title": "Leaking sink", "status": "InProgress", "tenantId": "tenant-1"}}
			]
		}
	}`
	idx, requests := newTestIndexer(t, http.StatusOK, response)

	res, err := idx.Search(context.Background(), Query{Text: "sink", Status: models.StatusInProgress, TenantID: "tenant-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Leaking sink", res.Hits[0].Title)

	got := (*requests)[0]
	assert.True(t, strings.HasSuffix(got.path, "/service_requests/_search"))
	assert.Contains(t, got.body, `"multi_match"`)
	assert.Contains(t, got.body, `{"term":{"status":"InProgress"}}`)
	assert.Contains(t, got.body, `{"term":{"tenantId":"tenant-1"}}`)
	assert.NotContains(t, got.body, `"workerId"`)
}

func TestBuildQuery_MatchAllWithoutText(t *testing.T) {
	q := buildQuery(Query{})
	raw, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"match_all":{}`)
	assert.Contains(t, string(raw), `"filter":[]`)
}
