package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/search/filterspec"
	"carmarket-search/internal/search/predicate"
	"carmarket-search/internal/search/sortpage"
)

func newTestES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return client
}

// ==========================
// Query body
// ==========================

func TestBuildSearchBody(t *testing.T) {
	spec := filterspec.New()
	spec.Query = "corolla"
	spec.YearMin = filterspec.IntPtr(2018)
	spec.BodyType = "hovercraft"
	vocab := predicate.Vocabulary{"body_type": {"suv": true}}

	body := BuildSearchBody(predicate.Build(spec, vocab), sortpage.Resolve("mileage", "ASC"), sortpage.NewPage(2, 20), DefaultMaxResultWindow)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, float64(20), decoded["from"])
	assert.Equal(t, float64(20), decoded["size"])
	assert.Equal(t, true, decoded["track_total_hits"])

	filters := decoded["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	require.Len(t, filters, 5)

	status := filters[0].(map[string]interface{})["term"].(map[string]interface{})["status"].(map[string]interface{})
	assert.Equal(t, "approved", status["value"])
	assert.Equal(t, true, status["case_insensitive"])

	should := filters[2].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Len(t, should["should"], 3)
	assert.Equal(t, float64(1), should["minimum_should_match"])

	yearRange := filters[3].(map[string]interface{})["range"].(map[string]interface{})["carDetail.year"].(map[string]interface{})
	assert.Equal(t, float64(2018), yearRange["gte"])

	assert.Contains(t, filters[4].(map[string]interface{})["bool"], "must_not")

	sort := decoded["sort"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "asc", sort["carDetail.mileage"].(map[string]interface{})["order"])
}

func TestBuildSearchBody_ResultWindow(t *testing.T) {
	tests := []struct {
		name     string
		page     sortpage.Page
		window   int
		wantFrom int
		wantSize int
	}{
		{"inside window", sortpage.NewPage(208, 48), DefaultMaxResultWindow, 9936, 48},
		{"ends exactly at window", sortpage.Page{Number: 200, Limit: 50}, 10000, 9950, 50},
		{"past window", sortpage.NewPage(210, 48), DefaultMaxResultWindow, 0, 0},
		{"raised window", sortpage.NewPage(210, 48), 20000, 10032, 48},
		{"huge page", sortpage.NewPage(math.MaxInt, 48), DefaultMaxResultWindow, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := BuildSearchBody(predicate.Mandatory(), sortpage.Resolve("", ""), tt.page, tt.window)

			assert.Equal(t, tt.wantFrom, body["from"])
			assert.Equal(t, tt.wantSize, body["size"])
			assert.Equal(t, true, body["track_total_hits"])
		})
	}
}

func TestCompileES_WildcardEscaping(t *testing.T) {
	clause := compileES(predicate.Contains{Field: predicate.FieldModel, Value: "F*150?"})
	wildcard := clause["wildcard"].(map[string]interface{})["carDetail.model"].(map[string]interface{})
	assert.Equal(t, `*f\*150\?*`, wildcard["value"])
}

// ==========================
// Execute / FindByID
// ==========================

func TestElasticsearchExecutor_Execute(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{
			"took": 3,
			"hits": {
				"total": {"value": 31, "relation": "eq"},
				"hits": [
					{"_id": "a1", "_source": {"id": "a1", "title": "2021 Toyota RAV4", "price": 24500, "status": "approved", "isActive": true,
						"carDetail": {"make": "Toyota", "model": "RAV4", "year": 2021, "bodyType": "suv"}}}
				]
			}
		}`))
	})

	exec := NewElasticsearchExecutor(client, "listings")
	result, err := exec.Execute(context.Background(), predicate.Mandatory(), sortpage.Resolve("", ""), sortpage.NewPage(1, 1))
	require.NoError(t, err)

	assert.Equal(t, "/listings/_search", gotPath)
	assert.Equal(t, float64(1), gotBody["size"])
	assert.Equal(t, int64(31), result.Total)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "RAV4", result.Rows[0].CarDetail.Model)
	assert.Equal(t, "elasticsearch", exec.Backend())
}

func TestElasticsearchExecutor_PagePastWindowReturnsTotalOnly(t *testing.T) {
	var gotBody map[string]interface{}
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"hits": {"total": {"value": 12000, "relation": "eq"}, "hits": []}}`))
	})

	exec := NewElasticsearchExecutor(client, "listings")
	result, err := exec.Execute(context.Background(), predicate.Mandatory(), sortpage.Resolve("", ""), sortpage.NewPage(210, 48))
	require.NoError(t, err)

	assert.Equal(t, float64(0), gotBody["from"])
	assert.Equal(t, float64(0), gotBody["size"])
	assert.Equal(t, int64(12000), result.Total)
	assert.NotNil(t, result.Rows)
	assert.Empty(t, result.Rows)
}

func TestElasticsearchExecutor_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   errors.ErrorCode
	}{
		{"missing index", http.StatusNotFound, errors.ErrCodeIndexNotFound},
		{"bad request", http.StatusBadRequest, errors.ErrCodeSearchQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(fmt.Sprintf(`{"error": {"type": "x"}, "status": %d}`, tt.status)))
			})

			_, err := NewElasticsearchExecutor(client, "listings").
				Execute(context.Background(), predicate.Mandatory(), sortpage.Resolve("", ""), sortpage.NewPage(1, 10))
			assert.True(t, errors.HasCode(err, tt.want), "got %v", err)
		})
	}
}

func TestElasticsearchExecutor_FindByID(t *testing.T) {
	docs := map[string]string{
		"pub":    `{"_id": "pub", "found": true, "_source": {"id": "pub", "status": "approved", "isActive": true, "carDetail": {"make": "Honda"}}}`,
		"hidden": `{"_id": "hidden", "found": true, "_source": {"id": "hidden", "status": "pending", "isActive": true}}`,
	}

	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		doc, ok := docs[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"_id": "` + id + `", "found": false}`))
			return
		}
		_, _ = w.Write([]byte(doc))
	})
	exec := NewElasticsearchExecutor(client, "listings")

	listing, err := exec.FindByID(context.Background(), "pub")
	require.NoError(t, err)
	assert.Equal(t, "Honda", listing.CarDetail.Make)

	_, err = exec.FindByID(context.Background(), "hidden")
	assert.True(t, errors.HasCode(err, errors.ErrCodeListingNotFound))

	_, err = exec.FindByID(context.Background(), "gone")
	assert.True(t, errors.HasCode(err, errors.ErrCodeListingNotFound))
}
