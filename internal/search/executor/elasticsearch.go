package executor

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"carmarket-search/internal/common/errors"
	"carmarket-search/internal/models"
	"carmarket-search/internal/search/predicate"
	"carmarket-search/internal/search/sortpage"
)

// DefaultMaxResultWindow mirrors the index.max_result_window default.
const DefaultMaxResultWindow = 10000

// ElasticsearchExecutor runs predicates as a bool filter query against an index
// of Listing documents (car fields nested under carDetail).
type ElasticsearchExecutor struct {
	client    *elasticsearch.Client
	index     string
	maxWindow int
}

func NewElasticsearchExecutor(client *elasticsearch.Client, index string) *ElasticsearchExecutor {
	return &ElasticsearchExecutor{client: client, index: index, maxWindow: DefaultMaxResultWindow}
}

// WithMaxResultWindow matches the index setting when it was raised or lowered.
func (e *ElasticsearchExecutor) WithMaxResultWindow(n int) *ElasticsearchExecutor {
	if n > 0 {
		e.maxWindow = n
	}
	return e
}

func (e *ElasticsearchExecutor) Backend() string { return "elasticsearch" }

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source models.Listing `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticsearchExecutor) Execute(ctx context.Context, preds []predicate.Predicate, sort sortpage.Sort, page sortpage.Page) (*Result, error) {
	body, err := json.Marshal(BuildSearchBody(preds, sort, page, e.maxWindow))
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, e.transportError(ctx, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, e.responseError(res)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryFailedError(e.index, fmt.Errorf("decode response: %w", err))
	}

	rows := make([]models.Listing, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		rows = append(rows, hit.Source)
	}
	return &Result{Rows: rows, Total: parsed.Hits.Total.Value}, nil
}

func (e *ElasticsearchExecutor) FindByID(ctx context.Context, id string) (*models.Listing, error) {
	req := esapi.GetRequest{Index: e.index, DocumentID: id}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, e.transportError(ctx, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errors.NewListingNotFoundError(id)
	}
	if res.IsError() {
		return nil, e.responseError(res)
	}

	var doc struct {
		Found  bool           `json:"found"`
		Source models.Listing `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, errors.NewSearchQueryFailedError(e.index, fmt.Errorf("decode document: %w", err))
	}
	if !doc.Found || !doc.Source.IsPublic() {
		return nil, errors.NewListingNotFoundError(id)
	}
	return &doc.Source, nil
}

func (e *ElasticsearchExecutor) transportError(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewQueryTimeoutError(string(models.QueryTypeListingSearch))
	}
	return errors.NewStorageUnavailableError("elasticsearch", err)
}

func (e *ElasticsearchExecutor) responseError(res *esapi.Response) error {
	if res.StatusCode == http.StatusNotFound {
		return errors.NewIndexNotFoundError(e.index)
	}
	return errors.NewSearchQueryFailedError(e.index, fmt.Errorf("search query failed: %s", res.String()))
}

// BuildSearchBody renders the full search request body. A page reaching past
// maxWindow is sent as a count-only request so the total is still reported.
func BuildSearchBody(preds []predicate.Predicate, sort sortpage.Sort, page sortpage.Page, maxWindow int) map[string]interface{} {
	filters := make([]interface{}, 0, len(preds))
	for _, p := range preds {
		filters = append(filters, compileES(p))
	}

	from, size := page.Offset(), page.Limit
	if maxWindow > 0 && from+size > maxWindow {
		from, size = 0, 0
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filters,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{docPath(sort.Field): map[string]interface{}{"order": strings.ToLower(sort.Order)}},
			map[string]interface{}{"id": map[string]interface{}{"order": "asc"}},
		},
		"from":             from,
		"size":             size,
		"track_total_hits": true,
	}
}

func compileES(p predicate.Predicate) map[string]interface{} {
	switch v := p.(type) {
	case predicate.Equals:
		if s, ok := v.Value.(string); ok {
			return map[string]interface{}{
				"term": map[string]interface{}{
					docPath(v.Field): map[string]interface{}{"value": s, "case_insensitive": true},
				},
			}
		}
		return map[string]interface{}{"term": map[string]interface{}{docPath(v.Field): v.Value}}
	case predicate.Contains:
		return map[string]interface{}{
			"wildcard": map[string]interface{}{
				docPath(v.Field): map[string]interface{}{
					"value":            "*" + escapeWildcard(strings.ToLower(v.Value)) + "*",
					"case_insensitive": true,
				},
			},
		}
	case predicate.RangeMin:
		return map[string]interface{}{"range": map[string]interface{}{docPath(v.Field): map[string]interface{}{"gte": v.Value}}}
	case predicate.RangeMax:
		return map[string]interface{}{"range": map[string]interface{}{docPath(v.Field): map[string]interface{}{"lte": v.Value}}}
	case predicate.Or:
		should := make([]interface{}, len(v.Predicates))
		for i, child := range v.Predicates {
			should[i] = compileES(child)
		}
		return map[string]interface{}{
			"bool": map[string]interface{}{"should": should, "minimum_should_match": 1},
		}
	default:
		return map[string]interface{}{
			"bool": map[string]interface{}{
				"must_not": []interface{}{map[string]interface{}{"match_all": map[string]interface{}{}}},
			},
		}
	}
}

func docPath(f predicate.Field) string {
	if f.Relation == predicate.RelationCar {
		return "carDetail." + f.Name
	}
	return f.Name
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}
