// Package search keeps a full-text product index in Elasticsearch.
package search

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

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

// document is the indexed form of a product.
type document struct {
	domain.Product
	EffectivePrice int64 `json:"effective_price"`
}

func newDocument(p *domain.Product) document {
	return document{Product: *p, EffectivePrice: p.EffectivePrice()}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID    string `json:"_id"`
			Error struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// Elasticsearch indexes and queries products.
type Elasticsearch struct {
	client *elasticsearch.Client
	index  string
	logger *slog.Logger
}

// NewElasticsearch connects to url and creates the index when missing.
func NewElasticsearch(ctx context.Context, url, index string, logger *slog.Logger) (*Elasticsearch, error) {
	if index == "" {
		index = DefaultIndex
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{url}})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	e := &Elasticsearch{client: client, index: index, logger: logger}
	if err := e.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Elasticsearch) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

func (e *Elasticsearch) ensureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", e.index, err)
	}
	closeBody(res)
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = e.client.Indices.Create(e.index,
		e.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", e.index, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError("create index", res)
	}

	e.logger.Info("elasticsearch index created", slog.String("index", e.index))
	return nil
}

// Index adds or replaces a product document.
func (e *Elasticsearch) Index(ctx context.Context, product *domain.Product) error {
	body, err := json.Marshal(newDocument(product))
	if err != nil {
		return fmt.Errorf("marshal product %s: %w", product.ID, err)
	}

	res, err := e.client.Index(e.index, bytes.NewReader(body),
		e.client.Index.WithDocumentID(product.ID),
		e.client.Index.WithRefresh("true"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index product %s: %w", product.ID, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError("index product", res)
	}
	return nil
}

// Delete removes a product document. A missing document is not an error.
func (e *Elasticsearch) Delete(ctx context.Context, id string) error {
	res, err := e.client.Delete(e.index, id, e.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	defer closeBody(res)
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete product", res)
	}
	return nil
}

// BulkIndex adds or replaces many product documents in one request.
func (e *Elasticsearch) BulkIndex(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range products {
		action := map[string]any{"index": map[string]any{"_index": e.index, "_id": products[i].ID}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(newDocument(&products[i])); err != nil {
			return fmt.Errorf("encode bulk document: %w", err)
		}
	}

	res, err := e.client.Bulk(&buf,
		e.client.Bulk.WithIndex(e.index),
		e.client.Bulk.WithRefresh("true"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError("bulk index", res)
	}

	var bulk bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if bulk.Errors {
		var failed []string
		for _, item := range bulk.Items {
			if item.Index.Error.Type != "" {
				failed = append(failed, fmt.Sprintf("%s: %s", item.Index.ID, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("bulk index: %d documents failed: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

// Search runs q and returns one page of products with the total hit count.
func (e *Elasticsearch) Search(ctx context.Context, q domain.ProductSearch, page pagination.Params) ([]domain.Product, int, error) {
	body, err := json.Marshal(buildQuery(q, page))
	if err != nil {
		return nil, 0, fmt.Errorf("marshal search query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithTrackTotalHits(true),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search products: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return nil, 0, responseError("search products", res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}

	products := make([]domain.Product, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		products = append(products, hit.Source.Product)
	}
	return products, sr.Hits.Total.Value, nil
}

func buildQuery(q domain.ProductSearch, page pagination.Params) map[string]any {
	must := map[string]any{"match_all": map[string]any{}}
	if q.Text != "" {
		must = map[string]any{
			"multi_match": map[string]any{
				"query":         q.Text,
				"fields":        []string{"name^3", "name.autocomplete^2", "description", "niche"},
				"type":          "best_fields",
				"fuzziness":     "AUTO",
				"prefix_length": 1,
			},
		}
	}

	var filters []any
	if q.Category != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"category": q.Category}})
	}
	if q.Status != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"status": q.Status}})
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		bounds := map[string]any{}
		if q.MinPrice != nil {
			bounds["gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			bounds["lte"] = *q.MaxPrice
		}
		filters = append(filters, map[string]any{"range": map[string]any{"effective_price": bounds}})
	}

	boolQuery := map[string]any{"must": []any{must}}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"from":  page.Offset(),
		"size":  page.Limit(),
		"sort":  sortClause(q.Sort),
	}
}

func sortClause(sort string) []any {
	switch sort {
	case domain.SortPriceAsc:
		return []any{map[string]any{"effective_price": "asc"}}
	case domain.SortPriceDesc:
		return []any{map[string]any{"effective_price": "desc"}}
	case domain.SortNewest:
		return []any{map[string]any{"created_at": "desc"}}
	default:
		return []any{map[string]any{"_score": "desc"}}
	}
}

func responseError(op string, res *esapi.Response) error {
	var er errorResponse
	if err := json.NewDecoder(res.Body).Decode(&er); err == nil && er.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, er.Error.Type, er.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, res.Status())
}

func closeBody(res *esapi.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
