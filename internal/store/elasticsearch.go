package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// companyDocument is the indexed shape of a company.
type companyDocument struct {
	ID               string            `json:"id"`
	LegalName        string            `json:"legal_name"`
	DisplayName      string            `json:"display_name"`
	Website          string            `json:"website"`
	Country          string            `json:"country"`
	Industry         string            `json:"industry"`
	OwnershipType    string            `json:"ownership_type"`
	LatestRevenueEUR *float64          `json:"latest_revenue_eur"`
	Employees        *int              `json:"employees"`
	Contacts         []contactDocument `json:"contacts"`
}

type contactDocument struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Source companyDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// ElasticsearchCandidates serves candidates from the companies index.
type ElasticsearchCandidates struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticsearchCandidates(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchCandidates {
	if index == "" {
		index = "companies"
	}
	return &ElasticsearchCandidates{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "es_candidates", "index": index}),
	}
}

func (e *ElasticsearchCandidates) FetchCandidates(ctx context.Context, q CandidateQuery) (*CandidateBatch, error) {
	pageSize := EffectivePageSize(q.PageSize)

	res, err := e.search(ctx, "candidates", buildCandidateSearch(q), pageSize+1)
	if err != nil {
		return nil, err
	}

	batch := &CandidateBatch{}
	for _, hit := range res.Hits.Hits {
		batch.Companies = append(batch.Companies, hit.Source.toCompany(hit.ID, q.IncludeContacts))
	}
	if len(batch.Companies) > pageSize {
		batch.Companies = batch.Companies[:pageSize]
		batch.HasMore = true
	}

	e.logger.Debug("candidates fetched", map[string]interface{}{
		"count":   len(batch.Companies),
		"total":   res.Hits.Total.Value,
		"hasMore": batch.HasMore,
	})
	return batch, nil
}

// idsBatchSize keeps each ids lookup well under index.max_result_window.
const idsBatchSize = 1000

func (e *ElasticsearchCandidates) GetCompanies(ctx context.Context, ids []string) (map[string]models.Company, error) {
	out := make(map[string]models.Company, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	for start := 0; start < len(ids); start += idsBatchSize {
		end := start + idsBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		body := map[string]interface{}{
			"query": map[string]interface{}{
				"ids": map[string]interface{}{"values": chunk},
			},
		}
		res, err := e.search(ctx, "companies_by_id", body, len(chunk))
		if err != nil {
			return nil, err
		}
		for _, hit := range res.Hits.Hits {
			c := hit.Source.toCompany(hit.ID, false)
			out[c.ID] = c
		}
	}
	return out, nil
}

func (e *ElasticsearchCandidates) search(ctx context.Context, queryType string, body map[string]interface{}, size int) (*searchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(queryType, err)
	}

	from := 0
	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(payload),
		From:  &from,
		Size:  &size,
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, queryError(ctx, queryType, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewIndexNotFoundError(e.index)
	}
	if res.IsError() {
		return nil, apperrors.NewQueryExecutionFailedError(queryType, fmt.Errorf("elasticsearch returned %s", res.Status()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(queryType, fmt.Errorf("decode response: %w", err))
	}
	return &r, nil
}

// buildCandidateSearch mirrors the Postgres filters: equality filters are
// case-insensitive term matches, free text searches both names.
func buildCandidateSearch(q CandidateQuery) map[string]interface{} {
	var must []interface{}
	var filter []interface{}
	var mustNot []interface{}

	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"legal_name^3", "display_name^2"},
				"type":   "best_fields",
			},
		})
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	if clause := anyTerm("country", q.Countries); clause != nil {
		filter = append(filter, clause)
	}
	if clause := anyTerm("industry", q.Industries); clause != nil {
		filter = append(filter, clause)
	}
	if clause := anyTerm("ownership_type", q.Ownership); clause != nil {
		filter = append(filter, clause)
	}
	if clause := anyTerm("country", q.ExcludeCountries); clause != nil {
		mustNot = append(mustNot, clause)
	}

	if r := rangeClause(q.RevenueMin, q.RevenueMax); r != nil {
		filter = append(filter, map[string]interface{}{"range": map[string]interface{}{"latest_revenue_eur": r}})
	}
	var empMin, empMax *float64
	if q.EmployeesMin != nil {
		v := float64(*q.EmployeesMin)
		empMin = &v
	}
	if q.EmployeesMax != nil {
		v := float64(*q.EmployeesMax)
		empMax = &v
	}
	if r := rangeClause(empMin, empMax); r != nil {
		filter = append(filter, map[string]interface{}{"range": map[string]interface{}{"employees": r}})
	}

	boolQuery := map[string]interface{}{"must": must}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	if len(mustNot) > 0 {
		boolQuery["must_not"] = mustNot
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{"_score", map[string]interface{}{"id": "asc"}},
	}
}

func anyTerm(field string, values []string) map[string]interface{} {
	values = mapStrings(values, func(s string) string { return s })
	if len(values) == 0 {
		return nil
	}
	should := make([]interface{}, 0, len(values))
	for _, v := range values {
		should = append(should, map[string]interface{}{
			"term": map[string]interface{}{
				field: map[string]interface{}{"value": v, "case_insensitive": true},
			},
		})
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{"should": should, "minimum_should_match": 1},
	}
}

func rangeClause(min, max *float64) map[string]interface{} {
	if min == nil && max == nil {
		return nil
	}
	r := map[string]interface{}{}
	if min != nil {
		r["gte"] = *min
	}
	if max != nil {
		r["lte"] = *max
	}
	return r
}

func (d companyDocument) toCompany(hitID string, withContacts bool) models.Company {
	id := d.ID
	if id == "" {
		id = hitID
	}
	c := models.Company{
		ID:               id,
		LegalName:        d.LegalName,
		DisplayName:      d.DisplayName,
		Website:          d.Website,
		Country:          d.Country,
		Industry:         d.Industry,
		OwnershipType:    d.OwnershipType,
		LatestRevenueEUR: d.LatestRevenueEUR,
		Employees:        d.Employees,
	}
	if withContacts {
		for _, ct := range d.Contacts {
			c.Contacts = append(c.Contacts, models.Contact(ct))
		}
	}
	return c
}
