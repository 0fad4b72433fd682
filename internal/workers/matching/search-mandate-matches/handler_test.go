// internal/workers/matching/search-mandate-matches/handler_test.go
package searchmandatematches

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mandate-matching/internal/common/config"
	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/models"
	"mandate-matching/internal/search"
	"mandate-matching/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, req search.Request) (*search.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.Result), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "mandate-sourcing",
		ElementId:          "Activity_SearchMandateMatches",
		CustomHeaders:      "{}",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T) (*Handler, *MockSearcher) {
	searcher := new(MockSearcher)
	h, err := NewHandler(DefaultConfig(), searcher, nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	return h, searcher
}

func TestNewHandler_InvalidConfig(t *testing.T) {
	_, err := NewHandler(&Config{Timeout: -time.Second, MaxJobsActive: 1}, new(MockSearcher), nil, logger.NewNoOpLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be positive")
}

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(config.WorkerConfig{Enabled: true, MaxJobsActive: 2, Timeout: 5000}, registry.Default())

	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.NotEmpty(t, cfg.InputSchema)
}

func TestHandler_Execute(t *testing.T) {
	h, searcher := newTestHandler(t)
	searcher.On("Search", mock.Anything, search.Request{MandateID: "m-1", Query: "acme", PageSize: 5}).
		Return(&search.Result{
			MandateID: "m-1",
			Matches: []search.Match{{
				Company:     models.Company{ID: "c-1", LegalName: "Acme BV", Country: "NL"},
				MatchResult: models.MatchResult{CompanyID: "c-1", MatchScore: 0.8, Explain: map[models.Factor]float64{models.FactorGeo: 0.2}},
			}},
			WeightsVersion: 3,
			HasMore:        true,
		}, nil)

	output, err := h.Execute(context.Background(), &Input{MandateID: "m-1", Query: "acme", PageSize: 5})

	require.NoError(t, err)
	require.Len(t, output.Matches, 1)
	assert.Equal(t, "c-1", output.Matches[0].CompanyID)
	assert.Equal(t, 0.8, output.Matches[0].MatchScore)
	assert.Equal(t, 1, output.MatchCount)
	assert.True(t, output.HasMore)
	assert.Equal(t, int64(3), output.WeightsVersion)
	searcher.AssertExpectations(t)
}

func TestHandler_Execute_EmptyResult(t *testing.T) {
	h, searcher := newTestHandler(t)
	searcher.On("Search", mock.Anything, mock.Anything).Return(&search.Result{MandateID: "m-1"}, nil)

	output, err := h.Execute(context.Background(), &Input{MandateID: "m-1"})

	require.NoError(t, err)
	assert.NotNil(t, output.Matches)
	assert.Zero(t, output.MatchCount)
}

func TestHandler_Execute_PropagatesErrors(t *testing.T) {
	h, searcher := newTestHandler(t)
	searcher.On("Search", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewDataUnavailableError("candidates", errors.New("refused")))

	_, err := h.Execute(context.Background(), &Input{MandateID: "m-1"})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDataUnavailable))
}

func TestHandler_Process_DecodesCriteria(t *testing.T) {
	h, searcher := newTestHandler(t)
	searcher.On("Search", mock.Anything, mock.MatchedBy(func(req search.Request) bool {
		return req.MandateID == "m-1" && req.Criteria != nil && req.Criteria.IndustryAllow[0] == "software"
	})).Return(&search.Result{}, nil)

	job := createMockJob(1, map[string]interface{}{
		"mandateId": "m-1",
		"criteria":  map[string]interface{}{"industryAllow": []string{"software"}},
	})
	_, err := h.process(context.Background(), job)

	require.NoError(t, err)
	searcher.AssertExpectations(t)
}

func TestHandler_Process_RejectsInvalidVariables(t *testing.T) {
	tests := []struct {
		name      string
		variables map[string]interface{}
	}{
		{"missing mandate", map[string]interface{}{"query": "acme"}},
		{"empty mandate", map[string]interface{}{"mandateId": ""}},
		{"negative page size", map[string]interface{}{"mandateId": "m-1", "pageSize": -1}},
		{"wrong type", map[string]interface{}{"mandateId": 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, searcher := newTestHandler(t)

			_, err := h.process(context.Background(), createMockJob(1, tt.variables))

			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
			searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
		})
	}
}
