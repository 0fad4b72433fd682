// internal/workers/matching/search-mandate-matches/handler.go
package searchmandatematches

import (
	"context"

	"mandate-matching/internal/common/camunda"
	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/common/observability"
	"mandate-matching/internal/search"
	"mandate-matching/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = registry.TaskSearchMandateMatches

type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Result, error)
}

type Handler struct {
	config   *Config
	searcher Searcher
	errors   *apperrors.ErrorHandler
	obs      *observability.Observability
	logger   logger.Logger
}

func NewHandler(cfg *Config, searcher Searcher, obs *observability.Observability, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   cfg,
		searcher: searcher,
		errors:   apperrors.NewErrorHandler(log),
		obs:      obs,
		logger:   log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	run := camunda.BeginJob(TaskType, h.obs)

	output, err := h.process(ctx, job)
	if err != nil {
		run.Done(ctx, err)
		h.errors.HandleJobError(context.Background(), client, job, err)
		return
	}
	run.Done(ctx, camunda.CompleteJob(context.Background(), client, job, output, h.logger))
}

func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	var input Input
	if err := camunda.DecodeVariables(job, h.config.InputSchema, &input); err != nil {
		return nil, err
	}
	return h.Execute(ctx, &input)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.searcher.Search(ctx, search.Request{
		MandateID:       input.MandateID,
		Criteria:        input.Criteria,
		Query:           input.Query,
		PageSize:        input.PageSize,
		IncludeContacts: input.IncludeContacts,
	})
	if err != nil {
		return nil, err
	}

	items := make([]MatchItem, 0, len(result.Matches))
	for _, m := range result.Matches {
		items = append(items, MatchItem{
			CompanyID:   m.Company.ID,
			LegalName:   m.Company.LegalName,
			DisplayName: m.Company.DisplayName,
			Country:     m.Company.Country,
			MatchScore:  m.MatchScore,
			Explain:     m.Explain,
			Contacts:    m.Company.Contacts,
		})
	}

	h.logger.Info("mandate search completed", map[string]interface{}{
		"mandateId": input.MandateID,
		"matches":   len(items),
		"hasMore":   result.HasMore,
	})

	return &Output{
		Matches:        items,
		MatchCount:     len(items),
		HasMore:        result.HasMore,
		WeightsVersion: result.WeightsVersion,
	}, nil
}
