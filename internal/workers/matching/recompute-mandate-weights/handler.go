// internal/workers/matching/recompute-mandate-weights/handler.go
package recomputemandateweights

import (
	"context"

	"mandate-matching/internal/common/camunda"
	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/common/observability"
	"mandate-matching/internal/feedback"
	"mandate-matching/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = registry.TaskRecomputeMandateWeights

type Recomputer interface {
	RecomputeAll(ctx context.Context) (*feedback.Summary, error)
	RecomputeMandates(ctx context.Context, ids []string) (*feedback.Summary, error)
}

type Handler struct {
	config     *Config
	recomputer Recomputer
	errors     *apperrors.ErrorHandler
	obs        *observability.Observability
	logger     logger.Logger
}

func NewHandler(cfg *Config, recomputer Recomputer, obs *observability.Observability, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     cfg,
		recomputer: recomputer,
		errors:     apperrors.NewErrorHandler(log),
		obs:        obs,
		logger:     log,
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

	var input Input
	err := camunda.DecodeVariables(job, h.config.InputSchema, &input)
	var output *Output
	if err == nil {
		output, err = h.Execute(ctx, &input)
	}
	if err != nil {
		run.Done(ctx, err)
		h.errors.HandleJobError(context.Background(), client, job, err)
		return
	}
	run.Done(ctx, camunda.CompleteJob(context.Background(), client, job, output, h.logger))
}

// Execute completes with a summary even when individual mandates fail;
// only a batch-level error fails the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		summary *feedback.Summary
		err     error
	)
	if input.MandateID != "" {
		summary, err = h.recomputer.RecomputeMandates(ctx, []string{input.MandateID})
	} else {
		summary, err = h.recomputer.RecomputeAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	if len(summary.Failed) > 0 {
		h.logger.Warn("some mandates failed to recompute", map[string]interface{}{
			"failed": len(summary.Failed),
		})
	}

	out := &Output{
		Updated:   summary.Updated,
		Unchanged: summary.Unchanged,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
	}
	if out.Skipped == nil {
		out.Skipped = []string{}
	}
	if out.Failed == nil {
		out.Failed = []feedback.FailedMandate{}
	}
	return out, nil
}
