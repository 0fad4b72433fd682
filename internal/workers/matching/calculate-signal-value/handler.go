// internal/workers/matching/calculate-signal-value/handler.go
package calculatesignalvalue

import (
	"context"

	"mandate-matching/internal/common/camunda"
	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/common/observability"
	"mandate-matching/internal/matching"
	"mandate-matching/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = registry.TaskCalculateSignalValue

type Handler struct {
	config *Config
	errors *apperrors.ErrorHandler
	obs    *observability.Observability
	logger logger.Logger
}

func NewHandler(cfg *Config, obs *observability.Observability, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: cfg,
		errors: apperrors.NewErrorHandler(log),
		obs:    obs,
		logger: log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	run := camunda.BeginJob(TaskType, h.obs)

	var input Input
	if err := camunda.DecodeVariables(job, h.config.InputSchema, &input); err != nil {
		run.Done(ctx, err)
		h.errors.HandleJobError(context.Background(), client, job, err)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		run.Done(ctx, err)
		h.errors.HandleJobError(context.Background(), client, job, err)
		return
	}
	run.Done(ctx, camunda.CompleteJob(context.Background(), client, job, output, h.logger))
}

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	result, err := matching.SignalValueIndex(matching.SVIInput{
		PressCount60d: input.Press60d,
		RFPCount60d:   input.RFP60d,
	})
	if err != nil {
		return nil, err
	}
	h.logger.Debug("signal value computed", map[string]interface{}{"svi": result.SVI})
	return &Output{SVI: result.SVI, Explain: result.Explain}, nil
}
