// internal/workers/matching/record-learning-signal/handler.go
package recordlearningsignal

import (
	"context"

	"mandate-matching/internal/common/camunda"
	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/common/observability"
	"mandate-matching/internal/models"
	"mandate-matching/internal/store"
	"mandate-matching/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = registry.TaskRecordLearningSignal

type Handler struct {
	config  *Config
	signals store.SignalLog
	errors  *apperrors.ErrorHandler
	obs     *observability.Observability
	logger  logger.Logger
}

func NewHandler(cfg *Config, signals store.SignalLog, obs *observability.Observability, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  cfg,
		signals: signals,
		errors:  apperrors.NewErrorHandler(log),
		obs:     obs,
		logger:  log,
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
	signal := models.Signal{
		MandateID: input.MandateID,
		CompanyID: input.CompanyID,
		Type:      models.SignalType(input.Signal),
	}
	if input.Weight != nil {
		if *input.Weight == 0 {
			return nil, apperrors.NewMalformedSignalError("weight must be a non-zero integer")
		}
		signal.Weight = float64(*input.Weight)
	}

	saved, err := h.signals.AppendSignal(ctx, signal)
	if err != nil {
		return nil, err
	}

	h.logger.Info("learning signal recorded", map[string]interface{}{
		"signalId":  saved.ID,
		"mandateId": saved.MandateID,
		"companyId": saved.CompanyID,
		"signal":    string(saved.Type),
	})

	return &Output{
		SignalID:  saved.ID,
		Weight:    int(saved.Weight),
		CreatedAt: saved.CreatedAt,
	}, nil
}
