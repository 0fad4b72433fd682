package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/common/metrics"
	"mandate-matching/internal/common/observability"
	"mandate-matching/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// DecodeVariables checks the job variables against schema and unmarshals
// them into out. Both failures are reported as INVALID_INPUT.
func DecodeVariables(job entities.Job, schema map[string]interface{}, out interface{}) error {
	vars, err := job.GetVariablesAsMap()
	if err != nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	if result := validation.ValidateDocument(vars, schema); !result.Valid {
		return apperrors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}
	if err := json.Unmarshal([]byte(job.Variables), out); err != nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("decode variables: %v", err))
	}
	return nil
}

// JobRun records one job's lifecycle in Prometheus and OpenTelemetry.
type JobRun struct {
	taskType string
	start    time.Time
	obs      *observability.Observability
}

func BeginJob(taskType string, obs *observability.Observability) *JobRun {
	metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
	return &JobRun{taskType: taskType, start: time.Now(), obs: obs}
}

func (r *JobRun) Done(ctx context.Context, err error) {
	elapsed := time.Since(r.start)
	metrics.WorkerJobsActive.WithLabelValues(r.taskType).Dec()
	metrics.WorkerJobDuration.WithLabelValues(r.taskType).Observe(elapsed.Seconds())
	r.obs.RecordJobDuration(ctx, r.taskType, elapsed)

	if err != nil {
		code := string(apperrors.Normalize(err).Code)
		metrics.WorkerJobsFailed.WithLabelValues(r.taskType, code).Inc()
		r.obs.RecordJobProcessed(ctx, r.taskType, "failed")
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
	r.obs.RecordJobProcessed(ctx, r.taskType, "completed")
}

// CompleteJob sends output as the job's result variables.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}
	return nil
}
