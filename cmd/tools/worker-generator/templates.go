// cmd/tools/worker-generator/templates.go
package main

const handlerTemplate = `// internal/workers/{{ .Category }}/{{ .Dir }}/handler.go
package {{ .PackageName }}

import (
	"context"

	"mandate-matching/internal/common/camunda"
	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "{{ .TaskType }}"

// Handler runs {{ .Name }} jobs.
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, apperrors.NewBusinessRuleError("not implemented", TaskType)
}
`

const configTemplate = `// internal/workers/{{ .Category }}/{{ .Dir }}/config.go
package {{ .PackageName }}

import (
	"fmt"
	"time"

	"mandate-matching/internal/common/config"
	"mandate-matching/pkg/registry"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	InputSchema   map[string]interface{}
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       {{ .TimeoutExpr }},
	}
}

// LoadConfig overlays the worker section and the registry schema on the
// defaults.
func LoadConfig(wc config.WorkerConfig, reg *registry.ActivityRegistry) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = wc.Enabled
	if wc.MaxJobsActive > 0 {
		cfg.MaxJobsActive = wc.MaxJobsActive
	}
	if wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	if schema := reg.InputSchema(TaskType); schema != nil {
		cfg.InputSchema = schema
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}
`

const modelsTemplate = `// internal/workers/{{ .Category }}/{{ .Dir }}/models.go
package {{ .PackageName }}

type Input struct {
{{ structFields .InputSchema }}
}

type Output struct {
{{ structFields .OutputSchema }}
}
`

const testTemplate = `// internal/workers/{{ .Category }}/{{ .Dir }}/handler_test.go
package {{ .PackageName }}

import (
	"testing"
	"time"

	"mandate-matching/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandler(t *testing.T) {
	h, err := NewHandler(nil, nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestNewHandler_InvalidConfig(t *testing.T) {
	_, err := NewHandler(&Config{Timeout: time.Second}, nil, logger.NewTestLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_jobs_active")
}
`
