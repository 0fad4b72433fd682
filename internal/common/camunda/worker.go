package camunda

import (
	"sync"
	"time"

	"mandate-matching/internal/common/config"
	"mandate-matching/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

type HandlerFunc func(client worker.JobClient, job entities.Job)

// WorkerPool opens job workers on one Zeebe client and closes them together.
type WorkerPool struct {
	client zbc.Client
	logger logger.Logger

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewWorkerPool(client zbc.Client, log logger.Logger) *WorkerPool {
	return &WorkerPool{
		client:  client,
		logger:  log,
		workers: make(map[string]worker.JobWorker),
	}
}

// Start opens a worker for taskType unless wcfg disables it. Starting the
// same task type twice is a no-op.
func (p *WorkerPool) Start(taskType string, wcfg config.WorkerConfig, handler HandlerFunc) bool {
	if !wcfg.Enabled {
		p.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.workers[taskType]; ok {
		return false
	}

	p.workers[taskType] = p.client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Name(taskType + "-worker").
		Open()

	p.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeoutMs":     wcfg.Timeout,
	})
	return true
}

func (p *WorkerPool) TaskTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.workers))
	for taskType := range p.workers {
		out = append(out, taskType)
	}
	return out
}

// Close stops polling and waits for in-flight jobs.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for taskType, w := range p.workers {
		w.Close()
		w.AwaitClose()
		p.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
	p.workers = make(map[string]worker.JobWorker)
}
