package cli

import (
	"context"
	"sync"
	"time"

	"github.com/omarkhan/dreamforge/core"
	"github.com/omarkhan/dreamforge/logger"
)

type ExecutionRequest struct {
	Prompt     string
	UserID     string
	ResultChan chan *core.PipelineResult
	CreatedAt  time.Time
}

// Engine runs pipeline invocations on a pool of workers. Each request gets
// its own pipeline over the shared dependencies; runs never share state.
type Engine struct {
	deps         *core.Dependencies
	pub          core.StepPublisher
	logger       logger.Logger
	requests     chan ExecutionRequest
	workers      int
	workerWG     sync.WaitGroup
	shutdownChan chan struct{}
}

func NewEngine(deps *core.Dependencies, pub core.StepPublisher, l logger.Logger, workers int) *Engine {
	if l == nil {
		l = logger.NewNullLogger()
	}
	return &Engine{
		deps:         deps,
		pub:          pub,
		logger:       l,
		requests:     make(chan ExecutionRequest, 1000), // Buffered channel
		workers:      workers,
		shutdownChan: make(chan struct{}),
	}
}

func (e *Engine) Start(ctx context.Context) {
	for i := 0; i < e.workers; i++ {
		e.workerWG.Add(1)
		go e.worker(ctx)
	}
}

func (e *Engine) worker(ctx context.Context) {
	defer e.workerWG.Done()
	for {
		select {
		case req := <-e.requests:
			pipeline := core.NewPipeline(e.deps, nil, e.pub, e.logger)
			req.ResultChan <- pipeline.Process(ctx, req.Prompt, req.UserID)
			close(req.ResultChan)
		case <-ctx.Done():
			return
		case <-e.shutdownChan:
			return
		}
	}
}

func (e *Engine) AddRequest(prompt, userID string) chan *core.PipelineResult {
	resultChan := make(chan *core.PipelineResult, 1)
	e.requests <- ExecutionRequest{
		Prompt:     prompt,
		UserID:     userID,
		ResultChan: resultChan,
		CreatedAt:  time.Now(),
	}
	return resultChan
}

func (e *Engine) Shutdown(timeout time.Duration) {
	close(e.shutdownChan)

	done := make(chan struct{})
	go func() {
		e.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("All workers shut down gracefully")
	case <-time.After(timeout):
		e.logger.Warn("Shutdown timed out, some workers may still be running")
	}
}
