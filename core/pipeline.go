// Package core sequences the creative pipeline: prompt enhancement, image
// generation, 3D model generation with a degraded fallback, tag extraction,
// and durable plus session memory writes. Stage failures in the generation
// steps are recovered into the result; only unexpected faults abort a run.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/omarkhan/dreamforge/artifact"
	"github.com/omarkhan/dreamforge/llm"
	"github.com/omarkhan/dreamforge/logger"
	"github.com/omarkhan/dreamforge/memory"
	"github.com/omarkhan/dreamforge/stub"
)

type Step interface {
	Execute(ctx context.Context, state *State) error
}

type StepType int

const (
	EnhancePrompt StepType = iota
	GenerateImage
	GenerateModel
	ExtractTags
	Persist
	CacheSession
)

func (s StepType) String() string {
	switch s {
	case EnhancePrompt:
		return "EnhancePrompt"
	case GenerateImage:
		return "GenerateImage"
	case GenerateModel:
		return "GenerateModel"
	case ExtractTags:
		return "ExtractTags"
	case Persist:
		return "Persist"
	case CacheSession:
		return "CacheSession"
	default:
		return fmt.Sprintf("StepType(%d)", int(s))
	}
}

// CreationLedger is the slice of the durable store the pipeline writes to.
type CreationLedger interface {
	SaveCreation(c memory.Creation) (int64, error)
}

// Dependencies are the collaborators one pipeline invocation needs. They are
// constructed once per process and shared; all per-run data lives in State.
type Dependencies struct {
	Enhancer         llm.PromptEnhancer
	Invoker          stub.ServiceInvoker
	Artifacts        *artifact.Store
	Ledger           CreationLedger
	Sessions         *memory.SessionCache
	TextToImageAppID string
	ImageTo3DAppID   string
}

// State carries one run's accumulated data through the steps.
type State struct {
	UserPrompt     string
	UserID         string
	EnhancedPrompt string
	ImageData      []byte
	ImagePath      string
	ModelPath      string
	VideoPath      string
	Tags           []string
	CreationID     int64

	Outcomes        map[StepType]StageOutcome
	StagesCompleted []string
	Errors          []string

	Deps   *Dependencies
	Logger logger.Logger
}

func (s *State) markCompleted(step StepType, stage, artifactPath string) {
	s.Outcomes[step] = StageOutcome{Status: OutcomeSucceeded, Artifact: artifactPath}
	s.StagesCompleted = append(s.StagesCompleted, stage)
}

func (s *State) markFailed(step StepType, reason string) {
	s.Outcomes[step] = StageOutcome{Status: OutcomeFailed, Reason: reason}
	s.Errors = append(s.Errors, reason)
}

func (s *State) markSkipped(step StepType, cause string) {
	s.Outcomes[step] = StageOutcome{Status: OutcomeSkipped, Reason: cause}
	s.Errors = append(s.Errors, cause)
}

type StepManager interface {
	GetSteps() []StepType
	GetStep(stepType StepType) Step
}

type DefaultStepManager struct {
	steps   []StepType
	stepMap map[StepType]Step
}

func NewDefaultStepManager() *DefaultStepManager {
	return &DefaultStepManager{
		steps: []StepType{
			EnhancePrompt,
			GenerateImage,
			GenerateModel,
			ExtractTags,
			Persist,
			CacheSession,
		},
		stepMap: map[StepType]Step{
			EnhancePrompt: &EnhancePromptStep{},
			GenerateImage: &GenerateImageStep{},
			GenerateModel: &GenerateModelStep{},
			ExtractTags:   &ExtractTagsStep{},
			Persist:       &PersistStep{},
			CacheSession:  &CacheSessionStep{},
		},
	}
}

func (m *DefaultStepManager) GetSteps() []StepType {
	return m.steps
}

func (m *DefaultStepManager) GetStep(stepType StepType) Step {
	return m.stepMap[stepType]
}

type StepPublisher interface {
	PublishStep(step StepType)
	Error(step StepType, err error)
}

type DefaultStepPublisher struct{}

func (p *DefaultStepPublisher) PublishStep(step StepType) {}

func (p *DefaultStepPublisher) Error(step StepType, err error) {}

// Pipeline runs one creative request through the ordered steps.
type Pipeline struct {
	deps        *Dependencies
	stepManager StepManager
	publisher   StepPublisher
	logger      logger.Logger
}

func NewPipeline(deps *Dependencies, sm StepManager, pub StepPublisher, l logger.Logger) *Pipeline {
	if sm == nil {
		sm = NewDefaultStepManager()
	}
	if pub == nil {
		pub = &DefaultStepPublisher{}
	}
	if l == nil {
		l = logger.NewNullLogger()
	}
	return &Pipeline{
		deps:        deps,
		stepManager: sm,
		publisher:   pub,
		logger:      l,
	}
}

// Process runs the pipeline for one user prompt. The caller always receives
// a result: generation-stage failures are recovered into the result's errors
// list, while unexpected faults produce the terminal-error shape without a
// persisted record or session update.
func (p *Pipeline) Process(ctx context.Context, userPrompt, userID string) *PipelineResult {
	if userID == "" {
		userID = memory.DefaultUserID
	}

	state := &State{
		UserPrompt: userPrompt,
		UserID:     userID,
		Outcomes:   make(map[StepType]StageOutcome),
		Deps:       p.deps,
		Logger:     p.logger,
	}

	steps := p.stepManager.GetSteps()
	p.logger.Info("Starting pipeline execution")
	for i, stepType := range steps {
		select {
		case <-ctx.Done():
			p.logger.Info("Pipeline execution cancelled")
			// Once a record exists its id must reach the caller; the
			// terminal-error shape is reserved for runs that persisted
			// nothing.
			if state.CreationID != 0 {
				state.Errors = append(state.Errors, fmt.Sprintf("cancelled before %v: %v", stepType, ctx.Err()))
				return p.success(state)
			}
			return p.failure(state, ctx.Err())
		default:
		}

		p.logger.Debug(fmt.Sprintf("Attempting to execute step %d: %v", i, stepType))
		step := p.stepManager.GetStep(stepType)
		if step == nil {
			err := fmt.Errorf("step %v not found", stepType)
			p.publisher.Error(stepType, err)
			return p.failure(state, err)
		}

		startTime := time.Now()
		if err := step.Execute(ctx, state); err != nil {
			p.logger.Error(fmt.Sprintf("Error executing step %v: %v", stepType, err))
			p.publisher.Error(stepType, err)
			if state.CreationID != 0 {
				state.Errors = append(state.Errors, err.Error())
				return p.success(state)
			}
			return p.failure(state, err)
		}
		p.logger.Debug(fmt.Sprintf("Step %v completed in %v", stepType, time.Since(startTime)))
		p.publisher.PublishStep(stepType)
	}

	p.logger.Info(fmt.Sprintf("Pipeline completed, creation id %d", state.CreationID))
	return p.success(state)
}

func (p *Pipeline) success(state *State) *PipelineResult {
	return &PipelineResult{
		CreationID:      state.CreationID,
		OriginalPrompt:  state.UserPrompt,
		EnhancedPrompt:  state.EnhancedPrompt,
		ImagePath:       state.ImagePath,
		ModelPath:       state.ModelPath,
		VideoPath:       state.VideoPath,
		Tags:            state.Tags,
		StagesCompleted: state.StagesCompleted,
		Errors:          state.Errors,
	}
}

func (p *Pipeline) failure(state *State, err error) *PipelineResult {
	return &PipelineResult{
		Error:          err.Error(),
		Stage:          FailureStagePipelineProcess,
		OriginalPrompt: state.UserPrompt,
	}
}
