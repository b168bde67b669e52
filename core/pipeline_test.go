package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/omarkhan/dreamforge/artifact"
	"github.com/omarkhan/dreamforge/logger"
	"github.com/omarkhan/dreamforge/memory"
)

const (
	testImageApp = "text-to-image"
	testModelApp = "image-to-3d"
)

// MockEnhancer is a mock implementation of the prompt enhancer
type MockEnhancer struct {
	mock.Mock
}

func (m *MockEnhancer) Enhance(ctx context.Context, userPrompt string) string {
	args := m.Called(ctx, userPrompt)
	return args.String(0)
}

// MockInvoker is a mock implementation of the service invoker
type MockInvoker struct {
	mock.Mock
}

func (m *MockInvoker) Call(ctx context.Context, capabilityID string, request map[string]any, callerID string) (map[string]any, error) {
	args := m.Called(ctx, capabilityID, request, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *MockInvoker) Schema(ctx context.Context, capabilityID, direction string) (map[string]any, error) {
	args := m.Called(ctx, capabilityID, direction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

type failingLedger struct{}

func (failingLedger) SaveCreation(c memory.Creation) (int64, error) {
	return 0, errors.New("disk full")
}

// cancellingLedger cancels its context the moment a row is written, so the
// pipeline observes cancellation between persistence and session caching.
type cancellingLedger struct {
	inner  CreationLedger
	cancel context.CancelFunc
}

func (l cancellingLedger) SaveCreation(c memory.Creation) (int64, error) {
	id, err := l.inner.SaveCreation(c)
	l.cancel()
	return id, err
}

func newTestEnhancer(t *testing.T) *MockEnhancer {
	t.Helper()
	enhancer := new(MockEnhancer)
	enhancer.On("Enhance", mock.Anything, mock.Anything).Return("a majestic dragon, glowing scales, golden hour")
	return enhancer
}

func newTestDeps(t *testing.T, enhancer *MockEnhancer, invoker *MockInvoker) *Dependencies {
	t.Helper()

	store, err := artifact.NewStore(afero.NewMemMapFs(), "outputs")
	require.NoError(t, err)

	ledger, err := memory.NewLedger(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	return &Dependencies{
		Enhancer:         enhancer,
		Invoker:          invoker,
		Artifacts:        store,
		Ledger:           ledger,
		Sessions:         memory.NewSessionCache(),
		TextToImageAppID: testImageApp,
		ImageTo3DAppID:   testModelApp,
	}
}

func newTestPipeline(deps *Dependencies) *Pipeline {
	return NewPipeline(deps, nil, nil, logger.NewNullLogger())
}

func TestPipeline_FullSuccess(t *testing.T) {
	enhancer := newTestEnhancer(t)
	invoker := new(MockInvoker)
	invoker.On("Call", mock.Anything, testImageApp, mock.Anything, "user-1").
		Return(map[string]any{"result": []byte("image-bytes")}, nil)
	invoker.On("Call", mock.Anything, testModelApp, mock.Anything, "user-1").
		Return(map[string]any{"generated_object": []byte("model-bytes"), "video_object": []byte("video-bytes")}, nil)

	deps := newTestDeps(t, enhancer, invoker)
	result := newTestPipeline(deps).Process(context.Background(), "a dragon", "user-1")

	require.False(t, result.Failed())
	assert.Greater(t, result.CreationID, int64(0))
	assert.Equal(t, "a dragon", result.OriginalPrompt)
	assert.Equal(t, "a majestic dragon, glowing scales, golden hour", result.EnhancedPrompt)
	assert.NotEmpty(t, result.ImagePath)
	assert.NotEmpty(t, result.ModelPath)
	assert.NotEmpty(t, result.VideoPath)
	assert.Contains(t, result.StagesCompleted, StageImageGeneration)
	assert.Contains(t, result.StagesCompleted, StageModelGeneration)
	assert.NotContains(t, result.StagesCompleted, StageModelGenerationFallback)
	assert.Empty(t, result.Errors)

	// Model and video share an id stem.
	modelID := filepath.Base(result.ModelPath)
	videoID := filepath.Base(result.VideoPath)
	assert.Equal(t, modelID[:len(modelID)-4], videoID[:len(videoID)-4])

	// Session cache reflects this run.
	prompt, ok := deps.Sessions.Get("user-1", memory.KeyLastPrompt)
	require.True(t, ok)
	assert.Equal(t, "a dragon", prompt)

	invoker.AssertExpectations(t)
	enhancer.AssertExpectations(t)
}

func TestPipeline_ImageFailureSkipsModelGeneration(t *testing.T) {
	enhancer := newTestEnhancer(t)
	invoker := new(MockInvoker)
	invoker.On("Call", mock.Anything, testImageApp, mock.Anything, mock.Anything).
		Return(nil, errors.New("image service unavailable"))

	deps := newTestDeps(t, enhancer, invoker)
	result := newTestPipeline(deps).Process(context.Background(), "a dragon", "")

	require.False(t, result.Failed())
	assert.Empty(t, result.ImagePath)
	assert.Empty(t, result.ModelPath)
	assert.NotContains(t, result.StagesCompleted, StageImageGeneration)
	assert.NotContains(t, result.StagesCompleted, StageModelGeneration)
	assert.Contains(t, result.StagesCompleted, StagePersistence)
	assert.Greater(t, result.CreationID, int64(0))

	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Image generation failed")
	assert.Contains(t, result.Errors[1], "missing image")

	invoker.AssertNotCalled(t, "Call", mock.Anything, testModelApp, mock.Anything, mock.Anything)
}

func TestPipeline_ModelFallbackSuccess(t *testing.T) {
	enhancer := newTestEnhancer(t)
	invoker := new(MockInvoker)
	invoker.On("Call", mock.Anything, testImageApp, mock.Anything, mock.Anything).
		Return(map[string]any{"result": []byte("image-bytes")}, nil)
	invoker.On("Call", mock.Anything, testModelApp, mock.Anything, mock.Anything).
		Return(nil, errors.New("3d service overloaded")).Once()
	invoker.On("Call", mock.Anything, testModelApp, mock.Anything, mock.Anything).
		Return(map[string]any{"generated_object": []byte("model-bytes")}, nil).Once()

	deps := newTestDeps(t, enhancer, invoker)
	result := newTestPipeline(deps).Process(context.Background(), "a dragon", "")

	require.False(t, result.Failed())
	assert.NotEmpty(t, result.ImagePath)
	assert.NotEmpty(t, result.ModelPath)
	assert.Empty(t, result.VideoPath)
	assert.Contains(t, result.StagesCompleted, StageModelGenerationFallback)
	assert.NotContains(t, result.StagesCompleted, StageModelGeneration)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "3D model generation failed")

	invoker.AssertExpectations(t)
}

func TestPipeline_BothModelAttemptsFail(t *testing.T) {
	enhancer := newTestEnhancer(t)
	invoker := new(MockInvoker)
	invoker.On("Call", mock.Anything, testImageApp, mock.Anything, mock.Anything).
		Return(map[string]any{"result": []byte("image-bytes")}, nil)
	invoker.On("Call", mock.Anything, testModelApp, mock.Anything, mock.Anything).
		Return(nil, errors.New("3d service down")).Twice()

	deps := newTestDeps(t, enhancer, invoker)
	result := newTestPipeline(deps).Process(context.Background(), "a dragon", "")

	require.False(t, result.Failed())
	assert.NotEmpty(t, result.ImagePath)
	assert.Empty(t, result.ModelPath)
	assert.Greater(t, result.CreationID, int64(0))
	assert.Contains(t, result.StagesCompleted, StagePersistence)

	invoker.AssertExpectations(t)
}

func TestPipeline_Base64ResponsePayloads(t *testing.T) {
	enhancer := newTestEnhancer(t)
	invoker := new(MockInvoker)
	// JSON transports deliver binary fields as base64 strings.
	invoker.On("Call", mock.Anything, testImageApp, mock.Anything, mock.Anything).
		Return(map[string]any{"result": "aW1hZ2UtYnl0ZXM="}, nil)
	invoker.On("Call", mock.Anything, testModelApp, mock.Anything, mock.Anything).
		Return(map[string]any{"generated_object": "bW9kZWwtYnl0ZXM="}, nil)

	deps := newTestDeps(t, enhancer, invoker)
	result := newTestPipeline(deps).Process(context.Background(), "a dragon", "")

	require.False(t, result.Failed())
	assert.NotEmpty(t, result.ImagePath)
	assert.NotEmpty(t, result.ModelPath)
	assert.Empty(t, result.Errors)
}

func TestPipeline_PersistFailureIsFatal(t *testing.T) {
	enhancer := newTestEnhancer(t)
	invoker := new(MockInvoker)
	invoker.On("Call", mock.Anything, testImageApp, mock.Anything, mock.Anything).
		Return(map[string]any{"result": []byte("image-bytes")}, nil)
	invoker.On("Call", mock.Anything, testModelApp, mock.Anything, mock.Anything).
		Return(map[string]any{"generated_object": []byte("model-bytes")}, nil)

	deps := newTestDeps(t, enhancer, invoker)
	deps.Ledger = failingLedger{}

	result := newTestPipeline(deps).Process(context.Background(), "a dragon", "user-1")

	require.True(t, result.Failed())
	assert.Equal(t, FailureStagePipelineProcess, result.Stage)
	assert.Contains(t, result.Error, "disk full")
	assert.Equal(t, "a dragon", result.OriginalPrompt)
	assert.Zero(t, result.CreationID)

	// The terminal-error path never touches the session cache.
	_, ok := deps.Sessions.Get("user-1", memory.KeyLastPrompt)
	assert.False(t, ok)
}

func TestPipeline_RepeatRunsGetDistinctIDs(t *testing.T) {
	enhancer := new(MockEnhancer)
	enhancer.On("Enhance", mock.Anything, "a dragon").Return("an enhanced dragon").Once()
	enhancer.On("Enhance", mock.Anything, "a castle").Return("an enhanced castle").Once()

	invoker := new(MockInvoker)
	invoker.On("Call", mock.Anything, testImageApp, mock.Anything, mock.Anything).
		Return(map[string]any{"result": []byte("image-bytes")}, nil)
	invoker.On("Call", mock.Anything, testModelApp, mock.Anything, mock.Anything).
		Return(map[string]any{"generated_object": []byte("model-bytes")}, nil)

	deps := newTestDeps(t, enhancer, invoker)
	pipeline := newTestPipeline(deps)

	first := pipeline.Process(context.Background(), "a dragon", "user-1")
	second := pipeline.Process(context.Background(), "a castle", "user-1")

	require.False(t, first.Failed())
	require.False(t, second.Failed())
	assert.NotEqual(t, first.CreationID, second.CreationID)

	// Session cache holds only the second run's fields.
	prompt, ok := deps.Sessions.Get("user-1", memory.KeyLastPrompt)
	require.True(t, ok)
	assert.Equal(t, "a castle", prompt)
	enhanced, ok := deps.Sessions.Get("user-1", memory.KeyLastEnhancedPrompt)
	require.True(t, ok)
	assert.Equal(t, "an enhanced castle", enhanced)
}

func TestPipeline_CancelAfterPersistStillReportsCreation(t *testing.T) {
	enhancer := newTestEnhancer(t)
	invoker := new(MockInvoker)
	invoker.On("Call", mock.Anything, testImageApp, mock.Anything, mock.Anything).
		Return(map[string]any{"result": []byte("image-bytes")}, nil)
	invoker.On("Call", mock.Anything, testModelApp, mock.Anything, mock.Anything).
		Return(map[string]any{"generated_object": []byte("model-bytes")}, nil)

	deps := newTestDeps(t, enhancer, invoker)
	realLedger := deps.Ledger.(*memory.Ledger)
	ctx, cancel := context.WithCancel(context.Background())
	deps.Ledger = cancellingLedger{inner: realLedger, cancel: cancel}

	result := newTestPipeline(deps).Process(ctx, "a dragon", "user-1")

	// The record exists, so the caller must receive its id rather than the
	// terminal-error shape.
	require.False(t, result.Failed())
	assert.Greater(t, result.CreationID, int64(0))
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[len(result.Errors)-1], "cancelled")

	rows, err := realLedger.RecentCreations(10, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, result.CreationID, rows[0].ID)
}

func TestPipeline_CancelledContext(t *testing.T) {
	enhancer := newTestEnhancer(t)
	invoker := new(MockInvoker)
	deps := newTestDeps(t, enhancer, invoker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestPipeline(deps).Process(ctx, "a dragon", "")
	require.True(t, result.Failed())
	assert.Equal(t, FailureStagePipelineProcess, result.Stage)
}
