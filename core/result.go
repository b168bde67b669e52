package core

// OutcomeStatus is the tri-state result of a single pipeline stage.
type OutcomeStatus int

const (
	OutcomeSucceeded OutcomeStatus = iota
	OutcomeFailed
	OutcomeSkipped
)

// StageOutcome records how one stage finished. Outcomes decide whether
// downstream stages execute and what the final result's stages_completed and
// errors lists contain; they are never persisted.
type StageOutcome struct {
	Status   OutcomeStatus
	Artifact string
	Reason   string
}

// Stage labels reported in the result's stages_completed list.
const (
	StagePromptEnhancement       = "prompt_enhancement"
	StageImageGeneration         = "image_generation"
	StageModelGeneration         = "model_generation"
	StageModelGenerationFallback = "model_generation_fallback"
	StageTagExtraction           = "tag_extraction"
	StagePersistence             = "persistence"
	StageSessionCache            = "session_cache"
)

// FailureStagePipelineProcess labels terminal failures that aborted the run.
const FailureStagePipelineProcess = "pipeline_process"

// PipelineResult is the transient value returned to the caller. On success
// it carries the creation id and artifact paths; on a terminal failure only
// Error, Stage, and OriginalPrompt are set.
type PipelineResult struct {
	CreationID      int64    `json:"creation_id,omitempty"`
	OriginalPrompt  string   `json:"original_prompt"`
	EnhancedPrompt  string   `json:"enhanced_prompt,omitempty"`
	ImagePath       string   `json:"image_path,omitempty"`
	ModelPath       string   `json:"model_path,omitempty"`
	VideoPath       string   `json:"video_path,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	StagesCompleted []string `json:"stages_completed,omitempty"`
	Errors          []string `json:"errors,omitempty"`
	Error           string   `json:"error,omitempty"`
	Stage           string   `json:"stage,omitempty"`
}

// Failed reports whether the run ended in the terminal-error shape.
func (r *PipelineResult) Failed() bool {
	return r.Error != ""
}
