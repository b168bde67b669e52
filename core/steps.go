package core

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/omarkhan/dreamforge/artifact"
	"github.com/omarkhan/dreamforge/memory"
)

// EnhancePromptStep enriches the raw user idea. The enhancer degrades to a
// local enhancement internally, so this step never fails the run.
type EnhancePromptStep struct{}

func (s *EnhancePromptStep) Execute(ctx context.Context, state *State) error {
	state.Logger.Debug("Enhancing user prompt.")
	state.EnhancedPrompt = state.Deps.Enhancer.Enhance(ctx, state.UserPrompt)
	state.markCompleted(EnhancePrompt, StagePromptEnhancement, "")
	return nil
}

// GenerateImageStep invokes the text-to-image capability and stores the
// result. A remote failure is recovered into the run's errors; downstream 3D
// generation is then skipped. Only an artifact write failure is fatal.
type GenerateImageStep struct{}

func (s *GenerateImageStep) Execute(ctx context.Context, state *State) error {
	state.Logger.Debug("Generating image from enhanced prompt.")

	request := map[string]any{
		"prompt":              state.EnhancedPrompt,
		"negative_prompt":     "blurry, distorted, low quality, draft",
		"width":               1024,
		"height":              1024,
		"guidance_scale":      7.5,
		"num_inference_steps": 50,
	}

	response, err := state.Deps.Invoker.Call(ctx, state.Deps.TextToImageAppID, request, state.UserID)
	if err != nil {
		state.Logger.Error(fmt.Sprintf("Error generating image: %v", err))
		state.markFailed(GenerateImage, fmt.Sprintf("Image generation failed: %v", err))
		return nil
	}

	data, err := decodeBinaryField(response, "result")
	if err != nil {
		state.Logger.Error(fmt.Sprintf("Error generating image: %v", err))
		state.markFailed(GenerateImage, fmt.Sprintf("Image generation failed: %v", err))
		return nil
	}

	path, err := state.Deps.Artifacts.SaveImage(data)
	if err != nil {
		return fmt.Errorf("failed to store generated image: %w", err)
	}

	state.ImageData = data
	state.ImagePath = path
	state.Logger.Info(fmt.Sprintf("Image generated and saved to %s", path))
	state.markCompleted(GenerateImage, StageImageGeneration, path)
	return nil
}

// GenerateModelStep converts the generated image into a 3D model, with one
// degraded fallback attempt when the primary call fails. Without a source
// image the stage is skipped outright.
type GenerateModelStep struct{}

func (s *GenerateModelStep) Execute(ctx context.Context, state *State) error {
	if state.ImagePath == "" {
		state.Logger.Info("No source image, skipping 3D model generation.")
		state.markSkipped(GenerateModel, "Skipped 3D model generation due to missing image")
		return nil
	}

	state.Logger.Debug("Converting image to 3D model.")
	encoded := base64.StdEncoding.EncodeToString(state.ImageData)
	request := map[string]any{"input_image": encoded}

	response, err := state.Deps.Invoker.Call(ctx, state.Deps.ImageTo3DAppID, request, state.UserID)
	var modelData []byte
	if err == nil {
		modelData, err = decodeBinaryField(response, "generated_object")
	}
	if err != nil {
		state.Logger.Error(fmt.Sprintf("Error generating 3D model: %v", err))
		reason := fmt.Sprintf("3D model generation failed: %v", err)
		state.Errors = append(state.Errors, reason)

		fallbackData := s.generateFallback(ctx, state, encoded)
		if fallbackData == nil {
			state.Outcomes[GenerateModel] = StageOutcome{Status: OutcomeFailed, Reason: reason}
			return nil
		}

		path, serr := state.Deps.Artifacts.SaveModel(artifact.NewArtifactID(), fallbackData)
		if serr != nil {
			return fmt.Errorf("failed to store fallback 3D model: %w", serr)
		}
		state.ModelPath = path
		state.Logger.Info(fmt.Sprintf("Fallback 3D model saved to %s", path))
		state.markCompleted(GenerateModel, StageModelGenerationFallback, path)
		return nil
	}

	id := artifact.NewArtifactID()
	path, err := state.Deps.Artifacts.SaveModel(id, modelData)
	if err != nil {
		return fmt.Errorf("failed to store 3D model: %w", err)
	}
	state.ModelPath = path
	state.Logger.Info(fmt.Sprintf("3D model generated and saved to %s", path))

	if videoData, verr := decodeBinaryField(response, "video_object"); verr == nil {
		videoPath, werr := state.Deps.Artifacts.SaveVideo(id, videoData)
		if werr != nil {
			return fmt.Errorf("failed to store generated video: %w", werr)
		}
		state.VideoPath = videoPath
		state.Logger.Info(fmt.Sprintf("Video generated and saved to %s", videoPath))
	}

	state.markCompleted(GenerateModel, StageModelGeneration, path)
	return nil
}

// generateFallback issues the single degraded second attempt. It returns nil
// when the attempt yields nothing; the primary failure is already recorded.
func (s *GenerateModelStep) generateFallback(ctx context.Context, state *State, encodedImage string) []byte {
	state.Logger.Info("Attempting fallback 3D model generation.")

	request := map[string]any{"input_image": encodedImage}
	response, err := state.Deps.Invoker.Call(ctx, state.Deps.ImageTo3DAppID, request, state.UserID)
	if err != nil {
		state.Logger.Error(fmt.Sprintf("Fallback 3D model generation failed: %v", err))
		return nil
	}

	data, err := decodeBinaryField(response, "generated_object")
	if err != nil {
		state.Logger.Error(fmt.Sprintf("Fallback 3D model generation failed: %v", err))
		return nil
	}
	return data
}

// ExtractTagsStep derives indexing tags from the enhanced prompt, which
// exists regardless of how far the generation stages got.
type ExtractTagsStep struct{}

func (s *ExtractTagsStep) Execute(ctx context.Context, state *State) error {
	state.Tags = extractTags(state.EnhancedPrompt)
	state.Logger.Debug(fmt.Sprintf("Extracted %d tags", len(state.Tags)))
	state.markCompleted(ExtractTags, StageTagExtraction, "")
	return nil
}

// PersistStep writes the creation record. A persistence failure is fatal to
// the run: no partial record, no session update.
type PersistStep struct{}

func (s *PersistStep) Execute(ctx context.Context, state *State) error {
	state.Logger.Debug("Saving creation to memory.")
	id, err := state.Deps.Ledger.SaveCreation(memory.Creation{
		Prompt:         state.UserPrompt,
		EnhancedPrompt: state.EnhancedPrompt,
		ImagePath:      state.ImagePath,
		ModelPath:      state.ModelPath,
		VideoPath:      state.VideoPath,
		Tags:           state.Tags,
		UserID:         state.UserID,
	})
	if err != nil {
		return fmt.Errorf("failed to persist creation: %w", err)
	}
	state.CreationID = id
	state.Logger.Info(fmt.Sprintf("Creation saved with id %d", id))
	state.markCompleted(Persist, StagePersistence, "")
	return nil
}

// CacheSessionStep overwrites the session's last-result fields with this
// run's values. Paths may be empty after a partially-successful run.
type CacheSessionStep struct{}

func (s *CacheSessionStep) Execute(ctx context.Context, state *State) error {
	sessions := state.Deps.Sessions
	sessions.Put(state.UserID, memory.KeyLastPrompt, state.UserPrompt)
	sessions.Put(state.UserID, memory.KeyLastEnhancedPrompt, state.EnhancedPrompt)
	sessions.Put(state.UserID, memory.KeyLastImagePath, state.ImagePath)
	sessions.Put(state.UserID, memory.KeyLastModelPath, state.ModelPath)
	state.markCompleted(CacheSession, StageSessionCache, "")
	return nil
}

// decodeBinaryField pulls a binary payload out of a capability response.
// In-process invokers hand over raw bytes; JSON transports deliver base64
// strings. Missing or empty fields are errors.
func decodeBinaryField(response map[string]any, field string) ([]byte, error) {
	value, ok := response[field]
	if !ok || value == nil {
		return nil, fmt.Errorf("no %s in response", field)
	}

	switch data := value.(type) {
	case []byte:
		if len(data) == 0 {
			return nil, fmt.Errorf("empty %s in response", field)
		}
		return data, nil
	case string:
		if data == "" {
			return nil, fmt.Errorf("empty %s in response", field)
		}
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", field, err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unexpected type %T for %s", value, field)
	}
}
