package llm

import "fmt"

func getEnhancementPrompt(userPrompt string) string {
	return fmt.Sprintf(`You are an artistic prompt enhancer. Your job is to take simple user requests and transform them
into detailed, vivid descriptions for image and 3D generation. Include artistic style, lighting,
mood, colors, perspective, and detailed elements. Make it specific and visual but keep the core
idea intact. Format your response as a rich text description without any explanations or additional
content in maximum 200 words.

Transform this prompt for image generation:
User Request: %s

Include every detail of user request in the response.`, userPrompt)
}
