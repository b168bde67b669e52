package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/omarkhan/dreamforge/core"
	"github.com/omarkhan/dreamforge/memory"
)

var (
	stepStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFBA08"))
	referenceStyle = lipgloss.NewStyle().Faint(true).Italic(true)
)

func stepLabel(step core.StepType) string {
	switch step {
	case core.EnhancePrompt:
		return "Enhanced prompt."
	case core.GenerateImage:
		return "Generated image."
	case core.GenerateModel:
		return "Converted image to 3D model."
	case core.ExtractTags:
		return "Extracted tags."
	case core.Persist:
		return "Saved creation to memory."
	case core.CacheSession:
		return "Updated session."
	default:
		return step.String()
	}
}

func renderResult(result *core.PipelineResult) string {
	var b strings.Builder

	if result.Failed() {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Creation failed at %s: %s", result.Stage, result.Error)))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("Creation %d", result.CreationID)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Original prompt:"), result.OriginalPrompt))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Enhanced prompt:"), result.EnhancedPrompt))
	if result.ImagePath != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Image:"), result.ImagePath))
	}
	if result.ModelPath != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("3D model:"), result.ModelPath))
	}
	if result.VideoPath != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Video:"), result.VideoPath))
	}
	if len(result.Tags) > 0 {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Tags:"), strings.Join(result.Tags, ", ")))
	}
	for _, e := range result.Errors {
		b.WriteString(errorStyle.Render(fmt.Sprintf("warning: %s", e)))
		b.WriteString("\n")
	}

	return b.String()
}

func renderCreations(creations []memory.Creation) string {
	if len(creations) == 0 {
		return labelStyle.Render("No creations found.") + "\n"
	}

	var b strings.Builder
	for _, c := range creations {
		b.WriteString(headerStyle.Render(fmt.Sprintf("#%d", c.ID)))
		b.WriteString(fmt.Sprintf(" %s %s\n", labelStyle.Render(c.CreationDate), c.Prompt))
		if c.ImagePath != "" {
			b.WriteString(fmt.Sprintf("    %s %s\n", labelStyle.Render("image:"), c.ImagePath))
		}
		if c.ModelPath != "" {
			b.WriteString(fmt.Sprintf("    %s %s\n", labelStyle.Render("model:"), c.ModelPath))
		}
		if len(c.Tags) > 0 {
			b.WriteString(fmt.Sprintf("    %s %s\n", labelStyle.Render("tags:"), strings.Join(c.Tags, ", ")))
		}
	}
	return b.String()
}

// findPriorReference detects prompts that refer back to an earlier creation,
// e.g. "make something like the dragon I created last week", and returns the
// prompt of the most recent prior match.
func findPriorReference(ledger *memory.Ledger, prompt, userID string) string {
	lowered := strings.ToLower(prompt)
	if !strings.Contains(lowered, "like") {
		return ""
	}
	if !strings.Contains(lowered, "last") && !strings.Contains(lowered, "previous") && !strings.Contains(lowered, "before") {
		return ""
	}

	for _, word := range strings.Fields(prompt) {
		if len(word) <= 3 {
			continue
		}
		results, err := ledger.SearchCreations(word, userID)
		if err != nil || len(results) == 0 {
			continue
		}
		return results[0].Prompt
	}
	return ""
}
