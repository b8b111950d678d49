package chat

import (
	"fmt"

	"github.com/kalambet/jobhunter/internal/resume"
)

const systemTemplate = `You are a helpful Job Hunter AI assistant.
The user has the following resume information:

%s

Your task is to help the user find relevant job opportunities.
Use the %s tool to find actual job openings that match their skills and experience.
Provide specific, actionable job recommendations.`

// SystemInstruction embeds the resume summary into the assistant's
// instructions.
func SystemInstruction(r *resume.Resume) string {
	return fmt.Sprintf(systemTemplate, resume.PromptBlock(r), SearchToolName)
}
