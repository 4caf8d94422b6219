package ai

import "strings"

// DefaultSystemInstruction is used when LLM_SYSTEM_INSTRUCTION is unset.
const DefaultSystemInstruction = `You are Aura, a warm and attentive conversational assistant.
Users talk to you by typing or by speaking; spoken input arrives as a transcript and may contain recognition errors, so infer the intended meaning when it is obvious.
Keep answers concise and conversational, suitable for being read aloud.
Ask a short clarifying question when a request is ambiguous.`

// historyLimit bounds how many prior messages are sent to the model.
const historyLimit = 10

func resolveSystemInstruction(configured string) string {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return trimmed
	}
	return DefaultSystemInstruction
}
