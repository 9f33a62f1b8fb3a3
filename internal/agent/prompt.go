package agent

import (
	"voicebot/internal/domain"
)

// DefaultSystemPrompt sets the assistant persona and answer policy.
const DefaultSystemPrompt = "Tu es un assistant virtuel sympathique et serviable. " +
	"Réponds de manière concise et naturelle en français."

// PromptBuilder assembles the message list sent to the chat model.
type PromptBuilder struct {
	systemPrompt string
}

func NewPromptBuilder(systemPrompt string) *PromptBuilder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &PromptBuilder{systemPrompt: systemPrompt}
}

// Build constructs [system + history + current turn]. history is the user's
// transcript as reloaded after current was persisted; the row matching
// current.ID is skipped so the current turn appears exactly once, as the final
// user message.
func (p *PromptBuilder) Build(history []domain.TranscriptEntry, current domain.TranscriptEntry) []domain.Message {
	messages := make([]domain.Message, 0, len(history)+2)
	messages = append(messages, domain.Message{Role: domain.MessageSystem, Content: p.systemPrompt})

	for _, e := range history {
		if current.ID != 0 && e.ID == current.ID {
			continue
		}
		messages = append(messages, domain.Message{Role: historyRole(e.Role), Content: e.Text})
	}

	return append(messages, domain.Message{Role: domain.MessageUser, Content: current.Text})
}

// historyRole maps bot turns to assistant and everything else to user.
func historyRole(r domain.Role) domain.MessageRole {
	if r == domain.RoleBot {
		return domain.MessageAssistant
	}
	return domain.MessageUser
}

// AddAssistantToolCalls appends the assistant turn that requested tools.
func (p *PromptBuilder) AddAssistantToolCalls(messages []domain.Message, content string, calls []domain.ToolCall) []domain.Message {
	return append(messages, domain.Message{
		Role:      domain.MessageAssistant,
		Content:   content,
		ToolCalls: calls,
	})
}

// AddToolResult appends one tool result linked to its invocation.
func (p *PromptBuilder) AddToolResult(messages []domain.Message, toolCallID, result string) []domain.Message {
	return append(messages, domain.Message{
		Role:       domain.MessageTool,
		ToolCallID: toolCallID,
		Content:    result,
	})
}
