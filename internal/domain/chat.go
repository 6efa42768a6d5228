package domain

// Conversational roles accepted by every upstream adapter.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one chat turn in the provider-agnostic shape used by the
// handler, the normalizer and the LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
