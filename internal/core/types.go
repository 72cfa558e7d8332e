package core

// Message roles used in the transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// Message represents a chat message (OpenAI legacy function-calling format).
// Content is empty for an assistant message that only carries a function call.
type Message struct {
	Role         string        `json:"role"`
	Content      string        `json:"content"`
	Name         string        `json:"name,omitempty"`          // function name, for role=function
	FunctionCall *FunctionCall `json:"function_call,omitempty"` // set when the model requests a function
}

// HasFunctionCall reports whether the message is a function-call directive rather than a final answer.
func (m Message) HasFunctionCall() bool {
	return m.FunctionCall != nil && m.FunctionCall.Name != ""
}

// FunctionCall is the model's request to run a function. Arguments is the raw JSON text the model emitted.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionSpec describes a callable function to the model.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// FunctionCallRequest is a function call with its arguments already decoded.
type FunctionCallRequest struct {
	Name      string
	Arguments map[string]any
}

// SystemMessage, UserMessage, AssistantMessage and FunctionResult build transcript entries.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func FunctionResult(name, content string) Message {
	return Message{Role: RoleFunction, Name: name, Content: content}
}
