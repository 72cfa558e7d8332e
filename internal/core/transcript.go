package core

// Transcript is the ordered conversation history sent to the model.
// It starts with exactly one system message and only grows.
type Transcript struct {
	messages []Message
}

// NewTranscript starts a transcript with the given system prompt.
func NewTranscript(systemPrompt string) *Transcript {
	return &Transcript{messages: []Message{SystemMessage(systemPrompt)}}
}

// Append adds m to the end of the transcript.
func (t *Transcript) Append(m Message) {
	t.messages = append(t.messages, m)
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the most recent message.
func (t *Transcript) Last() Message {
	return t.messages[len(t.messages)-1]
}
