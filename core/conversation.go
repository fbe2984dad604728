package core

// Conversation is the ordered message history of a single reasoning loop.
// It is constructed when an agent run starts, grows monotonically while the
// loop alternates between model turns and tool observations, and is discarded
// when the run ends. A Conversation is owned exclusively by one agent run and
// is therefore not synchronized.
type Conversation struct {
	contents []Content
}

// NewConversation creates a conversation seeded with the user query.
func NewConversation(userText string) *Conversation {
	return &Conversation{contents: []Content{NewTextContent("user", userText)}}
}

// AddUserText appends a user-authored text turn.
func (c *Conversation) AddUserText(text string) {
	c.contents = append(c.contents, NewTextContent("user", text))
}

// AddAssistant appends an assistant turn (text and/or requested tool calls).
func (c *Conversation) AddAssistant(content Content) {
	content.Role = "assistant"
	c.contents = append(c.contents, content)
}

// AddToolResponses appends one tool observation turn carrying the given
// function responses in order.
func (c *Conversation) AddToolResponses(responses ...FunctionResponse) {
	parts := make([]Part, 0, len(responses))
	for _, fr := range responses {
		parts = append(parts, FunctionResponsePart{FunctionResponse: fr})
	}
	c.contents = append(c.contents, Content{Role: "tool", Parts: parts})
}

// Contents returns the ordered history. The returned slice is shared with the
// conversation; callers must treat it as read-only.
func (c *Conversation) Contents() []Content { return c.contents }

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.contents) }

// LastText returns the text of the most recent turn carrying any, or "".
// Used for best-effort fallback answers when a loop aborts.
func (c *Conversation) LastText() string {
	for i := len(c.contents) - 1; i >= 0; i-- {
		if t := c.contents[i].Text(); t != "" {
			return t
		}
	}
	return ""
}
