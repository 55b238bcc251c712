package llm

import (
	"fmt"
	"strings"
)

// FirstChoice safely returns the first choice from a ChatResponse.
// Returns an error if the response is nil or has no choices.
func FirstChoice(resp *ChatResponse) (ChatChoice, error) {
	if resp == nil {
		return ChatChoice{}, fmt.Errorf("nil ChatResponse")
	}
	if len(resp.Choices) == 0 {
		return ChatChoice{}, fmt.Errorf("empty choices in ChatResponse (model returned no choices)")
	}
	return resp.Choices[0], nil
}

// FirstMessage returns the message of the first choice, or a zero Message.
func FirstMessage(resp *ChatResponse) Message {
	choice, err := FirstChoice(resp)
	if err != nil {
		return Message{}
	}
	return choice.Message
}

// FirstContent returns the trimmed text of the first choice ("" when absent).
func FirstContent(resp *ChatResponse) string {
	return strings.TrimSpace(FirstMessage(resp).Content)
}

// CollectStream drains a stream into a single response message.
// The first chunk error aborts collection.
func CollectStream(ch <-chan StreamChunk) (Message, error) {
	var b strings.Builder
	msg := Message{Role: RoleAssistant}
	for chunk := range ch {
		if chunk.Err != nil {
			return msg, chunk.Err
		}
		b.WriteString(chunk.Delta.Content)
		msg.ToolCalls = append(msg.ToolCalls, chunk.Delta.ToolCalls...)
	}
	msg.Content = b.String()
	return msg, nil
}
