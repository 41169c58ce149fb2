package agent

import (
	"encoding/json"

	"github.com/cloo-solutions/outreachai/internal/domain"
)

// Conversation is the ordered message history of one research run. It is a
// value: Append returns a new Conversation and never mutates the receiver.
type Conversation struct {
	msgs []domain.Message
}

// NewConversation starts a conversation with msgs.
func NewConversation(msgs ...domain.Message) Conversation {
	return Conversation{}.Append(msgs...)
}

func (c Conversation) Append(msgs ...domain.Message) Conversation {
	out := make([]domain.Message, 0, len(c.msgs)+len(msgs))
	out = append(out, c.msgs...)
	out = append(out, msgs...)
	return Conversation{msgs: out}
}

// Messages returns a copy of the history.
func (c Conversation) Messages() []domain.Message {
	return append([]domain.Message(nil), c.msgs...)
}

func (c Conversation) Len() int { return len(c.msgs) }

// Last returns the final message, if any.
func (c Conversation) Last() (domain.Message, bool) {
	if len(c.msgs) == 0 {
		return domain.Message{}, false
	}
	return c.msgs[len(c.msgs)-1], true
}

// ToolExchange pairs a tool call with the result that answered it.
type ToolExchange struct {
	Call   domain.ToolCall `json:"call"`
	Result string          `json:"result"`
}

// ToolExchanges lists every answered tool call in request order. Results
// are matched by position: the tool messages that directly follow an
// assistant message answer its calls in order, so empty or repeated call IDs
// pair correctly.
func (c Conversation) ToolExchanges() []ToolExchange {
	var out []ToolExchange
	for i := 0; i < len(c.msgs); i++ {
		calls := c.msgs[i].ToolCalls
		if c.msgs[i].Role != domain.RoleAssistant || len(calls) == 0 {
			continue
		}
		for j, call := range calls {
			k := i + 1 + j
			if k >= len(c.msgs) || c.msgs[k].Role != domain.RoleTool {
				break
			}
			out = append(out, ToolExchange{Call: call, Result: c.msgs[k].Content})
		}
	}
	return out
}

func (c Conversation) MarshalJSON() ([]byte, error) {
	if c.msgs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.msgs)
}
