package agent

import (
	"sync"

	"github.com/hearthlabs/hearth/pkg/llm"
)

// history is the bounded conversation memory: a system prompt followed by
// the most recent exchanges.
type history struct {
	mu     sync.Mutex
	system llm.Message
	msgs   []llm.Message
	limit  int
}

func newHistory(systemPrompt string, limit int) *history {
	return &history{
		system: llm.NewSystemMessage(systemPrompt),
		limit:  limit,
	}
}

// Append adds messages, evicting the oldest beyond the limit. Eviction
// never splits an assistant tool-call message from the tool results that
// answer it: leading tool messages left without their call are dropped
// too.
func (h *history) Append(msgs ...llm.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msgs...)
	for len(h.msgs) > h.limit {
		h.msgs = h.msgs[1:]
		for len(h.msgs) > 0 && h.msgs[0].Role == llm.RoleTool {
			h.msgs = h.msgs[1:]
		}
	}
}

// Messages returns the system prompt plus the retained exchanges.
func (h *history) Messages() []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]llm.Message, 0, len(h.msgs)+1)
	out = append(out, h.system)
	out = append(out, h.msgs...)
	return out
}

// Len returns the number of retained messages, excluding the system
// prompt.
func (h *history) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}
