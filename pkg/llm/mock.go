package llm

import (
	"context"
	"sync"
)

// Mock is a scripted Provider for tests. Responses are returned in order;
// the last one repeats. Requests are recorded for assertions.
type Mock struct {
	mu        sync.Mutex
	responses []*ChatResponse
	err       error
	requests  []*ChatRequest
}

// NewMock creates a mock provider with scripted responses.
func NewMock(responses ...*ChatResponse) *Mock {
	return &Mock{responses: responses}
}

// TextResponse builds a plain assistant reply.
func TextResponse(content string) *ChatResponse {
	return &ChatResponse{
		Message:      NewAssistantMessage(content),
		FinishReason: "stop",
	}
}

// ToolCallResponse builds an assistant response requesting tool calls.
func ToolCallResponse(calls ...ToolCall) *ChatResponse {
	return &ChatResponse{
		Message:      Message{Role: RoleAssistant, ToolCalls: calls},
		FinishReason: "tool_calls",
	}
}

// SetError makes every subsequent Chat fail.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Chat returns the next scripted response.
func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Record a shallow copy; callers mutate their request between rounds.
	cp := *req
	cp.Messages = append([]Message(nil), req.Messages...)
	m.requests = append(m.requests, &cp)

	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return TextResponse(""), nil
	}
	idx := len(m.requests) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// Health always succeeds.
func (m *Mock) Health(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *Mock) Close() error { return nil }

// Requests returns the recorded requests.
func (m *Mock) Requests() []*ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ChatRequest(nil), m.requests...)
}

// Calls returns how many times Chat ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
