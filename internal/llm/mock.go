package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real y cuenta las invocaciones.
type MockClient struct {
	Response Completion
	Err      error

	mu       sync.Mutex
	calls    int
	lastMsgs []Message
}

// NewMockClient devuelve un mock que responde siempre con reply como único candidato.
func NewMockClient(reply string) *MockClient {
	return &MockClient{Response: Completion{Choices: []string{reply}}}
}

func (m *MockClient) Complete(_ context.Context, messages []Message) (Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMsgs = append([]Message(nil), messages...)
	return m.Response, m.Err
}

// Calls devuelve cuantas veces se invocó Complete.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastMessages devuelve los mensajes de la última invocación.
func (m *MockClient) LastMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.lastMsgs...)
}
